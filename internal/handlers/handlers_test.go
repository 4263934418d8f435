package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/middleware"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/services"
	"github.com/shopfront/accounts/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func testSession() *services.Session {
	return &services.Session{
		User:  &models.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: models.RoleUser},
		Token: "session-token",
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func newAuthRouter(svc *mockAuthService, cookies *mockCookies, resetURLBase string) chi.Router {
	h := NewAuthHandler(svc, cookies, resetURLBase, zap.NewNop())
	h.forgotLimiter = func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("json body with data URI avatar", func(t *testing.T) {
		svc := &mockAuthService{registerResult: testSession()}
		cookies := &mockCookies{}
		req := jsonRequest(t, http.MethodPost, "/register", map[string]string{
			"name":     "Ada",
			"email":    "ada@example.com",
			"password": "secret",
			"avatar":   "data:image/png;base64,aGVsbG8=",
		})
		w := httptest.NewRecorder()

		newAuthRouter(svc, cookies, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode[models.SessionResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "session-token", resp.Token)
		assert.Equal(t, "u-1", resp.User.ID)
		assert.Equal(t, []string{"session-token"}, cookies.set)
		require.NotNil(t, svc.gotAvatar)
		assert.Equal(t, "image/png", svc.gotAvatar.ContentType)
		assert.Equal(t, []byte("hello"), svc.gotAvatar.Data)
		assert.Equal(t, "Ada", svc.gotRegister.Name)
		assert.Equal(t, "secret", svc.gotRegister.Password)
	})

	t.Run("multipart body with avatar file", func(t *testing.T) {
		svc := &mockAuthService{registerResult: testSession()}
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("name", "Ada"))
		require.NoError(t, mw.WriteField("email", "ada@example.com"))
		require.NoError(t, mw.WriteField("password", "secret"))
		part, err := mw.CreateFormFile("avatar", "ada.png")
		require.NoError(t, err)
		_, err = part.Write(pngHeader)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/register", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		newAuthRouter(svc, &mockCookies{}, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "ada@example.com", svc.gotRegister.Email)
		require.NotNil(t, svc.gotAvatar)
		assert.Equal(t, "image/png", svc.gotAvatar.ContentType)
		assert.Equal(t, pngHeader, svc.gotAvatar.Data)
	})

	t.Run("malformed data URI", func(t *testing.T) {
		svc := &mockAuthService{registerResult: testSession()}
		req := jsonRequest(t, http.MethodPost, "/register", map[string]string{"name": "Ada", "avatar": "not-an-image"})
		w := httptest.NewRecorder()

		newAuthRouter(svc, &mockCookies{}, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Avatar must be a valid image", decode[models.ErrorResponse](t, w).Message)
		assert.Nil(t, svc.gotRegister)
	})

	t.Run("service error", func(t *testing.T) {
		svc := &mockAuthService{registerErr: apperr.Validation("Duplicate email entered")}
		cookies := &mockCookies{}
		req := jsonRequest(t, http.MethodPost, "/register", map[string]string{"name": "Ada"})
		w := httptest.NewRecorder()

		newAuthRouter(svc, cookies, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[models.ErrorResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "Duplicate email entered", resp.Message)
		assert.Empty(t, cookies.set)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		svc             *mockAuthService
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:           "success",
			body:           `{"email":"ada@example.com","password":"secret"}`,
			svc:            &mockAuthService{loginResult: testSession()},
			expectedStatus: http.StatusCreated,
		},
		{
			name:            "invalid credentials",
			body:            `{"email":"ada@example.com","password":"wrong"}`,
			svc:             &mockAuthService{loginErr: apperr.Authentication("Invalid Email or Password")},
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid Email or Password",
		},
		{
			name:            "malformed json",
			body:            `{"email":`,
			svc:             &mockAuthService{},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid request body",
		},
		{
			name:            "unexpected error",
			body:            `{}`,
			svc:             &mockAuthService{loginErr: errors.New("boom")},
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newAuthRouter(tt.svc, &mockCookies{}, "").ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedMessage != "" {
				resp := decode[models.ErrorResponse](t, w)
				assert.False(t, resp.Success)
				assert.Equal(t, tt.expectedMessage, resp.Message)
				return
			}
			assert.NotEmpty(t, w.Result().Cookies())
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := &mockAuthService{}
	cookies := &mockCookies{}
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()

	newAuthRouter(svc, cookies, "").ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.SuccessResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Logged Out", resp.Message)
	assert.Equal(t, []string{"abc"}, svc.loggedOut)
	assert.Equal(t, 1, cookies.cleared)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	tests := []struct {
		name            string
		override        string
		setupRequest    func(r *http.Request)
		svc             *mockAuthService
		expectedStatus  int
		expectedBaseURL string
		expectedMessage string
	}{
		{
			name:            "base URL from request",
			setupRequest:    func(r *http.Request) { r.Host = "shop.test" },
			svc:             &mockAuthService{forgotResult: "Email sent to ada@example.com successfully"},
			expectedStatus:  http.StatusOK,
			expectedBaseURL: "http://shop.test",
			expectedMessage: "Email sent to ada@example.com successfully",
		},
		{
			name: "forwarded proto",
			setupRequest: func(r *http.Request) {
				r.Host = "shop.test"
				r.Header.Set("X-Forwarded-Proto", "https")
			},
			svc:             &mockAuthService{forgotResult: "ok"},
			expectedStatus:  http.StatusOK,
			expectedBaseURL: "https://shop.test",
			expectedMessage: "ok",
		},
		{
			name:            "configured base URL",
			override:        "https://accounts.shop.test",
			setupRequest:    func(r *http.Request) {},
			svc:             &mockAuthService{forgotResult: "ok"},
			expectedStatus:  http.StatusOK,
			expectedBaseURL: "https://accounts.shop.test",
			expectedMessage: "ok",
		},
		{
			name:            "unknown user",
			setupRequest:    func(r *http.Request) {},
			svc:             &mockAuthService{forgotErr: apperr.NotFound("User not found")},
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "User not found",
		},
		{
			name:            "mail failure",
			setupRequest:    func(r *http.Request) {},
			svc:             &mockAuthService{forgotErr: apperr.Internal("dial tcp: connection refused", errors.New("dial tcp: connection refused"))},
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "dial tcp: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/password/forgot", models.ForgotPasswordRequest{Email: "ada@example.com"})
			tt.setupRequest(req)
			w := httptest.NewRecorder()

			newAuthRouter(tt.svc, &mockCookies{}, tt.override).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedMessage, resp.Message)
			if tt.expectedBaseURL != "" {
				assert.Equal(t, tt.expectedBaseURL, tt.svc.gotBaseURL)
			}
		})
	}
}

func TestAuthHandler_ForgotPassword_RateLimited(t *testing.T) {
	svc := &mockAuthService{forgotResult: "ok"}
	r := chi.NewRouter()
	NewAuthHandler(svc, &mockCookies{}, "", zap.NewNop()).RegisterRoutes(r)

	var last int
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, jsonRequest(t, http.MethodPost, "/password/forgot", models.ForgotPasswordRequest{Email: "ada@example.com"}))
		last = w.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &mockAuthService{resetResult: testSession()}
		cookies := &mockCookies{}
		req := jsonRequest(t, http.MethodPut, "/password/reset/abc123", models.ResetPasswordRequest{Password: "new", ConfirmPassword: "new"})
		w := httptest.NewRecorder()

		newAuthRouter(svc, cookies, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc123", svc.gotToken)
		assert.Equal(t, "new", svc.gotReset.ConfirmPassword)
		assert.Equal(t, []string{"session-token"}, cookies.set)
	})

	t.Run("expired token", func(t *testing.T) {
		svc := &mockAuthService{resetErr: apperr.NotFound("Reset Password Token is invalid or has been expired")}
		req := jsonRequest(t, http.MethodPut, "/password/reset/abc123", models.ResetPasswordRequest{Password: "new", ConfirmPassword: "new"})
		w := httptest.NewRecorder()

		newAuthRouter(svc, &mockCookies{}, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Reset Password Token is invalid or has been expired", decode[models.ErrorResponse](t, w).Message)
	})
}

func newProfileRouter(svc *mockProfileService, cookies *mockCookies, user *models.User) chi.Router {
	r := chi.NewRouter()
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), user)))
			})
		})
	}
	NewProfileHandler(svc, cookies, zap.NewNop()).RegisterRoutes(r)
	return r
}

func TestProfileHandler_GetMe(t *testing.T) {
	user := &models.User{ID: "u-1", Name: "Ada", Role: models.RoleUser}

	t.Run("signed in", func(t *testing.T) {
		svc := &mockProfileService{me: user}
		w := httptest.NewRecorder()

		newProfileRouter(svc, &mockCookies{}, user).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[models.UserResponse](t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, "Ada", resp.User.Name)
		assert.Equal(t, "u-1", svc.gotUserID)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()

		newProfileRouter(&mockProfileService{}, &mockCookies{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Please Login to access this resource", decode[models.ErrorResponse](t, w).Message)
	})
}

func TestProfileHandler_UpdatePassword(t *testing.T) {
	user := &models.User{ID: "u-1", Role: models.RoleUser}

	tests := []struct {
		name           string
		svc            *mockProfileService
		expectedStatus int
		expectedCookie bool
	}{
		{name: "success", svc: &mockProfileService{passwordSess: testSession()}, expectedStatus: http.StatusOK, expectedCookie: true},
		{name: "wrong old password", svc: &mockProfileService{passwordErr: apperr.BadRequest("Old password is incorrect")}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies := &mockCookies{}
			req := jsonRequest(t, http.MethodPut, "/password/update", models.UpdatePasswordRequest{OldPassword: "old", NewPassword: "new", ConfirmPassword: "new"})
			w := httptest.NewRecorder()

			newProfileRouter(tt.svc, cookies, user).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "old", tt.svc.gotPasswordRq.OldPassword)
			assert.Equal(t, tt.expectedCookie, len(cookies.set) == 1)
		})
	}
}

func TestProfileHandler_UpdateProfile(t *testing.T) {
	user := &models.User{ID: "u-1", Role: models.RoleUser}

	t.Run("urlencoded without avatar", func(t *testing.T) {
		svc := &mockProfileService{}
		form := url.Values{"name": {"Ada L"}, "email": {"ada.l@example.com"}}
		req := httptest.NewRequest(http.MethodPut, "/me/update", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		newProfileRouter(svc, &mockCookies{}, user).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[models.SuccessResponse](t, w).Success)
		assert.Equal(t, "Ada L", svc.gotProfile.Name)
		assert.Equal(t, "ada.l@example.com", svc.gotProfile.Email)
		assert.Nil(t, svc.gotAvatar)
	})

	t.Run("json with avatar", func(t *testing.T) {
		svc := &mockProfileService{}
		req := jsonRequest(t, http.MethodPut, "/me/update", map[string]string{
			"name":   "Ada",
			"email":  "ada@example.com",
			"avatar": "data:image/jpeg;base64,aGVsbG8=",
		})
		w := httptest.NewRecorder()

		newProfileRouter(svc, &mockCookies{}, user).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, svc.gotAvatar)
		assert.Equal(t, "image/jpeg", svc.gotAvatar.ContentType)
	})

	t.Run("upload failure", func(t *testing.T) {
		svc := &mockProfileService{updateErr: apperr.Internal("Failed to upload avatar", errors.New("s3 down"))}
		req := jsonRequest(t, http.MethodPut, "/me/update", map[string]string{"name": "Ada", "email": "ada@example.com"})
		w := httptest.NewRecorder()

		newProfileRouter(svc, &mockCookies{}, user).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to upload avatar", decode[models.ErrorResponse](t, w).Message)
	})
}

func newAdminRouter(svc *mockAdminService) chi.Router {
	r := chi.NewRouter()
	NewAdminHandler(svc, zap.NewNop()).RegisterRoutes(r)
	return r
}

func TestAdminHandler_ListUsers(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		svc            *mockAdminService
		expectedStatus int
		expectedQuery  models.UserListQuery
	}{
		{
			name:           "defaults",
			query:          "",
			svc:            &mockAdminService{listResult: &models.UserListResponse{Success: true, Users: []models.User{}, Page: 1, Count: 20}},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "all filters",
			query:          "?page=2&count=5&role=admin&search=ada",
			svc:            &mockAdminService{listResult: &models.UserListResponse{Success: true, Users: []models.User{}, Page: 2, Count: 5}},
			expectedStatus: http.StatusOK,
			expectedQuery:  models.UserListQuery{Page: 2, Count: 5, Search: "ada"},
		},
		{
			name:           "page is not a number",
			query:          "?page=two",
			svc:            &mockAdminService{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "service rejects count",
			query:          "?count=1000",
			svc:            &mockAdminService{listErr: apperr.BadRequest("count must be between 1 and 100")},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			newAdminRouter(tt.svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.name == "all filters" {
				assert.Equal(t, tt.expectedQuery.Page, tt.svc.gotQuery.Page)
				assert.Equal(t, tt.expectedQuery.Count, tt.svc.gotQuery.Count)
				assert.Equal(t, tt.expectedQuery.Search, tt.svc.gotQuery.Search)
				require.NotNil(t, tt.svc.gotQuery.Role)
				assert.Equal(t, models.RoleAdmin, *tt.svc.gotQuery.Role)
			}
		})
	}
}

func TestAdminHandler_GetUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &mockAdminService{user: &models.User{ID: "u-1", Name: "Ada"}}
		w := httptest.NewRecorder()

		newAdminRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/user/u-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u-1", svc.gotID)
		assert.Equal(t, "Ada", decode[models.UserResponse](t, w).User.Name)
	})

	t.Run("missing", func(t *testing.T) {
		svc := &mockAdminService{getErr: apperr.NotFound("User with Id: u-2 doesn't exist")}
		w := httptest.NewRecorder()

		newAdminRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/user/u-2", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User with Id: u-2 doesn't exist", decode[models.ErrorResponse](t, w).Message)
	})
}

func TestAdminHandler_UpdateRole(t *testing.T) {
	svc := &mockAdminService{}
	req := jsonRequest(t, http.MethodPut, "/admin/user/u-1", map[string]string{"name": "Ada", "email": "ada@example.com", "role": "admin"})
	w := httptest.NewRecorder()

	newAdminRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", svc.gotID)
	assert.Equal(t, models.RoleAdmin, svc.gotRole.Role)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	tests := []struct {
		name            string
		svc             *mockAdminService
		expectedStatus  int
		expectedMessage string
	}{
		{name: "success", svc: &mockAdminService{}, expectedStatus: http.StatusOK, expectedMessage: "User deleted successfully"},
		{name: "missing", svc: &mockAdminService{deleteErr: apperr.NotFound("User with Id u-1 doesn't exist.")}, expectedStatus: http.StatusNotFound, expectedMessage: "User with Id u-1 doesn't exist."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			newAdminRouter(tt.svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/user/u-1", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedMessage, decode[models.ErrorResponse](t, w).Message)
		})
	}
}

func TestReconcileHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := chi.NewRouter()
		NewReconcileHandler(&mockReconciler{result: tasks.Result{Scanned: 4, Destroyed: 1}}, zap.NewNop()).RegisterRoutes(r)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[models.ReconcileResponse](t, w)
		assert.Equal(t, 4, resp.Scanned)
		assert.Equal(t, 1, resp.Destroyed)
	})

	t.Run("failure", func(t *testing.T) {
		r := chi.NewRouter()
		NewReconcileHandler(&mockReconciler{err: errors.New("list failed")}, zap.NewNop()).RegisterRoutes(r)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Avatar reconciliation failed", decode[models.ErrorResponse](t, w).Message)
	})
}
