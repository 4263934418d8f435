package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/accounts/internal/client"
	"github.com/shopfront/accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fakeAPI struct {
	resetReq  models.ResetPasswordRequest
	roleReq   models.UpdateRoleRequest
	deletedID string
}

func (f *fakeAPI) router() http.Handler {
	ada := models.User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: models.RoleUser, CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	r := chi.NewRouter()
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid Email or Password"})
			return
		}
		writeJSON(w, http.StatusCreated, models.SessionResponse{Success: true, User: &ada, Token: "tok-1"})
	})
	r.Put("/password/reset/{token}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.resetReq)
		if f.resetReq.Password != f.resetReq.ConfirmPassword {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Message: "Password does not match"})
			return
		}
		writeJSON(w, http.StatusOK, models.SessionResponse{Success: true, User: &ada, Token: "tok-reset"})
	})
	r.Get("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.UserListResponse{Success: true, Users: []models.User{ada}, UsersCount: 21, Page: 1, Count: 20})
	})
	r.Get("/admin/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "u-1" {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Message: "User with Id: " + chi.URLParam(r, "id") + " doesn't exist"})
			return
		}
		writeJSON(w, http.StatusOK, models.UserResponse{Success: true, User: &ada})
	})
	r.Put("/admin/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&f.roleReq)
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	})
	r.Delete("/admin/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.deletedID = chi.URLParam(r, "id")
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "User deleted successfully"})
	})
	return r
}

type testEnv struct {
	app   *app
	api   *fakeAPI
	out   *bytes.Buffer
	store *tokenStore
}

func newTestEnv(t *testing.T, input string, passwords ...string) *testEnv {
	t.Helper()
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)

	api, err := client.New(srv.URL, "")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	prompt := newPrompter(strings.NewReader(input), out)
	prompt.readPassword = func() ([]byte, error) {
		require.NotEmpty(t, passwords, "unexpected password prompt")
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
	store := &tokenStore{path: filepath.Join(t.TempDir(), "token")}

	return &testEnv{app: newApp(api, prompt, store, out), api: fake, out: out, store: store}
}

func TestApp_Login(t *testing.T) {
	env := newTestEnv(t, "ada@example.com\n", "secret")

	require.NoError(t, env.app.run(context.Background(), []string{"login"}))

	assert.Contains(t, env.out.String(), "login...")
	assert.Contains(t, env.out.String(), "Welcome back, Ada")
	token, err := env.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestApp_LoginFailure(t *testing.T) {
	env := newTestEnv(t, "ada@example.com\n", "wrong")

	err := env.app.run(context.Background(), []string{"login"})

	require.Error(t, err)
	assert.Contains(t, env.out.String(), "Error: Invalid Email or Password")
	token, _ := env.store.Load()
	assert.Empty(t, token)
}

func TestApp_ResetPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, "", "new", "new")

		require.NoError(t, env.app.run(context.Background(), []string{"reset-password", "abc"}))

		assert.Equal(t, "new", env.api.resetReq.ConfirmPassword)
		assert.Contains(t, env.out.String(), "Password Updated Successfully !")
		assert.Equal(t, client.StateSuccess, env.app.view.Status("reset-password").State)
	})

	t.Run("mismatch", func(t *testing.T) {
		env := newTestEnv(t, "", "new", "other")

		err := env.app.run(context.Background(), []string{"reset-password", "abc"})

		require.Error(t, err)
		assert.Contains(t, env.out.String(), "Error: Password does not match")
	})

	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t, "")

		assert.ErrorIs(t, env.app.run(context.Background(), []string{"reset-password"}), errUsage)
	})
}

func TestApp_AdminViews(t *testing.T) {
	t.Run("users", func(t *testing.T) {
		env := newTestEnv(t, "")

		require.NoError(t, env.app.run(context.Background(), []string{"users", "-role", "user"}))

		out := env.out.String()
		assert.Contains(t, out, "ada@example.com")
		assert.Contains(t, out, "2024-03-01")
		assert.Contains(t, out, "page 1 of 2, 21 users")
	})

	t.Run("user not found", func(t *testing.T) {
		env := newTestEnv(t, "")

		require.Error(t, env.app.run(context.Background(), []string{"user", "u-9"}))
		assert.Contains(t, env.out.String(), "Error: User with Id: u-9 doesn't exist")
	})

	t.Run("set role keeps name and email", func(t *testing.T) {
		env := newTestEnv(t, "")

		require.NoError(t, env.app.run(context.Background(), []string{"set-role", "u-1", "Admin"}))

		assert.Equal(t, models.UpdateRoleRequest{Name: "Ada", Email: "ada@example.com", Role: models.RoleAdmin}, env.api.roleReq)
	})

	t.Run("delete", func(t *testing.T) {
		env := newTestEnv(t, "")

		require.NoError(t, env.app.run(context.Background(), []string{"delete-user", "u-1"}))

		assert.Equal(t, "u-1", env.api.deletedID)
		assert.Contains(t, env.out.String(), "User deleted successfully")
	})
}

func TestApp_UnknownCommand(t *testing.T) {
	env := newTestEnv(t, "")

	assert.ErrorIs(t, env.app.run(context.Background(), []string{"frobnicate"}), errUsage)
	assert.ErrorIs(t, env.app.run(context.Background(), nil), errUsage)
}

func TestTokenStore(t *testing.T) {
	store := &tokenStore{path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("tok"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, store.Save(""))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
	require.NoError(t, store.Clear())
}

func TestPrompter_TextDefault(t *testing.T) {
	out := &bytes.Buffer{}
	p := newPrompter(strings.NewReader("\nBob\n"), out)

	name, err := p.Text("Name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	name, err = p.Text("Name", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)
	assert.Contains(t, out.String(), "Name [Ada]: ")
}
