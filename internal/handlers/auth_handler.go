package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/services"
	"github.com/shopfront/accounts/internal/session"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for authentication business logic.
type AuthService interface {
	// Method Register validates the credentials, uploads the avatar, creates the user and signs it in.
	//
	// "req" parameter contains name, email and password.
	// "avatar" parameter is the avatar image; it is required.
	//
	// If the input is invalid, or such user already exists, or the upload fails, the error will be returned together with "nil" value.
	Register(ctx context.Context, req *models.RegisterRequest, avatar *media.Payload) (*services.Session, error)
	// Method Login checks the credentials and signs the user in.
	//
	// "req" parameter contains email and password.
	//
	// An unknown email and a wrong password produce the same error.
	Login(ctx context.Context, req *models.LoginRequest) (*services.Session, error)
	// Method Logout revokes the session token when it is still valid. It never fails.
	Logout(ctx context.Context, token string)
	// Method ForgotPassword stores a reset token and emails the reset link.
	//
	// "baseURL" parameter is the scheme and host of the link.
	//
	// On success the confirmation message is returned.
	ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest, baseURL string) (string, error)
	// Method ResetPassword sets a new password for the account owning "token" and signs it in.
	//
	// If the token is unknown or expired, a not found error is returned before the passwords are compared.
	ResetPassword(ctx context.Context, token string, req *models.ResetPasswordRequest) (*services.Session, error)
}

// CookieWriter attaches and clears the session cookie
type CookieWriter interface {
	SetCookie(w http.ResponseWriter, token string)
	ClearCookie(w http.ResponseWriter)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	authService   AuthService
	cookies       CookieWriter
	resetURLBase  string
	forgotLimiter func(http.Handler) http.Handler
}

// NewAuthHandler creates a new auth handler
//
// "resetURLBase" overrides the scheme and host of reset links when not empty.
func NewAuthHandler(
	authService AuthService,
	cookies CookieWriter,
	resetURLBase string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		authService:   authService,
		cookies:       cookies,
		resetURLBase:  resetURLBase,
		forgotLimiter: httprate.LimitByIP(5, time.Minute),
	}
}

// RegisterRoutes registers all auth handler routes
// Note: This assumes the router is already scoped to /api/v1
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Handle(h.Register))
	r.Post("/login", h.Handle(h.Login))
	r.Get("/logout", h.Logout)
	r.With(h.forgotLimiter).Post("/password/forgot", h.Handle(h.ForgotPassword))
	r.Put("/password/reset/{token}", h.Handle(h.ResetPassword))
}

type registerBody struct {
	models.RegisterRequest
	Avatar string `json:"avatar"`
}

// respondSession sets the session cookie and writes the session envelope
func (h *AuthHandler) respondSession(w http.ResponseWriter, status int, sess *services.Session) {
	h.cookies.SetCookie(w, sess.Token)
	h.RespondJSON(w, status, models.SessionResponse{Success: true, User: sess.User, Token: sess.Token})
}

// Register handles POST /register
// @Summary Register a new user
// @Description Register a user with name, email, password and avatar. The avatar is a multipart file or a base64 data URI. Sets the session cookie.
// @Tags auth
// @Accept multipart/form-data,json
// @Produce json
// @Param name formData string true "Display name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse "Invalid input or duplicate email"
// @Failure 500 {object} models.ErrorResponse "Avatar upload failed"
// @Router /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var body registerBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	avatar, err := readAvatar(r, body.Avatar)
	if err != nil {
		return err
	}

	sess, err := h.authService.Register(r.Context(), &body.RegisterRequest, avatar)
	if err != nil {
		return err
	}

	h.respondSession(w, http.StatusCreated, sess)
	return nil
}

// Login handles POST /login
// @Summary Login user
// @Description Authenticate with email and password. Sets the session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse "Missing email or password"
// @Failure 401 {object} models.ErrorResponse "Invalid Email or Password"
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	sess, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		return err
	}

	h.respondSession(w, http.StatusCreated, sess)
	return nil
}

// Logout handles GET /logout
// @Summary Logout user
// @Description Revoke the current session token and clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /logout [get]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(r.Context(), session.TokenFromRequest(r))
	h.cookies.ClearCookie(w)
	h.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "Logged Out"})
}

// ForgotPassword handles POST /password/forgot
// @Summary Request a password reset
// @Description Email a password reset link to the account owner
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ForgotPasswordRequest true "Account email"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Failure 429 {string} string "Too many requests"
// @Failure 500 {object} models.ErrorResponse "Email could not be sent"
// @Router /password/forgot [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var req models.ForgotPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	message, err := h.authService.ForgotPassword(r.Context(), &req, resetBaseURL(r, h.resetURLBase))
	if err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: message})
	return nil
}

// ResetPassword handles PUT /password/reset/{token}
// @Summary Reset password
// @Description Set a new password using the emailed reset token. Sets the session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body models.ResetPasswordRequest true "New password and confirmation"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse "Password does not match"
// @Failure 404 {object} models.ErrorResponse "Token is invalid or has been expired"
// @Router /password/reset/{token} [put]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req models.ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	sess, err := h.authService.ResetPassword(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		return err
	}

	h.respondSession(w, http.StatusOK, sess)
	return nil
}
