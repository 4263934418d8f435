package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/accounts/internal/media"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/services"
	"go.uber.org/zap"
)

// ProfileService is the interface that wraps methods for the signed-in user's own account.
type ProfileService interface {
	// Method GetMe returns the account of "userID" without the password hash.
	GetMe(ctx context.Context, userID string) (*models.User, error)
	// Method UpdatePassword checks the old password, stores the new one and issues a fresh session.
	//
	// A wrong old password and a confirmation mismatch are reported as bad request errors.
	UpdatePassword(ctx context.Context, userID string, req *models.UpdatePasswordRequest) (*services.Session, error)
	// Method UpdateProfile updates name and email, and replaces the avatar when "avatar" is not nil.
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest, avatar *media.Payload) error
}

// ProfileHandler handles requests of the signed-in user
type ProfileHandler struct {
	BaseHandler
	profileService ProfileService
	cookies        CookieWriter
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService ProfileService, cookies CookieWriter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		profileService: profileService,
		cookies:        cookies,
	}
}

// RegisterRoutes registers all profile handler routes
// Note: the router must already run the authentication middleware
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.Handle(h.GetMe))
	r.Put("/me/update", h.Handle(h.UpdateProfile))
	r.Put("/password/update", h.Handle(h.UpdatePassword))
}

type updateProfileBody struct {
	models.UpdateProfileRequest
	Avatar string `json:"avatar"`
}

// GetMe handles GET /me
// @Summary Get my details
// @Tags profile
// @Produce json
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /me [get]
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	me, err := h.profileService.GetMe(r.Context(), user.ID)
	if err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.UserResponse{Success: true, User: me})
	return nil
}

// UpdatePassword handles PUT /password/update
// @Summary Update password
// @Description Change the password of the signed-in user. Sets a fresh session cookie.
// @Tags profile
// @Accept json
// @Produce json
// @Param request body models.UpdatePasswordRequest true "Old and new password"
// @Success 200 {object} models.SessionResponse
// @Failure 400 {object} models.ErrorResponse "Old password is incorrect or passwords do not match"
// @Failure 401 {object} models.ErrorResponse
// @Router /password/update [put]
func (h *ProfileHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	var req models.UpdatePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	sess, err := h.profileService.UpdatePassword(r.Context(), user.ID, &req)
	if err != nil {
		return err
	}

	h.cookies.SetCookie(w, sess.Token)
	h.RespondJSON(w, http.StatusOK, models.SessionResponse{Success: true, User: sess.User, Token: sess.Token})
	return nil
}

// UpdateProfile handles PUT /me/update
// @Summary Update profile
// @Description Update name and email, and optionally replace the avatar
// @Tags profile
// @Accept multipart/form-data,json
// @Produce json
// @Param name formData string true "Display name"
// @Param email formData string true "Email"
// @Param avatar formData file false "New avatar image"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Avatar upload failed"
// @Router /me/update [put]
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	var body updateProfileBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	avatar, err := readAvatar(r, body.Avatar)
	if err != nil {
		return err
	}

	if err := h.profileService.UpdateProfile(r.Context(), user.ID, &body.UpdateProfileRequest, avatar); err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	return nil
}
