package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/models"
	"go.uber.org/zap"
)

// AdminService is the interface that wraps methods for admin operations
type AdminService interface {
	// Method ListUsers gets a page of users with role and search filters.
	//
	// Zero "Page" and "Count" in "q" fall back to the defaults.
	//
	// If the filters are invalid or some other error occurs, the error will be returned together with nil.
	ListUsers(ctx context.Context, q models.UserListQuery) (*models.UserListResponse, error)
	// Method GetUser gets a user by ID.
	//
	// If user not found, a not found error will be returned together with nil.
	GetUser(ctx context.Context, id string) (*models.User, error)
	// Method UpdateRole updates name, email and role of a user.
	//
	// If user not found, a not found error will be returned.
	UpdateRole(ctx context.Context, id string, req *models.UpdateRoleRequest) error
	// Method DeleteUser deletes a user and its avatar.
	//
	// If user not found, a not found error will be returned before anything is destroyed.
	DeleteUser(ctx context.Context, id string) error
}

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	BaseHandler
	adminService AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		adminService: adminService,
	}
}

// RegisterRoutes registers all admin handler routes
// Note: the router must already run the authentication and admin role middlewares
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", h.Handle(h.ListUsers))
		r.Route("/user/{id}", func(r chi.Router) {
			r.Get("/", h.Handle(h.GetUser))
			r.Put("/", h.Handle(h.UpdateRole))
			r.Delete("/", h.Handle(h.DeleteUser))
		})
	})
}

func queryInt(r *http.Request, name string) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.BadRequest(name + " must be a number")
	}
	return n, nil
}

// ListUsers handles GET /admin/users
// @Summary Get users list
// @Description Get a paginated list of users filtered by role and name or email
// @Tags admin
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param count query int false "Items per page (default: 20, max: 100)"
// @Param role query string false "Role filter: user or admin"
// @Param search query string false "Search by name or email"
// @Success 200 {object} models.UserListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) error {
	page, err := queryInt(r, "page")
	if err != nil {
		return err
	}
	count, err := queryInt(r, "count")
	if err != nil {
		return err
	}

	q := models.UserListQuery{
		Page:   page,
		Count:  count,
		Search: r.URL.Query().Get("search"),
	}
	if roleStr := r.URL.Query().Get("role"); roleStr != "" {
		role := models.Role(roleStr)
		q.Role = &role
	}

	resp, err := h.adminService.ListUsers(r.Context(), q)
	if err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, resp)
	return nil
}

// GetUser handles GET /admin/user/{id}
// @Summary Get user
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} models.ErrorResponse "Invalid user ID"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/user/{id} [get]
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) error {
	user, err := h.adminService.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.UserResponse{Success: true, User: user})
	return nil
}

// UpdateRole handles PUT /admin/user/{id}
// @Summary Update user role
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.UpdateRoleRequest true "Name, email and role"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/user/{id} [put]
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) error {
	var req models.UpdateRoleRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	if err := h.adminService.UpdateRole(r.Context(), chi.URLParam(r, "id"), &req); err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	return nil
}

// DeleteUser handles DELETE /admin/user/{id}
// @Summary Delete user
// @Description Delete a user and its avatar
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Invalid user ID"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /admin/user/{id} [delete]
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	if err := h.adminService.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}

	h.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "User deleted successfully"})
	return nil
}
