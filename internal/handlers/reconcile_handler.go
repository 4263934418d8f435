package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/models"
	"github.com/shopfront/accounts/internal/tasks"
	"go.uber.org/zap"
)

// Reconciler removes avatar objects no user references
type Reconciler interface {
	Run(ctx context.Context) (tasks.Result, error)
}

// ReconcileHandler exposes the orphaned avatar reconciliation to operators
type ReconcileHandler struct {
	BaseHandler
	reconciler Reconciler
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(reconciler Reconciler, logger *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		BaseHandler: BaseHandler{Logger: logger},
		reconciler:  reconciler,
	}
}

// RegisterRoutes registers the reconcile route
// Note: the router must already run the API key middleware
func (h *ReconcileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/internal/reconcile", h.Handle(h.Reconcile))
}

// Reconcile handles POST /internal/reconcile
// @Summary Reconcile avatars
// @Description Destroy stored avatar objects that no user references
// @Tags internal
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} models.ReconcileResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /internal/reconcile [post]
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) error {
	result, err := h.reconciler.Run(r.Context())
	if err != nil {
		return apperr.Internal("Avatar reconciliation failed", err)
	}

	h.RespondJSON(w, http.StatusOK, models.ReconcileResponse{
		Success:   true,
		Scanned:   result.Scanned,
		Destroyed: result.Destroyed,
	})
	return nil
}
