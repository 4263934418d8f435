// Package handlers exposes the account operations over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shopfront/accounts/internal/apperr"
	"github.com/shopfront/accounts/internal/middleware"
	"github.com/shopfront/accounts/internal/models"
	"go.uber.org/zap"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// HandlerFunc is an HTTP handler that reports failures by returning an error
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.HandlerFunc, rendering a returned error as the failure envelope
func (h *BaseHandler) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.RespondFailure(w, r, err)
		}
	}
}

// RespondFailure translates err into a status code and a client-facing message.
// Errors that are not *apperr.Error become a generic 500.
func (h *BaseHandler) RespondFailure(w http.ResponseWriter, r *http.Request, err error) {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}

	appErr, ok := apperr.As(err)
	if !ok {
		h.Logger.Error("unhandled error", fields...)
		h.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	status := appErr.Kind.Status()
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", fields...)
	} else {
		h.Logger.Debug("request rejected", append(fields, zap.Stringer("kind", appErr.Kind))...)
	}
	h.RespondError(w, status, appErr.Message)
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, models.ErrorResponse{Success: false, Message: message})
}

// currentUser returns the user resolved by the authentication middleware
func currentUser(r *http.Request) (*models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, apperr.Authentication("Please Login to access this resource")
	}
	return user, nil
}
