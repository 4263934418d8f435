// Package middleware holds the HTTP middlewares of the account API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/shopfront/accounts/internal/models"
)

// writeError writes the {success:false, message} envelope
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Message: message})
}
