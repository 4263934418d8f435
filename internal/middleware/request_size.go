package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize fits a multipart avatar upload
const DefaultMaxRequestSize = 10 * 1024 * 1024 // 10MB

// RequestSizeLimit limits the size of request bodies
func RequestSizeLimit(maxRequestSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}
