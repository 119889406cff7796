package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// DefaultCORS allows browser clients from any origin to call the API with bearer tokens.
func DefaultCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
