package middleware

import (
	"net/http"
	"slices"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/go-chi/cors"
)

// NewCORSHandler exposes the X-RateLimit-* headers by default so browsers can
// read the budget.
func NewCORSHandler(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   slices.Concat(cfg.AllowedHeaders, []string{RequestIDHeader}),
		ExposedHeaders:   slices.Concat(cfg.ExposedHeaders, []string{RequestIDHeader, "Retry-After"}),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
