package app

import (
	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/rs/cors"
)

// NewCORS builds the browser access policy. Credentials are only allowed
// for an explicit origin list, never together with a wildcard.
func NewCORS(cfg config.HTTPConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.ActorHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.AllowedOrigins),
	})
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
