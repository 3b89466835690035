/**
 * @description
 * This file sets up the HTTP router for the redemption service ops API. It
 * defines the endpoints, associates them with their handlers, and applies
 * the internal API-key middleware to everything mutating.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/prometheus/client_golang: the /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes creates and returns the ops router.
func Routes(h *Handlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/redemptions", h.TriggerRedemptionHandler)
		r.Post("/internal/redemptions/stop", h.StopRedemptionHandler)
		r.Get("/internal/codes", h.ListCodesHandler)
		r.Post("/internal/codes", h.SubmitCodeHandler)
	})

	return r
}
