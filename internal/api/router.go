/**
 * @description
 * This file sets up the HTTP router for the fraud-service. It defines the webhook and
 * listing endpoints, associates them with their handlers, and applies the middleware
 * stack.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the settings the router needs from config.
type RouterOptions struct {
	WebhookAPIKey  string
	AllowedOrigins []string
}

// NewRouter creates and returns the fraud-service router.
func NewRouter(h *TransactionHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(BodyLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(APIKeyMiddleware(opts.WebhookAPIKey))

		r.Post("/webhook/transactions", h.TransactionWebhookHandler)
		r.Get("/api/transactions", h.ListTransactionsHandler)
	})

	return r
}
