/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * standard middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LedgerRoutes creates and returns the router for the ledger service.
func LedgerRoutes(h *LedgerHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/owners", func(r chi.Router) {
		r.Post("/", h.CreateOwnerHandler)
		r.Get("/", h.ListOwnersHandler)
		r.Get("/{ownerID}", h.GetOwnerHandler)
		r.Patch("/{ownerID}", h.RenameOwnerHandler)
		r.Delete("/{ownerID}", h.DeleteOwnerHandler)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccountHandler)
		r.Get("/", h.ListAccountsHandler)
		r.Get("/{accountID}", h.GetAccountHandler)
		r.Delete("/{accountID}", h.DeleteAccountHandler)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.CreatePaymentHandler)
		r.Get("/", h.ListPaymentsHandler)
		r.Get("/{paymentID}", h.GetPaymentHandler)
		r.Patch("/{paymentID}", h.UpdatePaymentStatusHandler)
	})

	return r
}
