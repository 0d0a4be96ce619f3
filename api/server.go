/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the POS frontend

ROUTE SHAPE:
  Mutations on the inventory and restock collections go through POST
  sub-paths (inventory/update, inventory/delete, restock/update) rather
  than PUT/DELETE on the resource, matching the wire contract the POS
  clients already speak.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Inventory routes
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.GetInventory)
			r.Post("/", h.CreateInventory)
			r.Post("/update", h.UpdateInventory)
			r.Post("/delete", h.DeleteInventory)
		})

		// Restock routes
		r.Route("/restock", func(r chi.Router) {
			r.Get("/", h.GetRestock)
			r.Post("/", h.CreateRestock)
			r.Post("/update", h.UpdateRestock)
		})

		// Point-of-sale routes
		r.Post("/pos/sale", h.ProcessSale)
		r.Get("/sales", h.GetSales)
		r.Get("/cashflow", h.GetCashFlow)

		// History routes
		r.Get("/transactions", h.GetTransactions)
		r.Get("/logs", h.GetLogs)
	})

	return r
}
