// Package httptransport exposes the registrar over HTTP. Admin operations
// sit behind bearer-token auth; register, query, and health are public.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all endpoints. {label} is a parent name or its 0x label
// hash; the service layer makes the final authorization decision, the
// middleware only establishes who is calling.
func NewRouter(h *Handler, signingKey []byte, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/domains/{label}/query", h.handleQuery)
	r.Post("/domains/{label}/register", h.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(RequireCaller(signingKey, logger))
		r.Post("/domains/{label}", h.handleConfigure)
		r.Post("/domains/{label}/transfer", h.handleTransfer)
		r.Post("/domains/{label}/migration-target", h.handleSetMigrationTarget)
		r.Post("/domains/{label}/unlist", h.handleUnlist)
		r.Post("/domains/{label}/resolver", h.handleSetResolver)
		r.Post("/domains/{label}/upgrade", h.handleUpgrade)
		r.Post("/domains/{label}/rent", h.handlePayRent)
		r.Post("/payments/withdraw", h.handleWithdraw)
	})

	return r
}
