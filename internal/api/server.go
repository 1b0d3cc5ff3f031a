// Package api wires the console handlers into an HTTP handler.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/api/handlers"
	"github.com/dvloznov/finance-client/internal/api/middleware"
)

// Handlers groups the endpoint handlers of the console.
type Handlers struct {
	Rules   *handlers.RulesHandler
	Reports *handlers.ReportsHandler
	Imports *handlers.ImportsHandler
	Jobs    *handlers.JobsHandler
}

// NewRouter registers every console route and applies the middleware chain.
// Requests under /api/ are rejected while tokens holds no token.
func NewRouter(h Handlers, tokens middleware.TokenSource, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Rules endpoints
	mux.HandleFunc("GET /api/rules/{kind}/preview", h.Rules.Preview)
	mux.HandleFunc("POST /api/rules/{kind}/apply", h.Rules.Apply)

	// Reports endpoints
	mux.HandleFunc("GET /api/reports", h.Reports.GetReport)
	mux.HandleFunc("POST /api/reports/export", h.Reports.Export)
	mux.HandleFunc("POST /api/reports/notion", h.Reports.SyncNotion)

	// Imports endpoints
	mux.HandleFunc("POST /api/imports", h.Imports.CreateSession)
	mux.HandleFunc("GET /api/imports/{id}", h.Imports.GetSession)
	mux.HandleFunc("DELETE /api/imports/{id}", h.Imports.CloseSession)
	mux.HandleFunc("PUT /api/imports/{id}/items/{index}/account", h.Imports.SetAccount)
	mux.HandleFunc("DELETE /api/imports/{id}/items/{index}", h.Imports.RemoveItem)
	mux.HandleFunc("POST /api/imports/{id}/preview", h.Imports.Preview)
	mux.HandleFunc("POST /api/imports/{id}/save", h.Imports.Save)

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
		middleware.RequireToken(tokens),
	)
}
