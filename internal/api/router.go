// Package api exposes the import service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/smart-ledger/internal/api/handlers"
	"github.com/dvloznov/smart-ledger/internal/api/middleware"
	"github.com/rs/zerolog"
)

// NewRouter registers every route and wraps them in the middleware chain.
func NewRouter(importsHandler *handlers.ImportsHandler, summaryHandler *handlers.SummaryHandler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/upload", importsHandler.Upload)
	mux.HandleFunc("GET /api/imports", importsHandler.ListJobs)
	mux.HandleFunc("GET /api/imports/{jobID}", importsHandler.GetJob)
	mux.HandleFunc("GET /api/imports/{jobID}/drafts", importsHandler.ListDrafts)
	mux.HandleFunc("POST /api/imports/{jobID}/confirm", importsHandler.Confirm)
	mux.HandleFunc("POST /api/imports/{jobID}/retry", importsHandler.Retry)
	mux.HandleFunc("GET /api/transactions/summary", summaryHandler.Summary)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth("/health")(mux),
				),
			),
		),
	)
}
