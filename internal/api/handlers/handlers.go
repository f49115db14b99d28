package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/smart-ledger/internal/api/middleware"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/imports"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/dvloznov/smart-ledger/internal/summary"
)

// ImportService is the import job surface used by the HTTP layer.
type ImportService interface {
	Submit(ctx context.Context, userID, filename string, data []byte) (*domain.ImportJob, error)
	GetJob(ctx context.Context, jobID, userID string) (*domain.ImportJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]domain.ImportJob, error)
	ListDrafts(ctx context.Context, jobID, userID string) (*imports.DraftListing, error)
	Confirm(ctx context.Context, jobID, userID string, overrides []domain.Override) (imports.ConfirmResult, error)
	Retry(ctx context.Context, jobID, userID string) (imports.RetryResult, error)
}

// SummaryService computes monthly ledger summaries.
type SummaryService interface {
	Summary(ctx context.Context, userID, month string) (*summary.Summary, error)
}

var errorStatus = map[error]int{
	domain.ErrUnsupportedFileType: http.StatusBadRequest,
	domain.ErrInvalidJobID:        http.StatusBadRequest,
	domain.ErrJobNotInReview:      http.StatusBadRequest,
	domain.ErrJobNotFailed:        http.StatusBadRequest,
	domain.ErrInvalidMonth:        http.StatusBadRequest,
	domain.ErrFileTooLarge:        http.StatusRequestEntityTooLarge,
	domain.ErrNotFound:            http.StatusNotFound,
	domain.ErrMissingOriginalFile: http.StatusConflict,
	domain.ErrRetryLimitReached:   http.StatusTooManyRequests,
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	for target, status := range errorStatus {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError writes {"error": code}. Internal errors are logged
// and never echoed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	middleware.WriteError(w, status, domain.Code(err))
}

// ImportsHandler handles upload and import job endpoints.
type ImportsHandler struct {
	svc          ImportService
	maxFileBytes int64
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(svc ImportService, maxFileBytes int64) *ImportsHandler {
	return &ImportsHandler{svc: svc, maxFileBytes: maxFileBytes}
}

// multipartOverhead is the slack allowed on top of the file for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// Upload handles POST /api/upload
func (h *ImportsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, domain.ErrFileTooLarge)
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "invalid_form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_form")
		return
	}

	job, err := h.svc.Submit(r.Context(), middleware.UserIDFromContext(r.Context()), header.Filename, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// ListJobs handles GET /api/imports
func (h *ImportsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	jobs, err := h.svc.ListJobs(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/imports/{jobID}
func (h *ImportsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), r.PathValue("jobID"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListDrafts handles GET /api/imports/{jobID}/drafts
func (h *ImportsHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.ListDrafts(r.Context(), r.PathValue("jobID"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, listing)
}

// Confirm handles POST /api/imports/{jobID}/confirm
func (h *ImportsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Overrides []domain.Override `json:"overrides"`
	}
	// An empty body confirms without overrides.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	res, err := h.svc.Confirm(r.Context(), r.PathValue("jobID"), middleware.UserIDFromContext(r.Context()), req.Overrides)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// Retry handles POST /api/imports/{jobID}/retry
func (h *ImportsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Retry(r.Context(), r.PathValue("jobID"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// SummaryHandler handles ledger summary endpoints.
type SummaryHandler struct {
	svc SummaryService
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(svc SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

// Summary handles GET /api/transactions/summary?month=YYYY-MM
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Summary(r.Context(), middleware.UserIDFromContext(r.Context()), r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}
