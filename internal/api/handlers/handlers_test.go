package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestWriteServiceError_LogsInternalErrorsOnly(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		logged bool
	}{
		{"internal", errors.New("database is locked"), http.StatusInternalServerError, "internal_error", true},
		{"not found", fmt.Errorf("GetJob: %w", domain.ErrNotFound), http.StatusNotFound, "not_found", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
			req = req.WithContext(logger.WithContext(req.Context(), logger.NewWithWriter(buf)))
			rec := httptest.NewRecorder()

			writeServiceError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.code), rec.Body.String())
			if tt.logged {
				assert.Contains(t, buf.String(), "database is locked")
				assert.Contains(t, buf.String(), `"path":"/api/imports"`)
				assert.NotContains(t, rec.Body.String(), "database is locked")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}
