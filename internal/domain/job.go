package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusReview     JobStatus = "REVIEW"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// transitions lists every legal edge of the job state machine.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing},
	JobStatusProcessing: {JobStatusReview, JobStatusFailed},
	JobStatusFailed:     {JobStatusPending},
	JobStatusReview:     {JobStatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted
}

// ReapableStatuses are the states the stale job reaper may delete.
// COMPLETED is never included.
var ReapableStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusReview,
	JobStatusFailed,
}

// DocumentType selects which extraction path handles an upload.
type DocumentType string

const (
	DocumentTypeSpreadsheet DocumentType = "spreadsheet"
	DocumentTypePDF         DocumentType = "pdf"
)

var extensionTypes = map[string]DocumentType{
	".xlsx": DocumentTypeSpreadsheet,
	".xls":  DocumentTypeSpreadsheet,
	".csv":  DocumentTypeSpreadsheet,
	".pdf":  DocumentTypePDF,
}

// DocumentTypeFromFilename maps a filename extension to its document type.
func DocumentTypeFromFilename(name string) (DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	dt, ok := extensionTypes[ext]
	if !ok {
		return "", ErrUnsupportedFileType
	}
	return dt, nil
}

// MimeTypeFor returns the content type stored alongside the original bytes.
func MimeTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// ImportJob tracks one uploaded statement from submission to confirmation.
type ImportJob struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"documentType"`
	Status       JobStatus    `json:"status"`
	RetryCount   int          `json:"retryCount"`
	Error        *string      `json:"error"`
	Warning      *string      `json:"warning"`
	DraftCount   int          `json:"draftCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ImportFile is the original upload retained for retries.
type ImportFile struct {
	JobID      string
	Filename   string
	MimeType   string
	Size       int64
	Checksum   string
	StorageKey string
	Data       []byte
}

// JobPatch lists column changes applied together with a status transition.
type JobPatch struct {
	Error          *string
	ClearError     bool
	Warning        *string
	ClearWarning   bool
	IncrementRetry bool
	DraftCount     *int
}
