package domain

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidJobID        = errors.New("invalid job id")
	ErrNotFound            = errors.New("not found")
	ErrJobNotInReview      = errors.New("job not in review")
	ErrJobNotFailed        = errors.New("job not failed")
	ErrMissingOriginalFile = errors.New("missing original file")
	ErrRetryLimitReached   = errors.New("retry limit reached")
	ErrExtraction          = errors.New("extraction failed")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrEnqueueFailed       = errors.New("enqueue failed")
)

var codes = []struct {
	err     error
	code    string
	message string
}{
	{ErrUnsupportedFileType, "unsupported_file_type", "file type is not supported"},
	{ErrFileTooLarge, "file_too_large", "file exceeds the size limit"},
	{ErrInvalidJobID, "invalid_job_id", "job id is not valid"},
	{ErrNotFound, "not_found", "job not found"},
	{ErrJobNotInReview, "job_not_in_review", "job is not awaiting review"},
	{ErrJobNotFailed, "job_not_failed", "job has not failed"},
	{ErrMissingOriginalFile, "missing_original_file", "original file is no longer available"},
	{ErrRetryLimitReached, "retry_limit_reached", "retry limit reached"},
	{ErrExtraction, "extraction_failed", "statement could not be extracted"},
	{ErrInvalidMonth, "invalid_month", "month is not valid"},
	{ErrEnqueueFailed, "enqueue_failed", "job could not be queued for processing"},
}

const internalCode, internalMessage = "internal_error", "processing failed"

// Code maps an error to the short machine-readable code used in API
// responses and stored job errors.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return internalCode
}

// JobErrorText renders err as "<code>: <message>" for storage on the job.
// The message is fixed per code; the error chain itself is never stored.
func JobErrorText(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code + ": " + c.message
		}
	}
	return internalCode + ": " + internalMessage
}

// Truncate shortens s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
