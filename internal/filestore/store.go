// Package filestore keeps the original bytes of uploaded statements so a
// failed import can be retried without a new upload.
package filestore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("file not found")

// Store saves and loads opaque blobs by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key returns the storage key used for a job's original upload.
func Key(userID, jobID, filename string) string {
	return fmt.Sprintf("imports/%s/%s/%s", userID, jobID, filename)
}
