package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/filestore"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobStore is a filestore.Store backed by the file_blobs table.
type BlobStore struct {
	db *gorm.DB
}

// NewBlobStore creates a BlobStore on conn.
func NewBlobStore(conn *gorm.DB) *BlobStore {
	return &BlobStore{db: conn}
}

var _ filestore.Store = (*BlobStore)(nil)

func (b *BlobStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	rec := FileBlobRecord{
		Key:         key,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_type", "data"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("BlobStore.Put: %w", err)
	}
	return nil
}

func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec FileBlobRecord
	err := b.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, filestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("BlobStore.Get: %w", err)
	}
	return rec.Data, nil
}

func (b *BlobStore) Delete(ctx context.Context, key string) error {
	if err := b.db.WithContext(ctx).Where("key = ?", key).Delete(&FileBlobRecord{}).Error; err != nil {
		return fmt.Errorf("BlobStore.Delete: %w", err)
	}
	return nil
}
