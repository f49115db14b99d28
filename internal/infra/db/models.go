package db

import (
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ImportJobRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	UserID       string    `gorm:"type:varchar(128);not null;index:idx_import_jobs_user_created,priority:1"`
	Filename     string    `gorm:"type:varchar(512);not null"`
	DocumentType string    `gorm:"type:varchar(16);not null"`
	Status       string    `gorm:"type:varchar(16);not null;index:idx_import_jobs_status_created,priority:1"`
	RetryCount   int       `gorm:"not null;default:0"`
	Error        *string   `gorm:"type:text"`
	Warning      *string   `gorm:"type:text"`
	DraftCount   int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null;index:idx_import_jobs_user_created,priority:2;index:idx_import_jobs_status_created,priority:2"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (ImportJobRecord) TableName() string { return "import_jobs" }

func (r *ImportJobRecord) toDomain() domain.ImportJob {
	return domain.ImportJob{
		ID:           r.ID,
		UserID:       r.UserID,
		Filename:     r.Filename,
		DocumentType: domain.DocumentType(r.DocumentType),
		Status:       domain.JobStatus(r.Status),
		RetryCount:   r.RetryCount,
		Error:        r.Error,
		Warning:      r.Warning,
		DraftCount:   r.DraftCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func jobRecordFrom(j *domain.ImportJob) *ImportJobRecord {
	return &ImportJobRecord{
		ID:           j.ID,
		UserID:       j.UserID,
		Filename:     j.Filename,
		DocumentType: string(j.DocumentType),
		Status:       string(j.Status),
		RetryCount:   j.RetryCount,
		Error:        j.Error,
		Warning:      j.Warning,
		DraftCount:   j.DraftCount,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ImportFileRecord is the metadata of an original upload. The bytes live
// in a filestore under StorageKey.
type ImportFileRecord struct {
	JobID      string    `gorm:"primaryKey;type:varchar(36)"`
	Filename   string    `gorm:"type:varchar(512);not null"`
	MimeType   string    `gorm:"type:varchar(128)"`
	Size       int64     `gorm:"not null"`
	Checksum   string    `gorm:"type:varchar(64)"`
	StorageKey string    `gorm:"type:varchar(1024);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (ImportFileRecord) TableName() string { return "import_files" }

func (r *ImportFileRecord) toDomain() domain.ImportFile {
	return domain.ImportFile{
		JobID:      r.JobID,
		Filename:   r.Filename,
		MimeType:   r.MimeType,
		Size:       r.Size,
		Checksum:   r.Checksum,
		StorageKey: r.StorageKey,
	}
}

// FileBlobRecord holds original bytes when the database is the file store.
type FileBlobRecord struct {
	Key         string    `gorm:"primaryKey;type:varchar(1024)"`
	ContentType string    `gorm:"type:varchar(128)"`
	Data        []byte    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (FileBlobRecord) TableName() string { return "file_blobs" }

type DraftRecord struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)"`
	UserID        string          `gorm:"type:varchar(128);not null"`
	JobID         string          `gorm:"type:varchar(36);not null;index:idx_drafts_job_occurred,priority:1"`
	OccurredAt    time.Time       `gorm:"not null;index:idx_drafts_job_occurred,priority:2"`
	Description   string          `gorm:"type:text;not null"`
	Merchant      *string         `gorm:"type:varchar(512)"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency      string          `gorm:"type:varchar(8);not null"`
	Category      *string         `gorm:"type:varchar(128)"`
	CategoryScore *float64
	Raw           datatypes.JSONType[domain.RawPayload]
	CreatedAt     time.Time `gorm:"not null"`
}

func (DraftRecord) TableName() string { return "draft_transactions" }

func (r *DraftRecord) toDomain() domain.DraftTransaction {
	return domain.DraftTransaction{
		ID:            r.ID,
		UserID:        r.UserID,
		JobID:         r.JobID,
		OccurredAt:    r.OccurredAt.UTC(),
		Description:   r.Description,
		Merchant:      r.Merchant,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Category:      r.Category,
		CategoryScore: r.CategoryScore,
		Raw:           r.Raw.Data(),
	}
}

func draftRecordFrom(d domain.DraftTransaction, now time.Time) DraftRecord {
	return DraftRecord{
		ID:            d.ID,
		UserID:        d.UserID,
		JobID:         d.JobID,
		OccurredAt:    d.OccurredAt,
		Description:   d.Description,
		Merchant:      d.Merchant,
		Amount:        d.Amount,
		Currency:      d.Currency,
		Category:      d.Category,
		CategoryScore: d.CategoryScore,
		Raw:           datatypes.NewJSONType(d.Raw),
		CreatedAt:     now,
	}
}

type TransactionRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)"`
	UserID      string          `gorm:"type:varchar(128);not null;index:idx_tx_user_occurred,priority:1"`
	JobID       string          `gorm:"type:varchar(36);index"`
	OccurredAt  time.Time       `gorm:"not null;index:idx_tx_user_occurred,priority:2"`
	Description string          `gorm:"type:text;not null"`
	Merchant    *string         `gorm:"type:varchar(512)"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency    string          `gorm:"type:varchar(8);not null"`
	Category    *string         `gorm:"type:varchar(128)"`
	Raw         datatypes.JSONType[domain.RawPayload]
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (TransactionRecord) TableName() string { return "transactions" }

func (r *TransactionRecord) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		JobID:       r.JobID,
		OccurredAt:  r.OccurredAt.UTC(),
		Description: r.Description,
		Merchant:    r.Merchant,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category,
		Raw:         r.Raw.Data(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func transactionRecordFrom(t domain.Transaction) TransactionRecord {
	return TransactionRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		JobID:       t.JobID,
		OccurredAt:  t.OccurredAt,
		Description: t.Description,
		Merchant:    t.Merchant,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Category:    t.Category,
		Raw:         datatypes.NewJSONType(t.Raw),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
