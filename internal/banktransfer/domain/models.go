// Package domain holds imported bank-transfer rows and their matching
// state. A row moves pending -> matched/unmatched -> applied.
package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusMatched   TransferStatus = "matched"
	TransferStatusUnmatched TransferStatus = "unmatched"
	TransferStatusApplied   TransferStatus = "applied"
)

// BankTransferImport is one uploaded file.
type BankTransferImport struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	// BatchID is the external reference handed back to the uploader.
	BatchID   string    `gorm:"type:text;not null;uniqueIndex"`
	FileName  string    `gorm:"type:text"`
	RowCount  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BankTransferImport) TableName() string { return "bank_transfer_imports" }

// BankTransfer is one line of an imported file.
type BankTransfer struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	ImportID snowflake.ID `gorm:"not null;index"`

	TransferDate time.Time `gorm:"not null"`
	Amount       int64     `gorm:"not null"`
	PayerName    string    `gorm:"type:text;not null"`
	BankName     string    `gorm:"type:text"`
	BranchName   string    `gorm:"type:text"`

	Status     TransferStatus `gorm:"type:text;not null;default:'pending';index"`
	GuardianID *snowflake.ID  `gorm:"index"`
	PaymentID  *snowflake.ID
	AppliedAt  *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time
}

func (BankTransfer) TableName() string { return "bank_transfers" }

var (
	ErrTransferNotFound       = errors.New("bank_transfer_not_found")
	ErrTransferNotMatched     = errors.New("bank_transfer_not_matched")
	ErrTransferAlreadyApplied = errors.New("bank_transfer_already_applied")
	ErrAmbiguousMatch         = errors.New("bank_transfer_ambiguous_match")
)

type Repository interface {
	InsertImport(ctx context.Context, db *gorm.DB, imp *BankTransferImport) error
	FindImportByBatchID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) (*BankTransferImport, error)

	InsertTransfers(ctx context.Context, db *gorm.DB, transfers []BankTransfer) error
	UpdateTransfer(ctx context.Context, db *gorm.DB, transfer *BankTransfer) error
	FindTransferByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*BankTransfer, error)
	ListByImport(ctx context.Context, db *gorm.DB, tenantID, importID snowflake.ID) ([]BankTransfer, error)
	ListByStatus(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, status TransferStatus) ([]BankTransfer, error)
}

type ImportReport struct {
	BatchID  string
	ImportID snowflake.ID
	Imported int
	Matched  int
	// Unmatched rows stay in the queue for manual resolution.
	Unmatched int
}

// ApplyRequest applies one matched transfer. InvoiceID optionally
// directs the amount at a specific invoice first.
type ApplyRequest struct {
	TenantID   snowflake.ID
	TransferID snowflake.ID
	// GuardianID overrides the auto-matched guardian for manual
	// resolution of unmatched rows.
	GuardianID *snowflake.ID
	InvoiceID  *snowflake.ID
}

type ApplyResult struct {
	PaymentID         snowflake.ID
	AppliedToBilling  int64
	CreditedToBalance int64
}

type Service interface {
	// ImportCSV ingests a Shift-JIS transfer file and auto-matches the
	// rows against guardians.
	ImportCSV(ctx context.Context, tenantID snowflake.ID, fileName string, r io.Reader) (*ImportReport, error)
	ExportCSV(ctx context.Context, tenantID, importID snowflake.ID, w io.Writer) error
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	ListUnmatched(ctx context.Context, tenantID snowflake.ID) ([]BankTransfer, error)
	Get(ctx context.Context, tenantID, transferID snowflake.ID) (*BankTransfer, error)
}
