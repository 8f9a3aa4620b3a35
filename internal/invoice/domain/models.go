// Package domain holds invoices issued to guardians and the payments
// recorded against them.
package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	// InvoiceStatusFailed marks a direct-debit attempt rejected for
	// insufficient funds.
	InvoiceStatusFailed InvoiceStatus = "failed"
)

type Invoice struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	GuardianID snowflake.ID `gorm:"not null;index"`
	// Number is printed on the invoice and echoed back in the debit
	// result file's memo column.
	Number string `gorm:"type:text;not null;uniqueIndex:idx_invoice_number"`
	Year   int    `gorm:"not null;index:idx_invoice_period"`
	Month  int    `gorm:"not null;index:idx_invoice_period"`

	TotalAmount int64         `gorm:"not null"`
	PaidAmount  int64         `gorm:"not null;default:0"`
	BalanceDue  int64         `gorm:"not null"`
	Status      InvoiceStatus `gorm:"type:text;not null;default:'draft'"`
	IssuedAt    *time.Time
	DueDate     *time.Time
	PaidAt      *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time
}

func (Invoice) TableName() string { return "invoices" }

// ApplyAmount books amount against the invoice and advances status.
func (inv *Invoice) ApplyAmount(amount int64, now time.Time) {
	inv.PaidAmount += amount
	inv.BalanceDue = inv.TotalAmount - inv.PaidAmount
	if inv.BalanceDue <= 0 {
		inv.Status = InvoiceStatusPaid
		paidAt := now
		inv.PaidAt = &paidAt
	} else if inv.PaidAmount > 0 {
		inv.Status = InvoiceStatusPartial
	}
}

type InvoiceLine struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	TenantID    snowflake.ID `gorm:"not null;index"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text;not null"`
	Amount      int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodDirectDebit  PaymentMethod = "direct_debit"
	PaymentMethodManual       PaymentMethod = "manual"
)

type Payment struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	TenantID   snowflake.ID  `gorm:"not null;index"`
	GuardianID snowflake.ID  `gorm:"not null;index"`
	InvoiceID  *snowflake.ID `gorm:"index"`
	Amount     int64         `gorm:"not null"`
	Method     PaymentMethod `gorm:"type:text;not null"`
	PaidAt     time.Time     `gorm:"not null"`
	Memo       string        `gorm:"type:text"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvoiceNotPayable  = errors.New("invoice_not_payable")
	ErrInvalidPayment     = errors.New("invalid_payment_amount")
	ErrGuardianNotMatched = errors.New("guardian_not_matched")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*Invoice, error)
	ListOutstandingByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]Invoice, error)

	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLine) error
	ListLines(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]InvoiceLine, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPaymentsByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]Payment, error)
}

// RecordPaymentRequest describes one incoming payment. InvoiceID is
// optional; without it the amount goes straight to confirmed billing.
type RecordPaymentRequest struct {
	TenantID   snowflake.ID
	GuardianID snowflake.ID
	InvoiceID  *snowflake.ID
	Amount     int64
	Method     PaymentMethod
	Memo       string
}

type RecordPaymentResult struct {
	PaymentID snowflake.ID
	// AppliedToBilling is the portion absorbed by outstanding
	// statements; CreditedToBalance is the remainder deposited as
	// prepaid balance.
	AppliedToBilling  int64
	CreditedToBalance int64
}

// DebitRowError records one rejected row of a debit result file.
type DebitRowError struct {
	Line    int
	Message string
}

type DebitImportReport struct {
	Succeeded int
	Failed    int
	Errors    []DebitRowError
}

type Service interface {
	// IssueInvoice builds an invoice from the guardian's outstanding
	// confirmed billing for the period.
	IssueInvoice(ctx context.Context, tenantID, guardianID snowflake.ID, year, month int) (*Invoice, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*RecordPaymentResult, error)
	// ImportDebitResults ingests a Shift-JIS direct-debit result CSV.
	ImportDebitResults(ctx context.Context, tenantID snowflake.ID, r io.Reader) (*DebitImportReport, error)
	Get(ctx context.Context, tenantID, invoiceID snowflake.ID) (*Invoice, error)
}
