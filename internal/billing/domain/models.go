// Package domain contains the monthly billing close models: confirmed
// billing statements, billing deadlines and payment providers.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type BillingStatus string

const (
	BillingStatusConfirmed BillingStatus = "confirmed"
	BillingStatusUnpaid    BillingStatus = "unpaid"
	BillingStatusPartial   BillingStatus = "partial"
	BillingStatusPaid      BillingStatus = "paid"
)

// ConfirmedBilling is the monthly per-student statement produced by
// month close. Balance = TotalAmount - PaidAmount always; status moves
// unpaid -> partial -> paid and never regresses except via reopen.
type ConfirmedBilling struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	GuardianID snowflake.ID `gorm:"not null;index"`
	StudentID  snowflake.ID `gorm:"not null;index"`
	Year       int          `gorm:"not null;index:idx_confirmed_billing_period"`
	Month      int          `gorm:"not null;index:idx_confirmed_billing_period"`

	Subtotal    int64         `gorm:"not null"`
	TaxAmount   int64         `gorm:"not null;default:0"`
	TotalAmount int64         `gorm:"not null"`
	PaidAmount  int64         `gorm:"not null;default:0"`
	Balance     int64         `gorm:"not null"`
	Status      BillingStatus `gorm:"type:text;not null;default:'confirmed'"`
	PaidAt      *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time
}

func (ConfirmedBilling) TableName() string { return "confirmed_billings" }

// ApplyAmount books amount against the statement and advances status.
func (b *ConfirmedBilling) ApplyAmount(amount int64, now time.Time) {
	b.PaidAmount += amount
	b.Balance = b.TotalAmount - b.PaidAmount
	if b.Balance <= 0 {
		b.Status = BillingStatusPaid
		paidAt := now
		b.PaidAt = &paidAt
	} else if b.PaidAmount > 0 {
		b.Status = BillingStatusPartial
	}
}

// MonthlyBillingDeadline controls whether a (tenant, year, month)
// billing period accepts edits.
type MonthlyBillingDeadline struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex:idx_deadline_period"`
	Year     int          `gorm:"not null;uniqueIndex:idx_deadline_period"`
	Month    int          `gorm:"not null;uniqueIndex:idx_deadline_period"`

	ClosingDay    int  `gorm:"not null"`
	IsClosed      bool `gorm:"not null;default:false"`
	IsUnderReview bool `gorm:"not null;default:false"`
	ClosedAt      *time.Time
	ClosedBy      *snowflake.ID

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time
}

func (MonthlyBillingDeadline) TableName() string { return "monthly_billing_deadlines" }

type DeadlineAction string

const (
	DeadlineActionClose  DeadlineAction = "close"
	DeadlineActionReopen DeadlineAction = "reopen"
)

// DeadlineHistory is the audit trail of close/reopen events.
type DeadlineHistory struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	TenantID   snowflake.ID   `gorm:"not null;index"`
	DeadlineID snowflake.ID   `gorm:"not null;index"`
	Action     DeadlineAction `gorm:"type:text;not null"`
	Reason     string         `gorm:"type:text"`
	ActorID    snowflake.ID   `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DeadlineHistory) TableName() string { return "deadline_histories" }

// PaymentProvider supplies the tenant's default closing day.
type PaymentProvider struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	TenantID          snowflake.ID `gorm:"not null;index"`
	Name              string       `gorm:"type:text;not null"`
	DefaultClosingDay int          `gorm:"not null;default:25"`
	IsActive          bool         `gorm:"not null;default:true"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentProvider) TableName() string { return "payment_providers" }

type ActorRole string

const (
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleAccounting ActorRole = "accounting"
	ActorRoleStaff      ActorRole = "staff"
)

// CanEditByRole gates billing-line mutation while a period is under
// review.
func CanEditByRole(role ActorRole) bool {
	return role == ActorRoleAdmin || role == ActorRoleAccounting
}

var (
	// ErrMonthAlreadyClosed keeps the operator-facing message of the
	// legacy system.
	ErrMonthAlreadyClosed = errors.New("この月は既に締め済みです")
	ErrMonthNotClosed     = errors.New("month_not_closed")
	ErrReasonRequired     = errors.New("reopen_reason_required")
	ErrPeriodLocked       = errors.New("billing_period_locked")
	ErrBillingNotFound    = errors.New("confirmed_billing_not_found")
	ErrInvalidAmount      = errors.New("invalid_amount")
)

type Repository interface {
	FindDeadline(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, year, month int) (*MonthlyBillingDeadline, error)
	InsertDeadline(ctx context.Context, db *gorm.DB, deadline *MonthlyBillingDeadline) error
	UpdateDeadline(ctx context.Context, db *gorm.DB, deadline *MonthlyBillingDeadline) error
	InsertHistory(ctx context.Context, db *gorm.DB, history *DeadlineHistory) error

	FindActiveProvider(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*PaymentProvider, error)

	InsertBilling(ctx context.Context, db *gorm.DB, billing *ConfirmedBilling) error
	UpdateBilling(ctx context.Context, db *gorm.DB, billing *ConfirmedBilling) error
	DeleteBilling(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindBilling(ctx context.Context, db *gorm.DB, tenantID, studentID snowflake.ID, year, month int) (*ConfirmedBilling, error)
	// ListOutstandingByGuardian returns confirmed/unpaid/partial bills
	// ordered chronologically by (year, month).
	ListOutstandingByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]ConfirmedBilling, error)
	ListByPeriod(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, year, month int) ([]ConfirmedBilling, error)
}
