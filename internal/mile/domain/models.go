// Package domain holds the loyalty-mile ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type TransactionKind string

const (
	TransactionKindEarn TransactionKind = "earn"
	TransactionKindUse  TransactionKind = "use"
)

// MileTransaction is append-only; BalanceAfter is the denormalized
// running total recomputed at each insert.
type MileTransaction struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	TenantID   snowflake.ID    `gorm:"not null;index"`
	GuardianID snowflake.ID    `gorm:"not null;index"`
	ContractID *snowflake.ID   `gorm:"index"`
	Kind       TransactionKind `gorm:"type:text;not null"`
	// Miles is the signed delta: positive earn, negative use.
	Miles          int       `gorm:"not null"`
	BalanceAfter   int       `gorm:"not null"`
	DiscountAmount int64     `gorm:"not null;default:0"`
	Reason         string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MileTransaction) TableName() string { return "mile_transactions" }

var (
	ErrInsufficientMiles   = errors.New("insufficient_miles")
	ErrMileUseNotAllowed   = errors.New("mile_use_requires_two_contracts")
	ErrInvalidMileAmount   = errors.New("invalid_mile_amount")
	ErrGuardianUnavailable = errors.New("guardian_not_found")
)

// GrantReport summarizes one monthly batch run; per-guardian failures
// are collected, not fatal.
type GrantReport struct {
	Granted int
	Errors  []GrantError
}

type GrantError struct {
	GuardianID snowflake.ID
	Err        error
}

type Service interface {
	GetBalance(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int, error)
	// CalculateDiscount returns the tiered yen discount for a mile
	// balance: 0 below 4 miles, then floor((miles-2)/2) * 500.
	CalculateDiscount(miles int) int64
	// CanUseMiles requires the guardian to hold at least two active
	// course contracts.
	CanUseMiles(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (bool, error)
	Earn(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, contractID *snowflake.ID, miles int, reason string) (*MileTransaction, error)
	Use(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, contractID *snowflake.ID, miles int, discountAmount int64, reason string) (*MileTransaction, error)
	// CalculateMonthlyMiles sums the mile value of every active product
	// in the contract's course plus the contract's current-month
	// student items.
	CalculateMonthlyMiles(ctx context.Context, db *gorm.DB, tenantID, contractID snowflake.ID, year, month int) (int, error)
	// ProcessMonthlyMiles grants monthly miles to every guardian with
	// an active contract; one guardian's failure does not abort the
	// batch.
	ProcessMonthlyMiles(ctx context.Context, tenantID snowflake.ID, year, month int) (*GrantReport, error)
}
