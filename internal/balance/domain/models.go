// Package domain holds the prepaid guardian balance ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type GuardianBalance struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;uniqueIndex:idx_guardian_balance"`
	GuardianID snowflake.ID `gorm:"not null;uniqueIndex:idx_guardian_balance"`
	Balance    int64        `gorm:"not null;default:0"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time
}

func (GuardianBalance) TableName() string { return "guardian_balances" }

// OffsetLog is the append-only audit trail: one row per balance
// mutation, with the delta and resulting balance.
type OffsetLog struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	TenantID     snowflake.ID `gorm:"not null;index"`
	GuardianID   snowflake.ID `gorm:"not null;index"`
	Amount       int64        `gorm:"not null"`
	BalanceAfter int64        `gorm:"not null"`
	Reason       string       `gorm:"type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OffsetLog) TableName() string { return "offset_logs" }

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

// Service mutates guardian balances inside the caller's transaction so
// deposits and uses commit atomically with the surrounding write.
type Service interface {
	GetBalance(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int64, error)
	Deposit(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, reason string) (int64, error)
	// Use rejects requests exceeding the current balance.
	Use(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, reason string) (int64, error)
	ListLogs(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]OffsetLog, error)
}
