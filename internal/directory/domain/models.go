// Package domain holds the guardian/student directory consumed by
// pricing, billing and transfer matching.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Brand struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`
}

func (Brand) TableName() string { return "brands" }

type Guardian struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	// Number is the external guardian number printed on debit files
	// and used as a bank-transfer matching hint.
	Number    string    `gorm:"type:text;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	KanaName  string    `gorm:"type:text;not null"`
	Email     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Guardian) TableName() string { return "guardians" }

type Student struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	GuardianID snowflake.ID `gorm:"not null;index"`
	BrandID    snowflake.ID `gorm:"not null;index"`
	Name       string       `gorm:"type:text;not null"`
	KanaName   string       `gorm:"type:text"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Student) TableName() string { return "students" }

var (
	ErrGuardianNotFound = errors.New("guardian_not_found")
	ErrStudentNotFound  = errors.New("student_not_found")
)

type Repository interface {
	FindGuardianByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Guardian, error)
	FindGuardianByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*Guardian, error)
	// FindGuardiansByKanaSubstring matches case-insensitively on the
	// guardian's kana name; used by bank-transfer auto-matching.
	FindGuardiansByKanaSubstring(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, text string) ([]Guardian, error)
	FindStudentByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Student, error)
	ListStudentsByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]Student, error)
}
