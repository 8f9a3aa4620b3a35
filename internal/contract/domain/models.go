// Package domain holds enrollment contracts and their billing lines.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusPaused    ContractStatus = "paused"
	ContractStatusCancelled ContractStatus = "cancelled"
)

type Contract struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	GuardianID snowflake.ID `gorm:"not null;index"`
	StudentID  snowflake.ID `gorm:"not null;index:idx_contract_identity,unique"`
	CourseID   snowflake.ID `gorm:"not null;index:idx_contract_identity,unique"`
	// DayOfWeek uses 1=Monday..7=Sunday.
	DayOfWeek int    `gorm:"not null;index:idx_contract_identity,unique"`
	StartTime string `gorm:"type:text;not null;index:idx_contract_identity,unique"`
	EndTime   string `gorm:"type:text"`
	// Voided participates in the identity index so a cancelled contract
	// frees the slot for re-enrollment. The migration additionally
	// creates a partial unique index WHERE voided = false; see there.
	Voided bool `gorm:"not null;default:false;index:idx_contract_identity,unique"`

	Status         ContractStatus `gorm:"type:text;not null;default:'active'"`
	EnrollmentDate time.Time      `gorm:"not null"`
	MileEarn       int            `gorm:"not null;default:0"`
	MileDiscount   int64          `gorm:"not null;default:0"`
	// TextbookIDs records the optional textbooks chosen at purchase,
	// comma-separated snowflake ids.
	TextbookIDs string `gorm:"type:text"`

	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time
	CancelledAt *time.Time
}

func (Contract) TableName() string { return "contracts" }

func (c Contract) IsActive() bool { return c.Status == ContractStatusActive }

// StudentItem is one persisted billing line: one product, one billing
// month, one price.
type StudentItem struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	TenantID   snowflake.ID  `gorm:"not null;index"`
	GuardianID snowflake.ID  `gorm:"not null;index"`
	StudentID  snowflake.ID  `gorm:"not null;index"`
	ContractID *snowflake.ID `gorm:"index"`
	ProductID  snowflake.ID  `gorm:"not null"`

	ProductName string `gorm:"type:text;not null"`
	// BillingYear/BillingMonth are the month the line is charged in;
	// Notes records the service month it covers (prepaid model).
	BillingYear  int    `gorm:"not null;index:idx_student_items_period"`
	BillingMonth int    `gorm:"not null;index:idx_student_items_period"`
	Notes        string `gorm:"type:text"`

	UnitPrice      int64 `gorm:"not null"`
	Quantity       int   `gorm:"not null;default:1"`
	DiscountAmount int64 `gorm:"not null;default:0"`
	TaxAmount      int64 `gorm:"not null;default:0"`
	// FinalPrice = UnitPrice*Quantity - DiscountAmount.
	FinalPrice int64 `gorm:"not null"`

	IsBilled  bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StudentItem) TableName() string { return "student_items" }

var (
	ErrContractNotFound = errors.New("contract_not_found")
	ErrContractInactive = errors.New("contract_inactive")
	ErrInvalidSchedule  = errors.New("invalid_schedule")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Contract, error)
	// FindDuplicate locates an existing non-voided contract with the
	// same purchase identity; the idempotency guard for confirmation.
	FindDuplicate(ctx context.Context, db *gorm.DB, tenantID, studentID, courseID snowflake.ID, dayOfWeek int, startTime string) (*Contract, error)
	ListActiveByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]Contract, error)
	CountActiveByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int64, error)
	ListActiveByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]Contract, error)

	InsertStudentItems(ctx context.Context, db *gorm.DB, items []StudentItem) error
	ListUnbilledByStudentPeriod(ctx context.Context, db *gorm.DB, tenantID, studentID snowflake.ID, year, month int) ([]StudentItem, error)
	ListByGuardianPeriod(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, year, month int) ([]StudentItem, error)
	MarkItemsBilled(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	ListByContract(ctx context.Context, db *gorm.DB, tenantID, contractID snowflake.ID) ([]StudentItem, error)
}
