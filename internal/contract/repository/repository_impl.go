package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
)

type repository struct{}

func New() contractdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract) error {
	return db.WithContext(ctx).Save(contract).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*contractdomain.Contract, error) {
	var contract contractdomain.Contract
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&contract).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

func (r *repository) FindDuplicate(ctx context.Context, db *gorm.DB, tenantID, studentID, courseID snowflake.ID, dayOfWeek int, startTime string) (*contractdomain.Contract, error) {
	var contract contractdomain.Contract
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND course_id = ? AND day_of_week = ? AND start_time = ? AND voided = ?",
			tenantID, studentID, courseID, dayOfWeek, startTime, false).
		First(&contract).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

func (r *repository) ListActiveByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]contractdomain.Contract, error) {
	var contracts []contractdomain.Contract
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ? AND status = ?", tenantID, guardianID, contractdomain.ContractStatusActive).
		Find(&contracts).Error
	return contracts, err
}

func (r *repository) CountActiveByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&contractdomain.Contract{}).
		Where("tenant_id = ? AND guardian_id = ? AND status = ?", tenantID, guardianID, contractdomain.ContractStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) ListActiveByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]contractdomain.Contract, error) {
	var contracts []contractdomain.Contract
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, contractdomain.ContractStatusActive).
		Order("id").
		Find(&contracts).Error
	return contracts, err
}

func (r *repository) InsertStudentItems(ctx context.Context, db *gorm.DB, items []contractdomain.StudentItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ListUnbilledByStudentPeriod(ctx context.Context, db *gorm.DB, tenantID, studentID snowflake.ID, year, month int) ([]contractdomain.StudentItem, error) {
	var items []contractdomain.StudentItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND billing_year = ? AND billing_month = ? AND is_billed = ?",
			tenantID, studentID, year, month, false).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *repository) ListByGuardianPeriod(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, year, month int) ([]contractdomain.StudentItem, error) {
	var items []contractdomain.StudentItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ? AND billing_year = ? AND billing_month = ?",
			tenantID, guardianID, year, month).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *repository) MarkItemsBilled(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&contractdomain.StudentItem{}).
		Where("id IN ?", ids).
		Update("is_billed", true).Error
}

func (r *repository) ListByContract(ctx context.Context, db *gorm.DB, tenantID, contractID snowflake.ID) ([]contractdomain.StudentItem, error) {
	var items []contractdomain.StudentItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND contract_id = ?", tenantID, contractID).
		Order("id").
		Find(&items).Error
	return items, err
}
