package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
)

type repository struct{}

func New() billingdomain.Repository {
	return &repository{}
}

func (r *repository) FindDeadline(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, year, month int) (*billingdomain.MonthlyBillingDeadline, error) {
	var deadline billingdomain.MonthlyBillingDeadline
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND year = ? AND month = ?", tenantID, year, month).
		First(&deadline).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &deadline, nil
}

func (r *repository) InsertDeadline(ctx context.Context, db *gorm.DB, deadline *billingdomain.MonthlyBillingDeadline) error {
	return db.WithContext(ctx).Create(deadline).Error
}

func (r *repository) UpdateDeadline(ctx context.Context, db *gorm.DB, deadline *billingdomain.MonthlyBillingDeadline) error {
	return db.WithContext(ctx).Save(deadline).Error
}

func (r *repository) InsertHistory(ctx context.Context, db *gorm.DB, history *billingdomain.DeadlineHistory) error {
	return db.WithContext(ctx).Create(history).Error
}

func (r *repository) FindActiveProvider(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*billingdomain.PaymentProvider, error) {
	var provider billingdomain.PaymentProvider
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id").
		First(&provider).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &provider, nil
}

func (r *repository) InsertBilling(ctx context.Context, db *gorm.DB, billing *billingdomain.ConfirmedBilling) error {
	return db.WithContext(ctx).Create(billing).Error
}

func (r *repository) UpdateBilling(ctx context.Context, db *gorm.DB, billing *billingdomain.ConfirmedBilling) error {
	return db.WithContext(ctx).Save(billing).Error
}

func (r *repository) DeleteBilling(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&billingdomain.ConfirmedBilling{}, "id = ?", id).Error
}

func (r *repository) FindBilling(ctx context.Context, db *gorm.DB, tenantID, studentID snowflake.ID, year, month int) (*billingdomain.ConfirmedBilling, error) {
	var billing billingdomain.ConfirmedBilling
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND student_id = ? AND year = ? AND month = ?", tenantID, studentID, year, month).
		First(&billing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &billing, nil
}

func (r *repository) ListOutstandingByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]billingdomain.ConfirmedBilling, error) {
	var billings []billingdomain.ConfirmedBilling
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ? AND status IN ?",
			tenantID, guardianID,
			[]billingdomain.BillingStatus{
				billingdomain.BillingStatusConfirmed,
				billingdomain.BillingStatusUnpaid,
				billingdomain.BillingStatusPartial,
			}).
		Order("year, month").
		Find(&billings).Error
	return billings, err
}

func (r *repository) ListByPeriod(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, year, month int) ([]billingdomain.ConfirmedBilling, error) {
	var billings []billingdomain.ConfirmedBilling
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND year = ? AND month = ?", tenantID, year, month).
		Order("id").
		Find(&billings).Error
	return billings, err
}
