package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
)

type repository struct{}

func New() directorydomain.Repository {
	return &repository{}
}

func (r *repository) FindGuardianByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*directorydomain.Guardian, error) {
	var guardian directorydomain.Guardian
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&guardian).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &guardian, nil
}

func (r *repository) FindGuardianByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*directorydomain.Guardian, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, nil
	}
	var guardian directorydomain.Guardian
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&guardian).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &guardian, nil
}

func (r *repository) FindGuardiansByKanaSubstring(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, text string) ([]directorydomain.Guardian, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var guardians []directorydomain.Guardian
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND LOWER(kana_name) LIKE ?", tenantID, "%"+strings.ToLower(text)+"%").
		Find(&guardians).Error
	return guardians, err
}

func (r *repository) FindStudentByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*directorydomain.Student, error) {
	var student directorydomain.Student
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&student).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

func (r *repository) ListStudentsByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]directorydomain.Student, error) {
	var students []directorydomain.Student
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		Find(&students).Error
	return students, err
}
