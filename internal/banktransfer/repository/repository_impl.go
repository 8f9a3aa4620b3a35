package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
)

type repository struct{}

func New() transferdomain.Repository {
	return &repository{}
}

func (r *repository) InsertImport(ctx context.Context, db *gorm.DB, imp *transferdomain.BankTransferImport) error {
	return db.WithContext(ctx).Create(imp).Error
}

func (r *repository) FindImportByBatchID(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchID string) (*transferdomain.BankTransferImport, error) {
	var imp transferdomain.BankTransferImport
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND batch_id = ?", tenantID, batchID).
		First(&imp).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &imp, nil
}

func (r *repository) InsertTransfers(ctx context.Context, db *gorm.DB, transfers []transferdomain.BankTransfer) error {
	if len(transfers) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&transfers).Error
}

func (r *repository) UpdateTransfer(ctx context.Context, db *gorm.DB, transfer *transferdomain.BankTransfer) error {
	return db.WithContext(ctx).Save(transfer).Error
}

func (r *repository) FindTransferByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*transferdomain.BankTransfer, error) {
	var transfer transferdomain.BankTransfer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&transfer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) ListByImport(ctx context.Context, db *gorm.DB, tenantID, importID snowflake.ID) ([]transferdomain.BankTransfer, error) {
	var transfers []transferdomain.BankTransfer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND import_id = ?", tenantID, importID).
		Order("id").
		Find(&transfers).Error
	return transfers, err
}

func (r *repository) ListByStatus(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, status transferdomain.TransferStatus) ([]transferdomain.BankTransfer, error) {
	var transfers []transferdomain.BankTransfer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Order("id").
		Find(&transfers).Error
	return transfers, err
}
