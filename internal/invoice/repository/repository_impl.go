package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
)

type repository struct{}

func New() invoicedomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByNumber(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, number string) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListOutstandingByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ? AND status IN ?",
			tenantID, guardianID,
			[]invoicedomain.InvoiceStatus{
				invoicedomain.InvoiceStatusIssued,
				invoicedomain.InvoiceStatusPartial,
				invoicedomain.InvoiceStatusFailed,
			}).
		Order("year, month").
		Find(&invoices).Error
	return invoices, err
}

func (r *repository) InsertLines(ctx context.Context, db *gorm.DB, lines []invoicedomain.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) ListLines(ctx context.Context, db *gorm.DB, tenantID, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLine, error) {
	var lines []invoicedomain.InvoiceLine
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("id").
		Find(&lines).Error
	return lines, err
}

func (r *repository) InsertPayment(ctx context.Context, db *gorm.DB, payment *invoicedomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPaymentsByGuardian(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]invoicedomain.Payment, error) {
	var payments []invoicedomain.Payment
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		Order("paid_at desc").
		Find(&payments).Error
	return payments, err
}
