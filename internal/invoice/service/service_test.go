package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	balanceservice "github.com/manabill-io/manabill/internal/balance/service"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	billingrepo "github.com/manabill-io/manabill/internal/billing/repository"
	billingservice "github.com/manabill-io/manabill/internal/billing/service"
	catalogrepo "github.com/manabill-io/manabill/internal/catalog/repository"
	catalogservice "github.com/manabill-io/manabill/internal/catalog/service"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	contractrepo "github.com/manabill-io/manabill/internal/contract/repository"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
	directoryrepo "github.com/manabill-io/manabill/internal/directory/repository"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
	invoicerepo "github.com/manabill-io/manabill/internal/invoice/repository"
	"github.com/manabill-io/manabill/internal/invoice/service"
	"github.com/manabill-io/manabill/internal/observability"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

const (
	tenantID   = snowflake.ID(1)
	guardianID = snowflake.ID(10)
	studentID  = snowflake.ID(20)
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now(ctx context.Context) time.Time { return c.at }

var _ clock.Clock = fixedClock{}

func newTestService(t *testing.T, now time.Time) (invoicedomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&billingdomain.ConfirmedBilling{},
		&billingdomain.MonthlyBillingDeadline{},
		&billingdomain.DeadlineHistory{},
		&billingdomain.PaymentProvider{},
		&balancedomain.GuardianBalance{},
		&balancedomain.OffsetLog{},
		&directorydomain.Guardian{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&invoicedomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := fixedClock{at: now}
	log := zap.NewNop()

	cfg, err := config.Load()
	require.NoError(t, err)

	balanceSvc := balanceservice.NewService(balanceservice.ServiceParam{
		Log:   log,
		GenID: node,
		Clock: clk,
	})
	billingSvc := billingservice.NewService(billingservice.ServiceParam{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Config:       cfg,
		Repo:         billingrepo.New(),
		ContractRepo: contractrepo.New(),
		CatalogSvc: catalogservice.NewService(catalogservice.ServiceParam{
			DB:   db,
			Log:  log,
			Repo: catalogrepo.New(),
		}),
		BalanceSvc: balanceSvc,
		Engine:     engine.New(),
		Metrics:    observability.NewMetrics(observability.NewRegistry()),
	})

	svc := service.NewService(service.ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Config:        cfg,
		Repo:          invoicerepo.New(),
		BillingRepo:   billingrepo.New(),
		BillingSvc:    billingSvc,
		BalanceSvc:    balanceSvc,
		DirectoryRepo: directoryrepo.New(),
	})
	return svc, db
}

func seedBilling(t *testing.T, db *gorm.DB, id snowflake.ID, year, month int, total int64) {
	t.Helper()
	require.NoError(t, db.Create(&billingdomain.ConfirmedBilling{
		ID:          id,
		TenantID:    tenantID,
		GuardianID:  guardianID,
		StudentID:   studentID,
		Year:        year,
		Month:       month,
		Subtotal:    total,
		TotalAmount: total,
		Balance:     total,
		Status:      billingdomain.BillingStatusUnpaid,
	}).Error)
}

func seedGuardian(t *testing.T, db *gorm.DB, number string) {
	t.Helper()
	require.NoError(t, db.Create(&directorydomain.Guardian{
		ID:       guardianID,
		TenantID: tenantID,
		Number:   number,
		Name:     "山田太郎",
		KanaName: "ヤマダタロウ",
	}).Error)
}

func TestIssueInvoice(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 9, 11000)
	seedBilling(t, db, 2, 2025, 8, 5000)

	invoice, err := svc.IssueInvoice(context.Background(), tenantID, guardianID, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(11000), invoice.TotalAmount)
	assert.Equal(t, int64(11000), invoice.BalanceDue)
	assert.Equal(t, invoicedomain.InvoiceStatusIssued, invoice.Status)
	assert.Contains(t, invoice.Number, "INV-202509-")
	require.NotNil(t, invoice.DueDate)
	assert.Equal(t, time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC), *invoice.DueDate)

	var lines []invoicedomain.InvoiceLine
	require.NoError(t, db.Where("invoice_id = ?", invoice.ID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, "2025年9月分 授業料等", lines[0].Description)
}

func TestIssueInvoiceNothingOutstanding(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	_, err := svc.IssueInvoice(context.Background(), tenantID, guardianID, 2025, 9)
	assert.ErrorIs(t, err, billingdomain.ErrBillingNotFound)
}

func TestRecordPaymentSettlesInvoiceAndBilling(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 9, 11000)

	invoice, err := svc.IssueInvoice(context.Background(), tenantID, guardianID, 2025, 9)
	require.NoError(t, err)

	result, err := svc.RecordPayment(context.Background(), invoicedomain.RecordPaymentRequest{
		TenantID:   tenantID,
		GuardianID: guardianID,
		InvoiceID:  &invoice.ID,
		Amount:     11000,
		Method:     invoicedomain.PaymentMethodManual,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11000), result.AppliedToBilling)
	assert.Equal(t, int64(0), result.CreditedToBalance)

	var stored invoicedomain.Invoice
	require.NoError(t, db.First(&stored, "id = ?", invoice.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "id = ?", 1).Error)
	assert.Equal(t, billingdomain.BillingStatusPaid, bill.Status)
}

func TestRecordPaymentLeftoverBecomesBalance(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 9, 10000)

	result, err := svc.RecordPayment(context.Background(), invoicedomain.RecordPaymentRequest{
		TenantID:   tenantID,
		GuardianID: guardianID,
		Amount:     12000,
		Method:     invoicedomain.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), result.AppliedToBilling)
	assert.Equal(t, int64(2000), result.CreditedToBalance)

	var balance balancedomain.GuardianBalance
	require.NoError(t, db.First(&balance, "guardian_id = ?", guardianID).Error)
	assert.Equal(t, int64(2000), balance.Balance)
}

func TestRecordPaymentRejectsInvalidAmount(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	_, err := svc.RecordPayment(context.Background(), invoicedomain.RecordPaymentRequest{
		TenantID:   tenantID,
		GuardianID: guardianID,
		Amount:     0,
		Method:     invoicedomain.PaymentMethodManual,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidPayment)
}

func shiftJIS(t *testing.T, s string) *strings.Reader {
	t.Helper()
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), s)
	require.NoError(t, err)
	return strings.NewReader(encoded)
}

func TestImportDebitResults(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedGuardian(t, db, "G-0001")
	seedBilling(t, db, 1, 2025, 9, 11000)

	invoice, err := svc.IssueInvoice(context.Background(), tenantID, guardianID, 2025, 9)
	require.NoError(t, err)

	csv := "顧客番号,結果コード,引落金額,備考\n" +
		"G-0001,0,\"11,000\"," + invoice.Number + "\n" +
		"G-9999,0,5000,\n"

	report, err := svc.ImportDebitResults(context.Background(), tenantID, shiftJIS(t, csv))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Line)

	var stored invoicedomain.Invoice
	require.NoError(t, db.First(&stored, "id = ?", invoice.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, stored.Status)
}

func TestImportDebitResultsInsufficientFunds(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedGuardian(t, db, "G-0001")
	seedBilling(t, db, 1, 2025, 9, 11000)

	invoice, err := svc.IssueInvoice(context.Background(), tenantID, guardianID, 2025, 9)
	require.NoError(t, err)

	csv := "顧客番号,結果コード,引落金額,備考\n" +
		"G-0001,1,11000," + invoice.Number + "\n"

	report, err := svc.ImportDebitResults(context.Background(), tenantID, shiftJIS(t, csv))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Errors)

	var stored invoicedomain.Invoice
	require.NoError(t, db.First(&stored, "id = ?", invoice.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusFailed, stored.Status)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "id = ?", 1).Error)
	assert.Equal(t, int64(11000), bill.Balance)
}

func TestImportDebitResultsMissingColumn(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	_, err := svc.ImportDebitResults(context.Background(), tenantID, shiftJIS(t, "顧客番号,備考\nG-0001,x\n"))
	assert.Error(t, err)
}
