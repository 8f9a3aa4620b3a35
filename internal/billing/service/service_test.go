package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	balanceservice "github.com/manabill-io/manabill/internal/balance/service"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	billingrepo "github.com/manabill-io/manabill/internal/billing/repository"
	"github.com/manabill-io/manabill/internal/billing/service"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	catalogrepo "github.com/manabill-io/manabill/internal/catalog/repository"
	catalogservice "github.com/manabill-io/manabill/internal/catalog/service"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	contractrepo "github.com/manabill-io/manabill/internal/contract/repository"
	"github.com/manabill-io/manabill/internal/observability"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

const (
	tenantID   = snowflake.ID(1)
	guardianID = snowflake.ID(10)
	studentID  = snowflake.ID(20)
	courseID   = snowflake.ID(30)
	actorID    = snowflake.ID(99)
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now(ctx context.Context) time.Time { return c.at }

var _ clock.Clock = fixedClock{}

func newTestService(t *testing.T, now time.Time) (billingdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.ProductPrice{},
		&catalogdomain.Course{},
		&catalogdomain.CourseItem{},
		&contractdomain.Contract{},
		&contractdomain.StudentItem{},
		&billingdomain.ConfirmedBilling{},
		&billingdomain.MonthlyBillingDeadline{},
		&billingdomain.DeadlineHistory{},
		&billingdomain.PaymentProvider{},
		&balancedomain.GuardianBalance{},
		&balancedomain.OffsetLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := fixedClock{at: now}
	log := zap.NewNop()

	cfg, err := config.Load()
	require.NoError(t, err)

	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{
		DB:   db,
		Log:  log,
		Repo: catalogrepo.New(),
	})
	balanceSvc := balanceservice.NewService(balanceservice.ServiceParam{
		Log:   log,
		GenID: node,
		Clock: clk,
	})

	svc := service.NewService(service.ServiceParam{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        clk,
		Config:       cfg,
		Repo:         billingrepo.New(),
		ContractRepo: contractrepo.New(),
		CatalogSvc:   catalogSvc,
		BalanceSvc:   balanceSvc,
		Engine:       engine.New(),
		Metrics:      observability.NewMetrics(observability.NewRegistry()),
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

func TestApplyPaymentExactMatchFirst(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 6, 1000)
	seedBilling(t, db, 2, 2025, 7, 500)
	seedBilling(t, db, 3, 2025, 8, 1500)

	result, err := svc.ApplyPayment(context.Background(), db, tenantID, guardianID, 500, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.AppliedAmount)
	assert.Equal(t, int64(0), result.Leftover)
	require.Len(t, result.Applications, 1)
	assert.Equal(t, snowflake.ID(2), result.Applications[0].BillingID)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "id = ?", 2).Error)
	assert.Equal(t, billingdomain.BillingStatusPaid, bill.Status)
	var untouched billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&untouched, "id = ?", 1).Error)
	assert.Equal(t, int64(1000), untouched.Balance)
}

func TestApplyPaymentChronological(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 6, 1000)
	seedBilling(t, db, 2, 2025, 7, 500)

	result, err := svc.ApplyPayment(context.Background(), db, tenantID, guardianID, 1200, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), result.AppliedAmount)
	assert.Equal(t, int64(0), result.Leftover)
	require.Len(t, result.Applications, 2)
	assert.Equal(t, snowflake.ID(1), result.Applications[0].BillingID)
	assert.Equal(t, int64(1000), result.Applications[0].Amount)
	assert.Equal(t, int64(200), result.Applications[1].Amount)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "id = ?", 2).Error)
	assert.Equal(t, billingdomain.BillingStatusPartial, bill.Status)
	assert.Equal(t, int64(300), bill.Balance)
}

func TestApplyPaymentLeftover(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedBilling(t, db, 1, 2025, 8, 1000)

	result, err := svc.ApplyPayment(context.Background(), db, tenantID, guardianID, 1300, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.AppliedAmount)
	assert.Equal(t, int64(300), result.Leftover)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)

	_, err := svc.ApplyPayment(context.Background(), db, tenantID, guardianID, 0, "test")
	assert.ErrorIs(t, err, billingdomain.ErrInvalidAmount)
}

func seedStudentItem(t *testing.T, db *gorm.DB, id snowflake.ID, contract snowflake.ID, year, month int, unit int64, tax int64) {
	t.Helper()
	cid := contract
	require.NoError(t, db.Create(&contractdomain.StudentItem{
		ID:           id,
		TenantID:     tenantID,
		GuardianID:   guardianID,
		StudentID:    studentID,
		ContractID:   &cid,
		ProductID:    snowflake.ID(500),
		ProductName:  "小学生コース授業料",
		BillingYear:  year,
		BillingMonth: month,
		UnitPrice:    unit,
		Quantity:     1,
		TaxAmount:    tax,
		FinalPrice:   unit,
	}).Error)
}

func seedActiveContract(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	require.NoError(t, db.Create(&contractdomain.Contract{
		ID:             id,
		TenantID:       tenantID,
		GuardianID:     guardianID,
		StudentID:      studentID,
		CourseID:       courseID,
		DayOfWeek:      1,
		StartTime:      "16:00",
		Status:         contractdomain.ContractStatusActive,
		EnrollmentDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	}).Error)
}

func TestCloseMonth(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)
	seedStudentItem(t, db, 200, 100, 2025, 9, 11000, 1000)

	report, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
		TenantID: tenantID,
		Year:     2025,
		Month:    9,
		ActorID:  actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.StudentsBilled)
	assert.Equal(t, int64(11000), report.TotalAmount)
	assert.Empty(t, report.Errors)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "student_id = ? AND year = ? AND month = ?", studentID, 2025, 9).Error)
	assert.Equal(t, int64(10000), bill.Subtotal)
	assert.Equal(t, int64(1000), bill.TaxAmount)
	assert.Equal(t, int64(11000), bill.TotalAmount)
	assert.Equal(t, billingdomain.BillingStatusConfirmed, bill.Status)

	var item contractdomain.StudentItem
	require.NoError(t, db.First(&item, "id = ?", 200).Error)
	assert.True(t, item.IsBilled)

	var deadline billingdomain.MonthlyBillingDeadline
	require.NoError(t, db.First(&deadline, "year = ? AND month = ?", 2025, 9).Error)
	assert.True(t, deadline.IsClosed)
	require.NotNil(t, deadline.ClosedBy)
	assert.Equal(t, actorID, *deadline.ClosedBy)

	var next billingdomain.MonthlyBillingDeadline
	require.NoError(t, db.First(&next, "year = ? AND month = ?", 2025, 10).Error)
	assert.False(t, next.IsClosed)

	var history billingdomain.DeadlineHistory
	require.NoError(t, db.First(&history, "deadline_id = ?", deadline.ID).Error)
	assert.Equal(t, billingdomain.DeadlineActionClose, history.Action)
}

func TestCloseMonthTwiceFails(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)
	seedStudentItem(t, db, 200, 100, 2025, 9, 11000, 1000)

	req := billingdomain.CloseMonthRequest{TenantID: tenantID, Year: 2025, Month: 9, ActorID: actorID}
	_, err := svc.CloseMonth(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CloseMonth(context.Background(), req)
	require.ErrorIs(t, err, billingdomain.ErrMonthAlreadyClosed)
	assert.Equal(t, "この月は既に締め済みです", err.Error())
}

func TestCloseMonthOffsetsPrepaidBalance(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)
	seedStudentItem(t, db, 200, 100, 2025, 9, 11000, 1000)
	require.NoError(t, db.Create(&balancedomain.GuardianBalance{
		ID:         300,
		TenantID:   tenantID,
		GuardianID: guardianID,
		Balance:    3000,
	}).Error)

	report, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
		TenantID: tenantID,
		Year:     2025,
		Month:    9,
		ActorID:  actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), report.OffsetAmount)

	var bill billingdomain.ConfirmedBilling
	require.NoError(t, db.First(&bill, "student_id = ?", studentID).Error)
	assert.Equal(t, int64(3000), bill.PaidAmount)
	assert.Equal(t, int64(8000), bill.Balance)
	assert.Equal(t, billingdomain.BillingStatusPartial, bill.Status)

	var balance balancedomain.GuardianBalance
	require.NoError(t, db.First(&balance, "guardian_id = ?", guardianID).Error)
	assert.Equal(t, int64(0), balance.Balance)
}

func TestCloseMonthDerivesCoursePricing(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)

	require.NoError(t, db.Create(&catalogdomain.Product{
		ID:          snowflake.ID(500),
		TenantID:    tenantID,
		BrandID:     snowflake.ID(5),
		Name:        "小学生コース授業料",
		ItemType:    catalogdomain.ItemTypeTuition,
		BasePrice:   10000,
		TaxCategory: catalogdomain.TaxCategoryStandard,
		Active:      true,
	}).Error)
	require.NoError(t, db.Create(&catalogdomain.Course{
		ID:       courseID,
		TenantID: tenantID,
		BrandID:  snowflake.ID(5),
		Name:     "小学生コース",
		Active:   true,
	}).Error)
	require.NoError(t, db.Create(&catalogdomain.CourseItem{
		ID:        snowflake.ID(600),
		TenantID:  tenantID,
		CourseID:  courseID,
		ProductID: snowflake.ID(500),
		Quantity:  1,
		Active:    true,
	}).Error)

	report, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
		TenantID: tenantID,
		Year:     2025,
		Month:    9,
		ActorID:  actorID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.StudentsBilled)
	// 10000 base plus 10% tax, prepaying October.
	assert.Equal(t, int64(11000), report.TotalAmount)

	var item contractdomain.StudentItem
	require.NoError(t, db.First(&item, "student_id = ? AND billing_year = ? AND billing_month = ?", studentID, 2025, 9).Error)
	assert.Equal(t, "2025年10月分", item.Notes)
	assert.True(t, item.IsBilled)
}

func TestCloseMonthSkipsStudentsWithNothingToBill(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)

	report, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
		TenantID: tenantID,
		Year:     2025,
		Month:    9,
		ActorID:  actorID,
	})
	require.NoError(t, err)
	// The course does not exist, so the student lands in the error
	// list instead of being billed.
	assert.Equal(t, 0, report.StudentsBilled)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, studentID, report.Errors[0].StudentID)

	var count int64
	require.NoError(t, db.Model(&billingdomain.ConfirmedBilling{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestReopenMonth(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedActiveContract(t, db, 100)
	seedStudentItem(t, db, 200, 100, 2025, 9, 11000, 1000)

	_, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
		TenantID: tenantID, Year: 2025, Month: 9, ActorID: actorID,
	})
	require.NoError(t, err)

	err = svc.ReopenMonth(context.Background(), billingdomain.ReopenMonthRequest{
		TenantID: tenantID, Year: 2025, Month: 9, ActorID: actorID,
	})
	assert.ErrorIs(t, err, billingdomain.ErrReasonRequired)

	err = svc.ReopenMonth(context.Background(), billingdomain.ReopenMonthRequest{
		TenantID: tenantID, Year: 2025, Month: 9, ActorID: actorID,
		Reason: "請求金額の修正",
	})
	require.NoError(t, err)

	var deadline billingdomain.MonthlyBillingDeadline
	require.NoError(t, db.First(&deadline, "year = ? AND month = ?", 2025, 9).Error)
	assert.False(t, deadline.IsClosed)
	assert.True(t, deadline.IsUnderReview)
	assert.Nil(t, deadline.ClosedAt)

	var histories []billingdomain.DeadlineHistory
	require.NoError(t, db.Where("deadline_id = ?", deadline.ID).Order("id").Find(&histories).Error)
	require.Len(t, histories, 2)
	assert.Equal(t, billingdomain.DeadlineActionReopen, histories[1].Action)
	assert.Equal(t, "請求金額の修正", histories[1].Reason)
}

func TestReopenMonthNotClosed(t *testing.T) {
	now := time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	err := svc.ReopenMonth(context.Background(), billingdomain.ReopenMonthRequest{
		TenantID: tenantID, Year: 2025, Month: 9, ActorID: actorID,
		Reason: "締め前の月",
	})
	assert.ErrorIs(t, err, billingdomain.ErrMonthNotClosed)
}
