package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	billingrepo "github.com/manabill-io/manabill/internal/billing/repository"
	"github.com/manabill-io/manabill/internal/clock"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	contractrepo "github.com/manabill-io/manabill/internal/contract/repository"
	"github.com/manabill-io/manabill/internal/contract/service"
)

const (
	tenantID   = snowflake.ID(1)
	guardianID = snowflake.ID(10)
	studentID  = snowflake.ID(20)
	courseID   = snowflake.ID(30)
	contractID = snowflake.ID(40)
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now(ctx context.Context) time.Time { return c.at }

var _ clock.Clock = fixedClock{}

func newTestService(t *testing.T, now time.Time) (contractdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractdomain.Contract{},
		&contractdomain.StudentItem{},
		&billingdomain.MonthlyBillingDeadline{},
	))

	svc := service.NewService(service.ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       fixedClock{at: now},
		Repo:        contractrepo.New(),
		BillingRepo: billingrepo.New(),
	})
	return svc, db
}

func seedContract(t *testing.T, db *gorm.DB, status contractdomain.ContractStatus) {
	t.Helper()
	require.NoError(t, db.Create(&contractdomain.Contract{
		ID:             contractID,
		TenantID:       tenantID,
		GuardianID:     guardianID,
		StudentID:      studentID,
		CourseID:       courseID,
		DayOfWeek:      1,
		StartTime:      "16:00",
		EndTime:        "17:00",
		Status:         status,
		EnrollmentDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
}

func seedDeadline(t *testing.T, db *gorm.DB, year, month int, closed, underReview bool) {
	t.Helper()
	require.NoError(t, db.Create(&billingdomain.MonthlyBillingDeadline{
		ID:            snowflake.ID(int64(year)*100 + int64(month)),
		TenantID:      tenantID,
		Year:          year,
		Month:         month,
		ClosingDay:    25,
		IsClosed:      closed,
		IsUnderReview: underReview,
	}).Error)
}

func TestChangeSchedule(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedContract(t, db, contractdomain.ContractStatusActive)

	got, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "staff",
		DayOfWeek:  3,
		StartTime:  "18:00",
		EndTime:    "19:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.DayOfWeek)
	assert.Equal(t, "18:00", got.StartTime)

	var stored contractdomain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contractID).Error)
	assert.Equal(t, 3, stored.DayOfWeek)
	assert.Equal(t, "19:00", stored.EndTime)
}

func TestChangeScheduleValidatesInput(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedContract(t, db, contractdomain.ContractStatusActive)

	for _, day := range []int{0, 8} {
		_, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
			TenantID:   tenantID,
			ContractID: contractID,
			DayOfWeek:  day,
			StartTime:  "18:00",
		})
		assert.ErrorIs(t, err, contractdomain.ErrInvalidSchedule)
	}

	_, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		DayOfWeek:  3,
	})
	assert.ErrorIs(t, err, contractdomain.ErrInvalidSchedule)
}

func TestChangeScheduleRejectsClosedPeriod(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedContract(t, db, contractdomain.ContractStatusActive)
	seedDeadline(t, db, 2025, 9, true, false)

	_, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "staff",
		DayOfWeek:  3,
		StartTime:  "18:00",
	})
	assert.ErrorIs(t, err, billingdomain.ErrPeriodLocked)
}

func TestChangeScheduleUnderReviewNeedsAccountingRole(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedContract(t, db, contractdomain.ContractStatusActive)
	seedDeadline(t, db, 2025, 9, false, true)

	_, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "staff",
		DayOfWeek:  3,
		StartTime:  "18:00",
	})
	assert.ErrorIs(t, err, billingdomain.ErrPeriodLocked)

	got, err := svc.ChangeSchedule(context.Background(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "accounting",
		DayOfWeek:  3,
		StartTime:  "18:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.DayOfWeek)
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	seedContract(t, db, contractdomain.ContractStatusActive)

	got, err := svc.Cancel(context.Background(), contractdomain.CancelRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "admin",
		Reason:     "transfer to another school",
	})
	require.NoError(t, err)
	assert.Equal(t, contractdomain.ContractStatusCancelled, got.Status)
	assert.True(t, got.Voided)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, now, got.CancelledAt.UTC())

	// A cancelled contract cannot be cancelled again.
	_, err = svc.Cancel(context.Background(), contractdomain.CancelRequest{
		TenantID:   tenantID,
		ContractID: contractID,
		ActorRole:  "admin",
	})
	assert.ErrorIs(t, err, contractdomain.ErrContractInactive)
}

func TestGetNotFound(t *testing.T) {
	now := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, now)

	_, err := svc.Get(context.Background(), tenantID, snowflake.ID(999))
	assert.ErrorIs(t, err, contractdomain.ErrContractNotFound)
}
