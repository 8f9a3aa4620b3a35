package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	catalogrepo "github.com/manabill-io/manabill/internal/catalog/repository"
	"github.com/manabill-io/manabill/internal/clock"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	contractrepo "github.com/manabill-io/manabill/internal/contract/repository"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	"github.com/manabill-io/manabill/internal/mile/service"
)

const (
	tenantID   = snowflake.ID(1)
	guardianID = snowflake.ID(10)
	studentID  = snowflake.ID(20)
	courseID   = snowflake.ID(30)
)

func newTestService(t *testing.T) (miledomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.Course{},
		&catalogdomain.CourseItem{},
		&contractdomain.Contract{},
		&contractdomain.StudentItem{},
		&miledomain.MileTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewService(service.ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.New(),
		ContractRepo: contractrepo.New(),
		CatalogRepo:  catalogrepo.New(),
	})
	return svc, db
}

func seedContract(t *testing.T, db *gorm.DB, id snowflake.ID, course snowflake.ID, status contractdomain.ContractStatus) {
	t.Helper()
	require.NoError(t, db.Create(&contractdomain.Contract{
		ID:         id,
		TenantID:   tenantID,
		GuardianID: guardianID,
		StudentID:  studentID,
		CourseID:   course,
		DayOfWeek:  1,
		StartTime:  "16:00",
		Status:     status,
	}).Error)
}

func TestCalculateDiscountTiers(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, int64(0), svc.CalculateDiscount(0))
	assert.Equal(t, int64(0), svc.CalculateDiscount(3))
	assert.Equal(t, int64(500), svc.CalculateDiscount(4))
	assert.Equal(t, int64(500), svc.CalculateDiscount(5))
	assert.Equal(t, int64(1000), svc.CalculateDiscount(6))
	assert.Equal(t, int64(1500), svc.CalculateDiscount(8))

	// Non-decreasing over the whole range.
	prev := int64(0)
	for miles := 0; miles <= 40; miles++ {
		discount := svc.CalculateDiscount(miles)
		assert.GreaterOrEqual(t, discount, prev)
		prev = discount
	}
}

func TestCanUseMilesRequiresTwoContracts(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	ok, err := svc.CanUseMiles(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.False(t, ok)

	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)
	ok, err = svc.CanUseMiles(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.False(t, ok)

	seedContract(t, db, 101, courseID+1, contractdomain.ContractStatusActive)
	ok, err = svc.CanUseMiles(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUseRedeemsAgainstBalance(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)
	seedContract(t, db, 101, courseID+1, contractdomain.ContractStatusActive)

	_, err := svc.Earn(ctx, db, tenantID, guardianID, nil, 10, "付与")
	require.NoError(t, err)

	txn, err := svc.Use(ctx, db, tenantID, guardianID, nil, 6, 1000, "割引利用")
	require.NoError(t, err)
	assert.Equal(t, -6, txn.Miles)
	assert.Equal(t, 4, txn.BalanceAfter)
	assert.Equal(t, int64(1000), txn.DiscountAmount)

	balance, err := svc.GetBalance(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
}

func TestUseRejectsInsufficientMiles(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)
	seedContract(t, db, 101, courseID+1, contractdomain.ContractStatusActive)

	_, err := svc.Earn(ctx, db, tenantID, guardianID, nil, 3, "付与")
	require.NoError(t, err)

	_, err = svc.Use(ctx, db, tenantID, guardianID, nil, 4, 500, "割引利用")
	assert.ErrorIs(t, err, miledomain.ErrInsufficientMiles)
}

func TestUseRejectsSingleContractGuardian(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)
	_, err := svc.Earn(ctx, db, tenantID, guardianID, nil, 10, "付与")
	require.NoError(t, err)

	_, err = svc.Use(ctx, db, tenantID, guardianID, nil, 4, 500, "割引利用")
	assert.ErrorIs(t, err, miledomain.ErrMileUseNotAllowed)
}

func TestLedgerDeltasSumToBalanceAfter(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)
	seedContract(t, db, 101, courseID+1, contractdomain.ContractStatusActive)

	_, err := svc.Earn(ctx, db, tenantID, guardianID, nil, 5, "a")
	require.NoError(t, err)
	_, err = svc.Earn(ctx, db, tenantID, guardianID, nil, 3, "b")
	require.NoError(t, err)
	_, err = svc.Use(ctx, db, tenantID, guardianID, nil, 4, 500, "c")
	require.NoError(t, err)

	var txns []miledomain.MileTransaction
	require.NoError(t, db.Where("guardian_id = ?", guardianID).Order("id").Find(&txns).Error)

	sum := 0
	for _, txn := range txns {
		sum += txn.Miles
	}
	assert.Equal(t, txns[len(txns)-1].BalanceAfter, sum)
}

func TestProcessMonthlyMiles(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&catalogdomain.Product{
		ID:        500,
		TenantID:  tenantID,
		BrandID:   1,
		Name:      "授業料",
		ItemType:  catalogdomain.ItemTypeTuition,
		BasePrice: 10000,
		MileValue: 2,
		Active:    true,
	}).Error)
	require.NoError(t, db.Create(&catalogdomain.CourseItem{
		ID:        600,
		TenantID:  tenantID,
		CourseID:  courseID,
		ProductID: 500,
		Quantity:  1,
		Active:    true,
	}).Error)
	seedContract(t, db, 100, courseID, contractdomain.ContractStatusActive)

	report, err := svc.ProcessMonthlyMiles(ctx, tenantID, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Granted)
	assert.Empty(t, report.Errors)

	balance, err := svc.GetBalance(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}
