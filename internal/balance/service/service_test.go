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

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	"github.com/manabill-io/manabill/internal/balance/service"
	"github.com/manabill-io/manabill/internal/clock"
)

func newTestService(t *testing.T) (balancedomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&balancedomain.GuardianBalance{}, &balancedomain.OffsetLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewService(service.ServiceParam{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.New(),
	})
	return svc, db
}

func TestDepositAndUse(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenantID, guardianID := snowflake.ID(1), snowflake.ID(10)

	after, err := svc.Deposit(ctx, db, tenantID, guardianID, 5000, "入金")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), after)

	after, err = svc.Use(ctx, db, tenantID, guardianID, 3000, "相殺")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), after)

	balance, err := svc.GetBalance(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)
}

func TestUseRejectsInsufficientFunds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenantID, guardianID := snowflake.ID(1), snowflake.ID(10)

	_, err := svc.Deposit(ctx, db, tenantID, guardianID, 1000, "入金")
	require.NoError(t, err)

	_, err = svc.Use(ctx, db, tenantID, guardianID, 1001, "相殺")
	assert.ErrorIs(t, err, balancedomain.ErrInsufficientBalance)

	balance, err := svc.GetBalance(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance, "failed use must not mutate the balance")
}

func TestInvalidAmounts(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, db, 1, 10, 0, "x")
	assert.ErrorIs(t, err, balancedomain.ErrInvalidAmount)
	_, err = svc.Use(ctx, db, 1, 10, -5, "x")
	assert.ErrorIs(t, err, balancedomain.ErrInvalidAmount)
}

func TestOffsetLogDeltasSumToBalance(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	tenantID, guardianID := snowflake.ID(1), snowflake.ID(10)

	ops := []struct {
		deposit bool
		amount  int64
	}{
		{true, 10000}, {false, 2500}, {true, 300}, {false, 7000}, {false, 800},
	}
	for _, op := range ops {
		var err error
		if op.deposit {
			_, err = svc.Deposit(ctx, db, tenantID, guardianID, op.amount, "入金")
		} else {
			_, err = svc.Use(ctx, db, tenantID, guardianID, op.amount, "相殺")
		}
		require.NoError(t, err)
	}

	logs, err := svc.ListLogs(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	require.Len(t, logs, len(ops))

	var sum int64
	for _, entry := range logs {
		sum += entry.Amount
	}
	balance, err := svc.GetBalance(ctx, db, tenantID, guardianID)
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
	assert.Equal(t, balance, logs[len(logs)-1].BalanceAfter)
	assert.GreaterOrEqual(t, balance, int64(0))
}
