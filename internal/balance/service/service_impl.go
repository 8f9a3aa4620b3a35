package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	"github.com/manabill-io/manabill/internal/clock"
)

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) balancedomain.Service {
	return &Service{
		log:   p.Log.Named("balance.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) GetBalance(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int64, error) {
	row, err := s.find(ctx, db, tenantID, guardianID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	return row.Balance, nil
}

func (s *Service) Deposit(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, balancedomain.ErrInvalidAmount
	}
	return s.mutate(ctx, db, tenantID, guardianID, amount, reason)
}

func (s *Service) Use(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, balancedomain.ErrInvalidAmount
	}
	current, err := s.GetBalance(ctx, db, tenantID, guardianID)
	if err != nil {
		return 0, err
	}
	if current < amount {
		return 0, balancedomain.ErrInsufficientBalance
	}
	return s.mutate(ctx, db, tenantID, guardianID, -amount, reason)
}

func (s *Service) ListLogs(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) ([]balancedomain.OffsetLog, error) {
	var logs []balancedomain.OffsetLog
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		Order("id").
		Find(&logs).Error
	return logs, err
}

func (s *Service) find(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (*balancedomain.GuardianBalance, error) {
	var row balancedomain.GuardianBalance
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// mutate applies the signed delta and appends the offset log row. The
// caller's transaction makes both writes atomic.
func (s *Service) mutate(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, delta int64, reason string) (int64, error) {
	now := s.clock.Now(ctx)

	row, err := s.find(ctx, db, tenantID, guardianID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		row = &balancedomain.GuardianBalance{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			GuardianID: guardianID,
		}
		if err := db.WithContext(ctx).Create(row).Error; err != nil {
			return 0, err
		}
	}

	row.Balance += delta
	row.UpdatedAt = now
	if err := db.WithContext(ctx).Save(row).Error; err != nil {
		return 0, err
	}

	entry := balancedomain.OffsetLog{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		GuardianID:   guardianID,
		Amount:       delta,
		BalanceAfter: row.Balance,
		Reason:       reason,
		CreatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return 0, err
	}

	s.log.Debug("guardian balance updated",
		zap.Int64("guardian_id", int64(guardianID)),
		zap.Int64("delta", delta),
		zap.Int64("balance_after", row.Balance))
	return row.Balance, nil
}
