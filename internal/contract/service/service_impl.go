package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	"github.com/manabill-io/manabill/internal/clock"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	repo        contractdomain.Repository
	billingRepo billingdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        contractdomain.Repository
	BillingRepo billingdomain.Repository
}

func NewService(p ServiceParam) contractdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("contract.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		billingRepo: p.BillingRepo,
	}
}

func (s *Service) Get(ctx context.Context, tenantID, contractID snowflake.ID) (*contractdomain.Contract, error) {
	contract, err := s.repo.FindByID(ctx, s.db, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, contractdomain.ErrContractNotFound
	}
	return contract, nil
}

func (s *Service) ListByGuardian(ctx context.Context, tenantID, guardianID snowflake.ID) ([]contractdomain.Contract, error) {
	return s.repo.ListActiveByGuardian(ctx, s.db, tenantID, guardianID)
}

func (s *Service) ChangeSchedule(ctx context.Context, req contractdomain.ChangeScheduleRequest) (*contractdomain.Contract, error) {
	if req.DayOfWeek < 1 || req.DayOfWeek > 7 || req.StartTime == "" {
		return nil, contractdomain.ErrInvalidSchedule
	}

	var updated *contractdomain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.mutableContract(ctx, tx, req.TenantID, req.ContractID, req.ActorRole)
		if err != nil {
			return err
		}

		contract.DayOfWeek = req.DayOfWeek
		contract.StartTime = req.StartTime
		contract.EndTime = req.EndTime
		contract.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.Update(ctx, tx, contract); err != nil {
			return err
		}
		updated = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, req contractdomain.CancelRequest) (*contractdomain.Contract, error) {
	var cancelled *contractdomain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contract, err := s.mutableContract(ctx, tx, req.TenantID, req.ContractID, req.ActorRole)
		if err != nil {
			return err
		}

		now := s.clock.Now(ctx)
		contract.Status = contractdomain.ContractStatusCancelled
		contract.Voided = true
		contract.CancelledAt = &now
		contract.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, contract); err != nil {
			return err
		}
		cancelled = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract cancelled",
		zap.Int64("contract_id", int64(req.ContractID)),
		zap.String("reason", req.Reason))
	return cancelled, nil
}

// mutableContract loads the contract and refuses mutation when its
// current billing period is closed, or under review for actors without
// the accounting/admin role.
func (s *Service) mutableContract(ctx context.Context, tx *gorm.DB, tenantID, contractID snowflake.ID, actorRole string) (*contractdomain.Contract, error) {
	contract, err := s.repo.FindByID(ctx, tx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, contractdomain.ErrContractNotFound
	}
	if !contract.IsActive() {
		return nil, contractdomain.ErrContractInactive
	}

	now := s.clock.Now(ctx)
	deadline, err := s.billingRepo.FindDeadline(ctx, tx, tenantID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}
	if deadline != nil {
		if deadline.IsClosed {
			return nil, billingdomain.ErrPeriodLocked
		}
		if deadline.IsUnderReview && !billingdomain.CanEditByRole(billingdomain.ActorRole(actorRole)) {
			return nil, billingdomain.ErrPeriodLocked
		}
	}
	return contract, nil
}
