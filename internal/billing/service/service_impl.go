package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	"github.com/manabill-io/manabill/internal/observability"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	repo         billingdomain.Repository
	contractRepo contractdomain.Repository
	catalogSvc   catalogdomain.Service
	balanceSvc   balancedomain.Service
	engine       *engine.Engine
	metrics      *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Repo         billingdomain.Repository
	ContractRepo contractdomain.Repository
	CatalogSvc   catalogdomain.Service
	BalanceSvc   balancedomain.Service
	Engine       *engine.Engine
	Metrics      *observability.Metrics
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billing.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Config,
		repo:         p.Repo,
		contractRepo: p.ContractRepo,
		catalogSvc:   p.CatalogSvc,
		balanceSvc:   p.BalanceSvc,
		engine:       p.Engine,
		metrics:      p.Metrics,
	}
}

func (s *Service) ListOutstanding(ctx context.Context, tenantID, guardianID snowflake.ID) ([]billingdomain.ConfirmedBilling, error) {
	return s.repo.ListOutstandingByGuardian(ctx, s.db, tenantID, guardianID)
}

func (s *Service) ListByPeriod(ctx context.Context, tenantID snowflake.ID, year, month int) ([]billingdomain.ConfirmedBilling, error) {
	return s.repo.ListByPeriod(ctx, s.db, tenantID, year, month)
}

func (s *Service) ReopenMonth(ctx context.Context, req billingdomain.ReopenMonthRequest) error {
	if req.Reason == "" {
		return billingdomain.ErrReasonRequired
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deadline, err := s.repo.FindDeadline(ctx, tx, req.TenantID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if deadline == nil || !deadline.IsClosed {
			return billingdomain.ErrMonthNotClosed
		}

		deadline.IsClosed = false
		deadline.IsUnderReview = true
		deadline.ClosedAt = nil
		deadline.ClosedBy = nil
		deadline.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.UpdateDeadline(ctx, tx, deadline); err != nil {
			return err
		}

		return s.repo.InsertHistory(ctx, tx, &billingdomain.DeadlineHistory{
			ID:         s.genID.Generate(),
			TenantID:   req.TenantID,
			DeadlineID: deadline.ID,
			Action:     billingdomain.DeadlineActionReopen,
			Reason:     req.Reason,
			ActorID:    req.ActorID,
		})
	})
}
