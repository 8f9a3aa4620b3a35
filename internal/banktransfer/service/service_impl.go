package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	"github.com/manabill-io/manabill/internal/clock"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
	"github.com/manabill-io/manabill/internal/observability"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo          transferdomain.Repository
	directoryRepo directorydomain.Repository
	invoiceRepo   invoicedomain.Repository
	billingSvc    billingdomain.Service
	balanceSvc    balancedomain.Service
	metrics       *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          transferdomain.Repository
	DirectoryRepo directorydomain.Repository
	InvoiceRepo   invoicedomain.Repository
	BillingSvc    billingdomain.Service
	BalanceSvc    balancedomain.Service
	Metrics       *observability.Metrics
}

func NewService(p ServiceParam) transferdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("banktransfer.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		directoryRepo: p.DirectoryRepo,
		invoiceRepo:   p.InvoiceRepo,
		billingSvc:    p.BillingSvc,
		balanceSvc:    p.BalanceSvc,
		metrics:       p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, tenantID, transferID snowflake.ID) (*transferdomain.BankTransfer, error) {
	transfer, err := s.repo.FindTransferByID(ctx, s.db, tenantID, transferID)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, transferdomain.ErrTransferNotFound
	}
	return transfer, nil
}

func (s *Service) ListUnmatched(ctx context.Context, tenantID snowflake.ID) ([]transferdomain.BankTransfer, error) {
	return s.repo.ListByStatus(ctx, s.db, tenantID, transferdomain.TransferStatusUnmatched)
}
