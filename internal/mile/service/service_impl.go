package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/clock"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	"github.com/manabill-io/manabill/internal/observability"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	contractRepo contractdomain.Repository
	catalogRepo  catalogdomain.Repository
	metrics      *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	ContractRepo contractdomain.Repository
	CatalogRepo  catalogdomain.Repository
	Metrics      *observability.Metrics `optional:"true"`
}

func NewService(p ServiceParam) miledomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("mile.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		contractRepo: p.ContractRepo,
		catalogRepo:  p.CatalogRepo,
		metrics:      p.Metrics,
	}
}

func (s *Service) GetBalance(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (int, error) {
	var latest miledomain.MileTransaction
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND guardian_id = ?", tenantID, guardianID).
		Order("id DESC").
		First(&latest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return latest.BalanceAfter, nil
}

// CalculateDiscount: miles 4 -> 500, 6 -> 1000, 8 -> 1500.
func (s *Service) CalculateDiscount(miles int) int64 {
	if miles < 4 {
		return 0
	}
	return int64((miles-2)/2) * 500
}

func (s *Service) CanUseMiles(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID) (bool, error) {
	count, err := s.contractRepo.CountActiveByGuardian(ctx, db, tenantID, guardianID)
	if err != nil {
		return false, err
	}
	return count >= 2, nil
}

func (s *Service) Earn(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, contractID *snowflake.ID, miles int, reason string) (*miledomain.MileTransaction, error) {
	if miles <= 0 {
		return nil, miledomain.ErrInvalidMileAmount
	}
	return s.append(ctx, db, tenantID, guardianID, contractID, miledomain.TransactionKindEarn, miles, 0, reason)
}

func (s *Service) Use(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, contractID *snowflake.ID, miles int, discountAmount int64, reason string) (*miledomain.MileTransaction, error) {
	if miles <= 0 {
		return nil, miledomain.ErrInvalidMileAmount
	}

	allowed, err := s.CanUseMiles(ctx, db, tenantID, guardianID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, miledomain.ErrMileUseNotAllowed
	}

	balance, err := s.GetBalance(ctx, db, tenantID, guardianID)
	if err != nil {
		return nil, err
	}
	if balance < miles {
		return nil, miledomain.ErrInsufficientMiles
	}

	return s.append(ctx, db, tenantID, guardianID, contractID, miledomain.TransactionKindUse, -miles, discountAmount, reason)
}

func (s *Service) CalculateMonthlyMiles(ctx context.Context, db *gorm.DB, tenantID, contractID snowflake.ID, year, month int) (int, error) {
	contract, err := s.contractRepo.FindByID(ctx, db, tenantID, contractID)
	if err != nil {
		return 0, err
	}
	if contract == nil {
		return 0, contractdomain.ErrContractNotFound
	}
	if !contract.IsActive() {
		return 0, contractdomain.ErrContractInactive
	}

	items, err := s.catalogRepo.ListActiveCourseItems(ctx, db, tenantID, contract.CourseID)
	if err != nil {
		return 0, err
	}

	miles := 0
	for _, item := range items {
		product, err := s.catalogRepo.FindProductByID(ctx, db, tenantID, item.ProductID)
		if err != nil {
			return 0, err
		}
		if product == nil || !product.Active {
			continue
		}
		miles += product.MileValue * item.Quantity
	}

	// One-off lines billed this month earn against the contract too.
	studentItems, err := s.contractRepo.ListByContract(ctx, db, tenantID, contractID)
	if err != nil {
		return 0, err
	}
	for _, item := range studentItems {
		if item.BillingYear != year || item.BillingMonth != month {
			continue
		}
		product, err := s.catalogRepo.FindProductByID(ctx, db, tenantID, item.ProductID)
		if err != nil {
			return 0, err
		}
		if product == nil {
			continue
		}
		miles += product.MileValue * item.Quantity
	}
	return miles, nil
}

func (s *Service) ProcessMonthlyMiles(ctx context.Context, tenantID snowflake.ID, year, month int) (*miledomain.GrantReport, error) {
	contracts, err := s.contractRepo.ListActiveByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}

	byGuardian := lo.GroupBy(contracts, func(c contractdomain.Contract) snowflake.ID {
		return c.GuardianID
	})

	report := &miledomain.GrantReport{}
	for guardianID, guardianContracts := range byGuardian {
		if err := s.grantForGuardian(ctx, tenantID, guardianID, guardianContracts, year, month); err != nil {
			s.log.Warn("monthly mile grant failed for guardian",
				zap.Int64("guardian_id", int64(guardianID)),
				zap.Error(err))
			report.Errors = append(report.Errors, miledomain.GrantError{GuardianID: guardianID, Err: err})
			continue
		}
		report.Granted++
		if s.metrics != nil {
			s.metrics.MilesGranted.Inc()
		}
	}
	return report, nil
}

// grantForGuardian runs in its own transaction so one guardian's
// failure rolls back only their writes.
func (s *Service) grantForGuardian(ctx context.Context, tenantID, guardianID snowflake.ID, contracts []contractdomain.Contract, year, month int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, contract := range contracts {
			miles, err := s.CalculateMonthlyMiles(ctx, tx, tenantID, contract.ID, year, month)
			if err != nil {
				return err
			}
			if miles <= 0 {
				continue
			}
			contractID := contract.ID
			if _, err := s.append(ctx, tx, tenantID, guardianID, &contractID, miledomain.TransactionKindEarn, miles, 0, "月次マイル付与"); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) append(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, contractID *snowflake.ID, kind miledomain.TransactionKind, delta int, discountAmount int64, reason string) (*miledomain.MileTransaction, error) {
	balance, err := s.GetBalance(ctx, db, tenantID, guardianID)
	if err != nil {
		return nil, err
	}

	txn := miledomain.MileTransaction{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		GuardianID:     guardianID,
		ContractID:     contractID,
		Kind:           kind,
		Miles:          delta,
		BalanceAfter:   balance + delta,
		DiscountAmount: discountAmount,
		Reason:         reason,
		CreatedAt:      s.clock.Now(ctx),
	}
	if err := db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}
