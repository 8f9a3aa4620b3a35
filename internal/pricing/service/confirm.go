package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	pricingdomain "github.com/manabill-io/manabill/internal/pricing/domain"
)

// ConfirmationService is the only pricing path that persists: one
// Contract plus one StudentItem per priced line, atomically.
type ConfirmationService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	preview      pricingdomain.PreviewService
	contractRepo contractdomain.Repository
	billingRepo  billingdomain.Repository
	mileSvc      miledomain.Service
	redis        *redis.Client
}

type ConfirmationServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Cfg          config.Config
	Preview      pricingdomain.PreviewService
	ContractRepo contractdomain.Repository
	BillingRepo  billingdomain.Repository
	MileSvc      miledomain.Service
	Redis        *redis.Client `optional:"true"`
}

func NewConfirmationService(p ConfirmationServiceParam) pricingdomain.ConfirmationService {
	return &ConfirmationService{
		db:           p.DB,
		log:          p.Log.Named("pricing.confirm"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Cfg,
		preview:      p.Preview,
		contractRepo: p.ContractRepo,
		billingRepo:  p.BillingRepo,
		mileSvc:      p.MileSvc,
		redis:        p.Redis,
	}
}

func (s *ConfirmationService) ConfirmPurchase(ctx context.Context, req pricingdomain.ConfirmRequest) (*pricingdomain.ConfirmResult, error) {
	if req.StartDate.IsZero() {
		return nil, pricingdomain.ErrInvalidStartDate
	}
	if len(req.DaysOfWeek) == 0 {
		return nil, pricingdomain.ErrInvalidDaysOfWeek
	}
	if strings.TrimSpace(req.StartTime) == "" {
		return nil, pricingdomain.ErrInvalidStartTime
	}

	// The in-transaction existence check only guards same-transaction
	// races; the redis token narrows the window for two near-simultaneous
	// duplicate submissions, and the partial unique index on contracts is
	// the backstop.
	s.acquireToken(ctx, req)

	quote, err := s.preview.Preview(ctx, req.PreviewRequest)
	if err != nil {
		return nil, err
	}

	var result *pricingdomain.ConfirmResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dayOfWeek := req.DaysOfWeek[0]

		existing, err := s.contractRepo.FindDuplicate(ctx, tx, req.TenantID, req.StudentID, req.CourseID, dayOfWeek, req.StartTime)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &pricingdomain.ConfirmResult{
				Status:       pricingdomain.ConfirmStatusAlreadyCompleted,
				OrderID:      existing.ID,
				ContractID:   existing.ID,
				MileDiscount: existing.MileDiscount,
			}
			return nil
		}

		billingYear, billingMonth, err := s.nextOpenBillingMonth(ctx, tx, req.TenantID)
		if err != nil {
			return err
		}

		// Redemption eligibility counts the guardian's holdings before
		// this purchase; the contract being confirmed does not qualify
		// itself.
		if req.RedeemMiles > 0 {
			allowed, err := s.mileSvc.CanUseMiles(ctx, tx, req.TenantID, req.GuardianID)
			if err != nil {
				return err
			}
			if !allowed {
				return miledomain.ErrMileUseNotAllowed
			}
		}

		now := s.clock.Now(ctx)
		contract := &contractdomain.Contract{
			ID:             s.genID.Generate(),
			TenantID:       req.TenantID,
			GuardianID:     req.GuardianID,
			StudentID:      req.StudentID,
			CourseID:       req.CourseID,
			DayOfWeek:      dayOfWeek,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Status:         contractdomain.ContractStatusActive,
			EnrollmentDate: req.StartDate,
			TextbookIDs:    joinIDs(req.TextbookIDs),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.contractRepo.Insert(ctx, tx, contract); err != nil {
			return err
		}

		var mileDiscount int64
		if req.RedeemMiles > 0 {
			mileDiscount = s.mileSvc.CalculateDiscount(req.RedeemMiles)
			contractID := contract.ID
			if _, err := s.mileSvc.Use(ctx, tx, req.TenantID, req.GuardianID, &contractID, req.RedeemMiles, mileDiscount, "購入時マイル利用"); err != nil {
				return err
			}
			contract.MileDiscount = mileDiscount
			if err := s.contractRepo.Update(ctx, tx, contract); err != nil {
				return err
			}
		}

		items, total := s.buildStudentItems(quote, req, contract.ID, billingYear, billingMonth, mileDiscount, now)
		if err := s.contractRepo.InsertStudentItems(ctx, tx, items); err != nil {
			return err
		}

		result = &pricingdomain.ConfirmResult{
			Status:       pricingdomain.ConfirmStatusCompleted,
			OrderID:      contract.ID,
			ContractID:   contract.ID,
			MileDiscount: mileDiscount,
			BillingYear:  billingYear,
			BillingMonth: billingMonth,
			Total:        total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("purchase confirmed",
		zap.String("status", string(result.Status)),
		zap.Int64("contract_id", int64(result.ContractID)),
		zap.Int64("mile_discount", result.MileDiscount))
	return result, nil
}

func (s *ConfirmationService) acquireToken(ctx context.Context, req pricingdomain.ConfirmRequest) {
	if s.redis == nil || strings.TrimSpace(req.IdempotencyKey) == "" {
		return
	}
	key := fmt.Sprintf("confirm:%d:%s", req.TenantID, req.IdempotencyKey)
	ttl := time.Duration(s.cfg.Billing.IdempotencyTTLSeconds) * time.Second
	acquired, err := s.redis.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		s.log.Warn("idempotency token check failed", zap.Error(err))
		return
	}
	if !acquired {
		s.log.Info("duplicate confirmation token",
			zap.String("idempotency_key", req.IdempotencyKey))
	}
}

// nextOpenBillingMonth finds the first period at/after the current
// month without a closed deadline; a missing deadline row counts as
// open. Every line of one purchase lands in this month regardless of
// the service month it covers.
func (s *ConfirmationService) nextOpenBillingMonth(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (int, int, error) {
	now := s.clock.Now(ctx)
	cursor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		year, month := cursor.Year(), int(cursor.Month())
		deadline, err := s.billingRepo.FindDeadline(ctx, tx, tenantID, year, month)
		if err != nil {
			return 0, 0, err
		}
		if deadline == nil || !deadline.IsClosed {
			return year, month, nil
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return 0, 0, pricingdomain.ErrNoOpenBillingMonth
}

func (s *ConfirmationService) buildStudentItems(
	quote *pricingdomain.PreviewResponse,
	req pricingdomain.ConfirmRequest,
	contractID snowflake.ID,
	billingYear, billingMonth int,
	mileDiscount int64,
	now time.Time,
) ([]contractdomain.StudentItem, int64) {
	var items []contractdomain.StudentItem
	var total int64

	appendLines := func(lines []pricingdomain.PreviewLine) {
		for _, line := range lines {
			discount := int64(0)
			// The mile discount lands on the first full-month tuition
			// line.
			if mileDiscount > 0 && line.ItemType == catalogdomain.ItemTypeTuition {
				discount = mileDiscount
				mileDiscount = 0
			}

			final := line.UnitPrice*int64(line.Quantity) - discount
			if final < 0 {
				final = 0
			}

			cid := contractID
			items = append(items, contractdomain.StudentItem{
				ID:             s.genID.Generate(),
				TenantID:       req.TenantID,
				GuardianID:     req.GuardianID,
				StudentID:      req.StudentID,
				ContractID:     &cid,
				ProductID:      line.ProductID,
				ProductName:    line.ProductName,
				BillingYear:    billingYear,
				BillingMonth:   billingMonth,
				Notes:          fmt.Sprintf("%d年%d月分", line.ServiceYear, line.ServiceMonth),
				UnitPrice:      line.UnitPrice,
				Quantity:       line.Quantity,
				DiscountAmount: discount,
				TaxAmount:      line.TaxAmount,
				FinalPrice:     final,
				CreatedAt:      now,
			})
			total += final
		}
	}

	appendLines(quote.Enrollment)
	appendLines(quote.CurrentMonth)
	// month1 is the first bucket holding tuition, so the discount
	// applies there when no current-month tuition line exists.
	appendLines(quote.Month1)

	return items, total
}

func joinIDs(ids []snowflake.ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}
