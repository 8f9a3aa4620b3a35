package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	repo          invoicedomain.Repository
	billingRepo   billingdomain.Repository
	billingSvc    billingdomain.Service
	balanceSvc    balancedomain.Service
	directoryRepo directorydomain.Repository
}

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	Repo          invoicedomain.Repository
	BillingRepo   billingdomain.Repository
	BillingSvc    billingdomain.Service
	BalanceSvc    balancedomain.Service
	DirectoryRepo directorydomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		cfg:           p.Config,
		repo:          p.Repo,
		billingRepo:   p.BillingRepo,
		billingSvc:    p.BillingSvc,
		balanceSvc:    p.BalanceSvc,
		directoryRepo: p.DirectoryRepo,
	}
}

func (s *Service) Get(ctx context.Context, tenantID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

// IssueInvoice collects the guardian's outstanding statements for the
// period into one issued invoice.
func (s *Service) IssueInvoice(ctx context.Context, tenantID, guardianID snowflake.ID, year, month int) (*invoicedomain.Invoice, error) {
	var invoice *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outstanding, err := s.billingRepo.ListOutstandingByGuardian(ctx, tx, tenantID, guardianID)
		if err != nil {
			return err
		}
		bills := lo.Filter(outstanding, func(b billingdomain.ConfirmedBilling, _ int) bool {
			return b.Year == year && b.Month == month && b.Balance > 0
		})
		if len(bills) == 0 {
			return billingdomain.ErrBillingNotFound
		}

		now := s.clock.Now(ctx)
		total := lo.SumBy(bills, func(b billingdomain.ConfirmedBilling) int64 { return b.Balance })

		id := s.genID.Generate()
		invoice = &invoicedomain.Invoice{
			ID:          id,
			TenantID:    tenantID,
			GuardianID:  guardianID,
			Number:      fmt.Sprintf("INV-%04d%02d-%d", year, month, id),
			Year:        year,
			Month:       month,
			TotalAmount: total,
			BalanceDue:  total,
			Status:      invoicedomain.InvoiceStatusIssued,
			IssuedAt:    &now,
		}
		if due := s.dueDate(ctx, tx, tenantID, year, month); due != nil {
			invoice.DueDate = due
		}
		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			return err
		}

		lines := lo.Map(bills, func(b billingdomain.ConfirmedBilling, _ int) invoicedomain.InvoiceLine {
			return invoicedomain.InvoiceLine{
				ID:          s.genID.Generate(),
				TenantID:    tenantID,
				InvoiceID:   invoice.ID,
				Description: fmt.Sprintf("%d年%d月分 授業料等", b.Year, b.Month),
				Amount:      b.Balance,
			}
		})
		return s.repo.InsertLines(ctx, tx, lines)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// dueDate is the period's closing day in the following month.
func (s *Service) dueDate(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, year, month int) *time.Time {
	day := s.cfg.Billing.DefaultClosingDay
	deadline, err := s.billingRepo.FindDeadline(ctx, db, tenantID, year, month)
	if err == nil && deadline != nil && deadline.ClosingDay > 0 {
		day = deadline.ClosingDay
	}
	due := time.Date(year, time.Month(month)+1, day, 0, 0, 0, 0, time.UTC)
	return &due
}

// RecordPayment writes the payment, settles the invoice when one is
// named, applies the amount to outstanding statements and credits any
// leftover to the guardian's prepaid balance, all in one transaction.
func (s *Service) RecordPayment(ctx context.Context, req invoicedomain.RecordPaymentRequest) (*invoicedomain.RecordPaymentResult, error) {
	if req.Amount <= 0 {
		return nil, invoicedomain.ErrInvalidPayment
	}

	result := &invoicedomain.RecordPaymentResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now(ctx)

		if req.InvoiceID != nil {
			invoice, err := s.repo.FindByID(ctx, tx, req.TenantID, *req.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil {
				return invoicedomain.ErrInvoiceNotFound
			}
			if invoice.Status == invoicedomain.InvoiceStatusDraft {
				return invoicedomain.ErrInvoiceNotPayable
			}
			invoice.ApplyAmount(req.Amount, now)
			invoice.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, invoice); err != nil {
				return err
			}
		}

		payment := &invoicedomain.Payment{
			ID:         s.genID.Generate(),
			TenantID:   req.TenantID,
			GuardianID: req.GuardianID,
			InvoiceID:  req.InvoiceID,
			Amount:     req.Amount,
			Method:     req.Method,
			PaidAt:     now,
			Memo:       req.Memo,
		}
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		result.PaymentID = payment.ID

		applied, err := s.billingSvc.ApplyPayment(ctx, tx, req.TenantID, req.GuardianID, req.Amount, string(req.Method))
		if err != nil {
			return err
		}
		result.AppliedToBilling = applied.AppliedAmount

		if applied.Leftover > 0 {
			reason := fmt.Sprintf("過入金 (%s)", req.Method)
			if _, err := s.balanceSvc.Deposit(ctx, tx, req.TenantID, req.GuardianID, applied.Leftover, reason); err != nil {
				return err
			}
			result.CreditedToBalance = applied.Leftover
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.Int64("guardian_id", int64(req.GuardianID)),
		zap.Int64("amount", req.Amount),
		zap.String("method", string(req.Method)),
		zap.Int64("credited", result.CreditedToBalance))
	return result, nil
}
