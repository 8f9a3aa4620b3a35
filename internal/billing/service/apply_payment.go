package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
)

// ApplyPayment books amount against the guardian's outstanding
// statements inside the caller's transaction. A statement whose balance
// equals the payment exactly wins over older partial matches; after
// that the remainder flows oldest first.
func (s *Service) ApplyPayment(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, source string) (*billingdomain.ApplyPaymentResult, error) {
	if amount <= 0 {
		return nil, billingdomain.ErrInvalidAmount
	}

	outstanding, err := s.repo.ListOutstandingByGuardian(ctx, db, tenantID, guardianID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	result := &billingdomain.ApplyPaymentResult{}
	remaining := amount

	for i := range outstanding {
		if outstanding[i].Balance == amount {
			if err := s.applyTo(ctx, db, &outstanding[i], amount, now, result); err != nil {
				return nil, err
			}
			remaining = 0
			break
		}
	}

	for i := range outstanding {
		if remaining == 0 {
			break
		}
		bill := &outstanding[i]
		if bill.Balance <= 0 {
			continue
		}
		portion := remaining
		if bill.Balance < portion {
			portion = bill.Balance
		}
		if err := s.applyTo(ctx, db, bill, portion, now, result); err != nil {
			return nil, err
		}
		remaining -= portion
	}

	result.Leftover = remaining
	s.metrics.PaymentsApplied.WithLabelValues(source).Inc()

	s.log.Debug("payment applied",
		zap.Int64("guardian_id", int64(guardianID)),
		zap.Int64("amount", amount),
		zap.Int64("leftover", remaining),
		zap.String("source", source))
	return result, nil
}

func (s *Service) applyTo(ctx context.Context, db *gorm.DB, bill *billingdomain.ConfirmedBilling, amount int64, now time.Time, result *billingdomain.ApplyPaymentResult) error {
	bill.ApplyAmount(amount, now)
	bill.UpdatedAt = now
	if err := s.repo.UpdateBilling(ctx, db, bill); err != nil {
		return err
	}
	result.AppliedAmount += amount
	result.Applications = append(result.Applications, billingdomain.PaymentApplication{
		BillingID: bill.ID,
		Year:      bill.Year,
		Month:     bill.Month,
		Amount:    amount,
	})
	return nil
}
