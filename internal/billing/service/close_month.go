package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
)

// CloseMonth confirms the (tenant, year, month) billing period: one
// ConfirmedBilling per student with an active contract, prepaid
// guardian balance offset against the new statements, the deadline
// marked closed and the next period pre-generated. Students are
// processed in separate transactions so one bad record does not abort
// the run.
func (s *Service) CloseMonth(ctx context.Context, req billingdomain.CloseMonthRequest) (*billingdomain.CloseMonthReport, error) {
	deadline, err := s.ensureDeadline(ctx, req)
	if err != nil {
		return nil, err
	}

	contracts, err := s.contractRepo.ListActiveByTenant(ctx, s.db, req.TenantID)
	if err != nil {
		return nil, err
	}

	report := &billingdomain.CloseMonthReport{Year: req.Year, Month: req.Month}
	byStudent := lo.GroupBy(contracts, func(c contractdomain.Contract) snowflake.ID {
		return c.StudentID
	})

	for studentID, studentContracts := range byStudent {
		if err := s.closeStudent(ctx, req, studentID, studentContracts, report); err != nil {
			s.log.Warn("month close skipped student",
				zap.Int64("student_id", int64(studentID)),
				zap.Error(err))
			report.Errors = append(report.Errors, billingdomain.CloseStudentError{
				StudentID: studentID,
				Message:   err.Error(),
			})
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now(ctx)
		deadline.IsClosed = true
		deadline.IsUnderReview = false
		deadline.ClosedAt = &now
		deadline.ClosedBy = &req.ActorID
		deadline.UpdatedAt = now
		if err := s.repo.UpdateDeadline(ctx, tx, deadline); err != nil {
			return err
		}
		if err := s.repo.InsertHistory(ctx, tx, &billingdomain.DeadlineHistory{
			ID:         s.genID.Generate(),
			TenantID:   req.TenantID,
			DeadlineID: deadline.ID,
			Action:     billingdomain.DeadlineActionClose,
			ActorID:    req.ActorID,
		}); err != nil {
			return err
		}
		return s.pregenerateNext(ctx, tx, req, deadline.ClosingDay)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MonthsClosed.Inc()
	s.log.Info("month closed",
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.Int("students", report.StudentsBilled),
		zap.Int64("total", report.TotalAmount),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// ensureDeadline loads or creates the period deadline. An already
// closed period is a hard error.
func (s *Service) ensureDeadline(ctx context.Context, req billingdomain.CloseMonthRequest) (*billingdomain.MonthlyBillingDeadline, error) {
	var deadline *billingdomain.MonthlyBillingDeadline
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindDeadline(ctx, tx, req.TenantID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.IsClosed {
				return billingdomain.ErrMonthAlreadyClosed
			}
			deadline = existing
			return nil
		}

		deadline = &billingdomain.MonthlyBillingDeadline{
			ID:         s.genID.Generate(),
			TenantID:   req.TenantID,
			Year:       req.Year,
			Month:      req.Month,
			ClosingDay: s.closingDay(ctx, tx, req.TenantID),
		}
		return s.repo.InsertDeadline(ctx, tx, deadline)
	})
	if err != nil {
		return nil, err
	}
	return deadline, nil
}

func (s *Service) closingDay(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) int {
	provider, err := s.repo.FindActiveProvider(ctx, db, tenantID)
	if err == nil && provider != nil && provider.DefaultClosingDay > 0 {
		return provider.DefaultClosingDay
	}
	return s.cfg.Billing.DefaultClosingDay
}

func (s *Service) closeStudent(ctx context.Context, req billingdomain.CloseMonthRequest, studentID snowflake.ID, contracts []contractdomain.Contract, report *billingdomain.CloseMonthReport) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.contractRepo.ListUnbilledByStudentPeriod(ctx, tx, req.TenantID, studentID, req.Year, req.Month)
		if err != nil {
			return err
		}

		covered := map[snowflake.ID]bool{}
		for _, item := range items {
			if item.ContractID != nil {
				covered[*item.ContractID] = true
			}
		}

		// Contracts with no persisted lines for the period fall back to
		// course-derived monthly pricing.
		for _, contract := range contracts {
			if covered[contract.ID] {
				continue
			}
			derived, err := s.deriveMonthlyItems(ctx, tx, contract, req.Year, req.Month)
			if err != nil {
				return err
			}
			if len(derived) > 0 {
				if err := s.contractRepo.InsertStudentItems(ctx, tx, derived); err != nil {
					return err
				}
				items = append(items, derived...)
			}
		}

		var taxSum, total int64
		for _, item := range items {
			taxSum += item.TaxAmount
			total += item.FinalPrice
		}

		existing, err := s.repo.FindBilling(ctx, tx, req.TenantID, studentID, req.Year, req.Month)
		if err != nil {
			return err
		}
		if total == 0 {
			if existing != nil {
				return s.repo.DeleteBilling(ctx, tx, existing.ID)
			}
			return nil
		}

		guardianID := contracts[0].GuardianID
		now := s.clock.Now(ctx)
		bill := existing
		if bill == nil {
			bill = &billingdomain.ConfirmedBilling{
				ID:         s.genID.Generate(),
				TenantID:   req.TenantID,
				GuardianID: guardianID,
				StudentID:  studentID,
				Year:       req.Year,
				Month:      req.Month,
				Status:     billingdomain.BillingStatusConfirmed,
			}
		}
		bill.Subtotal = total - taxSum
		bill.TaxAmount = taxSum
		bill.TotalAmount = total
		bill.Balance = total - bill.PaidAmount
		bill.UpdatedAt = now

		if bill == existing {
			if err := s.repo.UpdateBilling(ctx, tx, bill); err != nil {
				return err
			}
		} else if err := s.repo.InsertBilling(ctx, tx, bill); err != nil {
			return err
		}

		if err := s.offsetBalance(ctx, tx, bill, now, report); err != nil {
			return err
		}

		ids := lo.Map(items, func(item contractdomain.StudentItem, _ int) snowflake.ID {
			return item.ID
		})
		if err := s.contractRepo.MarkItemsBilled(ctx, tx, ids); err != nil {
			return err
		}

		report.StudentsBilled++
		report.TotalAmount += total
		return nil
	})
}

// deriveMonthlyItems prices the contract's course for the service month
// the closing period prepays and turns the lines into StudentItems.
// One-time products never recur here.
func (s *Service) deriveMonthlyItems(ctx context.Context, db *gorm.DB, contract contractdomain.Contract, year, month int) ([]contractdomain.StudentItem, error) {
	bundle, err := s.catalogSvc.LoadCourse(ctx, contract.TenantID, contract.CourseID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, nil
	}

	serviceYear, serviceMonth := nextPeriod(year, month)
	agg := s.engine.CoursePrice(bundle.Recurring(), contract.EnrollmentDate, serviceYear, time.Month(serviceMonth), 0)

	items := make([]contractdomain.StudentItem, 0, len(agg.Lines))
	for _, line := range agg.Lines {
		if line.Total == 0 || line.Quantity == 0 {
			continue
		}
		items = append(items, contractdomain.StudentItem{
			ID:           s.genID.Generate(),
			TenantID:     contract.TenantID,
			GuardianID:   contract.GuardianID,
			StudentID:    contract.StudentID,
			ContractID:   &contract.ID,
			ProductID:    snowflake.ID(line.ProductID),
			ProductName:  line.ProductName,
			BillingYear:  year,
			BillingMonth: month,
			Notes:        fmt.Sprintf("%d年%d月分", serviceYear, serviceMonth),
			UnitPrice:    line.Total / int64(line.Quantity),
			Quantity:     line.Quantity,
			TaxAmount:    line.TaxAmount,
			FinalPrice:   line.Total,
		})
	}
	return items, nil
}

// offsetBalance spends the guardian's prepaid balance against the new
// statement.
func (s *Service) offsetBalance(ctx context.Context, db *gorm.DB, bill *billingdomain.ConfirmedBilling, now time.Time, report *billingdomain.CloseMonthReport) error {
	balance, err := s.balanceSvc.GetBalance(ctx, db, bill.TenantID, bill.GuardianID)
	if err != nil {
		return err
	}
	offset := balance
	if bill.Balance < offset {
		offset = bill.Balance
	}
	if offset <= 0 {
		return nil
	}

	reason := fmt.Sprintf("相殺 %d年%d月分", bill.Year, bill.Month)
	if _, err := s.balanceSvc.Use(ctx, db, bill.TenantID, bill.GuardianID, offset, reason); err != nil {
		return err
	}
	bill.ApplyAmount(offset, now)
	bill.UpdatedAt = now
	if err := s.repo.UpdateBilling(ctx, db, bill); err != nil {
		return err
	}
	s.metrics.PaymentsApplied.WithLabelValues("balance_offset").Inc()
	report.OffsetAmount += offset
	return nil
}

func (s *Service) pregenerateNext(ctx context.Context, tx *gorm.DB, req billingdomain.CloseMonthRequest, closingDay int) error {
	nextYear, nextMonth := nextPeriod(req.Year, req.Month)
	existing, err := s.repo.FindDeadline(ctx, tx, req.TenantID, nextYear, nextMonth)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.repo.InsertDeadline(ctx, tx, &billingdomain.MonthlyBillingDeadline{
		ID:         s.genID.Generate(),
		TenantID:   req.TenantID,
		Year:       nextYear,
		Month:      nextMonth,
		ClosingDay: closingDay,
	})
}

func nextPeriod(year, month int) (int, int) {
	if month == 12 {
		return year + 1, 1
	}
	return year, month + 1
}
