package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
)

// Apply books a matched transfer: one Payment, the named invoice when
// given, the greedy statement application and a balance credit for any
// remainder, all in a single transaction. An applied transfer cannot be
// applied twice.
func (s *Service) Apply(ctx context.Context, req transferdomain.ApplyRequest) (*transferdomain.ApplyResult, error) {
	result := &transferdomain.ApplyResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transfer, err := s.repo.FindTransferByID(ctx, tx, req.TenantID, req.TransferID)
		if err != nil {
			return err
		}
		if transfer == nil {
			return transferdomain.ErrTransferNotFound
		}
		if transfer.Status == transferdomain.TransferStatusApplied {
			return transferdomain.ErrTransferAlreadyApplied
		}

		guardianID := transfer.GuardianID
		if req.GuardianID != nil {
			guardianID = req.GuardianID
		}
		if guardianID == nil {
			return transferdomain.ErrTransferNotMatched
		}

		now := s.clock.Now(ctx)

		if req.InvoiceID != nil {
			invoice, err := s.invoiceRepo.FindByID(ctx, tx, req.TenantID, *req.InvoiceID)
			if err != nil {
				return err
			}
			if invoice == nil {
				return invoicedomain.ErrInvoiceNotFound
			}
			invoice.ApplyAmount(transfer.Amount, now)
			invoice.UpdatedAt = now
			if err := s.invoiceRepo.Update(ctx, tx, invoice); err != nil {
				return err
			}
		}

		payment := &invoicedomain.Payment{
			ID:         s.genID.Generate(),
			TenantID:   req.TenantID,
			GuardianID: *guardianID,
			InvoiceID:  req.InvoiceID,
			Amount:     transfer.Amount,
			Method:     invoicedomain.PaymentMethodBankTransfer,
			PaidAt:     transfer.TransferDate,
			Memo:       transfer.PayerName,
		}
		if err := s.invoiceRepo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		result.PaymentID = payment.ID

		applied, err := s.billingSvc.ApplyPayment(ctx, tx, req.TenantID, *guardianID, transfer.Amount, "bank_transfer")
		if err != nil {
			return err
		}
		result.AppliedToBilling = applied.AppliedAmount

		if applied.Leftover > 0 {
			reason := fmt.Sprintf("振込入金残額 %s", transfer.TransferDate.Format("2006/01/02"))
			if _, err := s.balanceSvc.Deposit(ctx, tx, req.TenantID, *guardianID, applied.Leftover, reason); err != nil {
				return err
			}
			result.CreditedToBalance = applied.Leftover
		}

		transfer.Status = transferdomain.TransferStatusApplied
		transfer.GuardianID = guardianID
		transfer.PaymentID = &payment.ID
		transfer.AppliedAt = &now
		transfer.UpdatedAt = now
		return s.repo.UpdateTransfer(ctx, tx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bank transfer applied",
		zap.Int64("transfer_id", int64(req.TransferID)),
		zap.Int64("applied", result.AppliedToBilling),
		zap.Int64("credited", result.CreditedToBalance))
	return result, nil
}
