package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"gorm.io/gorm"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
)

const (
	debitColGuardianNumber = "顧客番号"
	debitColResultCode     = "結果コード"
	debitColAmount         = "引落金額"
	debitColMemo           = "備考"

	debitResultOK           = "0"
	debitResultInsufficient = "1"
)

// ImportDebitResults ingests a Shift-JIS direct-debit result file.
// Successful rows become payments, insufficient-funds rows mark the
// referenced invoice failed. Rows are independent; a bad one is
// collected and the rest continue.
func (s *Service) ImportDebitResults(ctx context.Context, tenantID snowflake.ID, r io.Reader) (*invoicedomain.DebitImportReport, error) {
	reader := csv.NewReader(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read debit header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{debitColGuardianNumber, debitColResultCode, debitColAmount} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("debit file missing column %s", required)
		}
	}

	report := &invoicedomain.DebitImportReport{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Errors = append(report.Errors, invoicedomain.DebitRowError{Line: line, Message: err.Error()})
			continue
		}
		applied, err := s.importDebitRow(ctx, tenantID, cols, record)
		if err != nil {
			report.Errors = append(report.Errors, invoicedomain.DebitRowError{Line: line, Message: err.Error()})
			continue
		}
		if applied {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	s.log.Info("debit results imported",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) importDebitRow(ctx context.Context, tenantID snowflake.ID, cols map[string]int, record []string) (bool, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	guardian, err := s.directoryRepo.FindGuardianByNumber(ctx, s.db, tenantID, field(debitColGuardianNumber))
	if err != nil {
		return false, err
	}
	if guardian == nil {
		return false, invoicedomain.ErrGuardianNotMatched
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(field(debitColAmount), ",", ""), 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse amount: %w", err)
	}

	memo := field(debitColMemo)
	var invoiceID *snowflake.ID
	invoice, err := s.repo.FindByNumber(ctx, s.db, tenantID, memo)
	if err != nil {
		return false, err
	}
	if invoice != nil {
		invoiceID = &invoice.ID
	}

	switch field(debitColResultCode) {
	case debitResultOK:
		_, err := s.RecordPayment(ctx, invoicedomain.RecordPaymentRequest{
			TenantID:   tenantID,
			GuardianID: guardian.ID,
			InvoiceID:  invoiceID,
			Amount:     amount,
			Method:     invoicedomain.PaymentMethodDirectDebit,
			Memo:       memo,
		})
		return err == nil, err
	case debitResultInsufficient:
		if invoice == nil {
			return false, nil
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invoice.Status = invoicedomain.InvoiceStatusFailed
			invoice.UpdatedAt = s.clock.Now(ctx)
			return s.repo.Update(ctx, tx, invoice)
		})
		return false, err
	default:
		return false, fmt.Errorf("unknown result code %q", field(debitColResultCode))
	}
}
