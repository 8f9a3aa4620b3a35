package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"gorm.io/gorm"

	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
)

// Accepted header spellings differ between banks.
var (
	dateHeaders   = []string{"振込日", "取引日"}
	amountHeaders = []string{"金額", "入金額"}
	payerHeaders  = []string{"振込人名", "依頼人名"}
	bankHeaders   = []string{"銀行名", "振込銀行"}
	branchHeaders = []string{"支店名", "振込支店"}
)

var dateLayouts = []string{"2006/01/02", "2006-01-02", "20060102"}

// ImportCSV parses a Shift-JIS bank-transfer file, stores the rows and
// runs auto-matching over them in one transaction.
func (s *Service) ImportCSV(ctx context.Context, tenantID snowflake.ID, fileName string, r io.Reader) (*transferdomain.ImportReport, error) {
	reader := csv.NewReader(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read transfer header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	pick := func(record []string, names []string) string {
		for _, name := range names {
			if idx, ok := cols[name]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
		}
		return ""
	}
	hasAmount := false
	for _, name := range amountHeaders {
		if _, ok := cols[name]; ok {
			hasAmount = true
		}
	}
	if !hasAmount {
		return nil, fmt.Errorf("transfer file missing amount column")
	}

	now := s.clock.Now(ctx)
	report := &transferdomain.ImportReport{BatchID: uuid.NewString()}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		imp := &transferdomain.BankTransferImport{
			ID:       s.genID.Generate(),
			TenantID: tenantID,
			BatchID:  report.BatchID,
			FileName: fileName,
		}

		var transfers []transferdomain.BankTransfer
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read transfer row: %w", err)
			}

			transfer := transferdomain.BankTransfer{
				ID:           s.genID.Generate(),
				TenantID:     tenantID,
				ImportID:     imp.ID,
				TransferDate: parseTransferDate(pick(record, dateHeaders), now),
				Amount:       parseAmount(pick(record, amountHeaders)),
				PayerName:    pick(record, payerHeaders),
				BankName:     pick(record, bankHeaders),
				BranchName:   pick(record, branchHeaders),
				Status:       transferdomain.TransferStatusPending,
			}

			guardianID, err := s.matchGuardian(ctx, tx, tenantID, transfer.PayerName)
			if err != nil {
				return err
			}
			if guardianID != nil {
				transfer.GuardianID = guardianID
				transfer.Status = transferdomain.TransferStatusMatched
				report.Matched++
			} else {
				transfer.Status = transferdomain.TransferStatusUnmatched
				report.Unmatched++
			}
			transfers = append(transfers, transfer)
		}

		imp.RowCount = len(transfers)
		report.Imported = len(transfers)
		if err := s.repo.InsertImport(ctx, tx, imp); err != nil {
			return err
		}
		report.ImportID = imp.ID
		return s.repo.InsertTransfers(ctx, tx, transfers)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TransfersImported.Add(float64(report.Imported))
	s.log.Info("bank transfers imported",
		zap.String("batch_id", report.BatchID),
		zap.Int("imported", report.Imported),
		zap.Int("matched", report.Matched),
		zap.Int("unmatched", report.Unmatched))
	return report, nil
}

func parseTransferDate(text string, fallback time.Time) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return fallback
}

// parseAmount strips thousands separators and the yen glyph.
func parseAmount(text string) int64 {
	cleaned := strings.NewReplacer(",", "", "¥", "", "￥", "").Replace(text)
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return amount
}

// ExportCSV writes the batch back out as UTF-8 for operator review.
func (s *Service) ExportCSV(ctx context.Context, tenantID, importID snowflake.ID, w io.Writer) error {
	transfers, err := s.repo.ListByImport(ctx, s.db, tenantID, importID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"振込日", "金額", "振込人名", "銀行名", "支店名", "状態"}); err != nil {
		return err
	}
	for _, t := range transfers {
		record := []string{
			t.TransferDate.Format("2006/01/02"),
			strconv.FormatInt(t.Amount, 10),
			t.PayerName,
			t.BankName,
			t.BranchName,
			string(t.Status),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
