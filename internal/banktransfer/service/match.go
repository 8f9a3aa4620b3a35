package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// matchGuardian resolves a payer name to a guardian. An exact guardian
// number wins; otherwise the payer name is matched as a substring of
// the guardian's kana name. More than one kana hit is treated as no
// match so an operator decides.
func (s *Service) matchGuardian(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, payerName string) (*snowflake.ID, error) {
	payerName = strings.TrimSpace(payerName)
	if payerName == "" {
		return nil, nil
	}

	guardian, err := s.directoryRepo.FindGuardianByNumber(ctx, db, tenantID, payerName)
	if err != nil {
		return nil, err
	}
	if guardian != nil {
		return &guardian.ID, nil
	}

	candidates, err := s.directoryRepo.FindGuardiansByKanaSubstring(ctx, db, tenantID, payerName)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return &candidates[0].ID, nil
	}
	return nil, nil
}
