package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ChangeScheduleRequest struct {
	TenantID   snowflake.ID
	ContractID snowflake.ID
	ActorID    snowflake.ID
	// ActorRole gates edits while the billing period is under review.
	ActorRole string

	DayOfWeek int
	StartTime string
	EndTime   string
}

type CancelRequest struct {
	TenantID   snowflake.ID
	ContractID snowflake.ID
	ActorID    snowflake.ID
	ActorRole  string
	Reason     string
}

type Service interface {
	ChangeSchedule(ctx context.Context, req ChangeScheduleRequest) (*Contract, error)
	// Cancel soft-cancels: status moves to cancelled and the contract
	// is voided so the enrollment slot frees up.
	Cancel(ctx context.Context, req CancelRequest) (*Contract, error)
	Get(ctx context.Context, tenantID, contractID snowflake.ID) (*Contract, error)
	ListByGuardian(ctx context.Context, tenantID, guardianID snowflake.ID) ([]Contract, error)
}
