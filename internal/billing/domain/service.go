package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentApplication records how much of a payment landed on one
// statement.
type PaymentApplication struct {
	BillingID snowflake.ID
	Year      int
	Month     int
	Amount    int64
}

// ApplyPaymentResult reports where a payment went. Leftover is the
// portion no outstanding statement could absorb; callers route it to
// the guardian's prepaid balance.
type ApplyPaymentResult struct {
	AppliedAmount int64
	Leftover      int64
	Applications  []PaymentApplication
}

type CloseMonthRequest struct {
	TenantID snowflake.ID
	Year     int
	Month    int
	ActorID  snowflake.ID
}

type CloseStudentError struct {
	StudentID snowflake.ID
	Message   string
}

// CloseMonthReport summarizes one month close. Failed students are
// collected rather than aborting the whole run.
type CloseMonthReport struct {
	Year           int
	Month          int
	StudentsBilled int
	TotalAmount    int64
	OffsetAmount   int64
	Errors         []CloseStudentError
}

type ReopenMonthRequest struct {
	TenantID snowflake.ID
	Year     int
	Month    int
	ActorID  snowflake.ID
	Reason   string
}

type Service interface {
	// ApplyPayment runs inside the caller's transaction. Statements
	// whose balance equals the payment exactly are settled first, then
	// the remainder is applied chronologically.
	ApplyPayment(ctx context.Context, db *gorm.DB, tenantID, guardianID snowflake.ID, amount int64, source string) (*ApplyPaymentResult, error)
	CloseMonth(ctx context.Context, req CloseMonthRequest) (*CloseMonthReport, error)
	ReopenMonth(ctx context.Context, req ReopenMonthRequest) error
	ListOutstanding(ctx context.Context, tenantID, guardianID snowflake.ID) ([]ConfirmedBilling, error)
	ListByPeriod(ctx context.Context, tenantID snowflake.ID, year, month int) ([]ConfirmedBilling, error)
}
