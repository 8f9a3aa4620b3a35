// Package domain defines the enrollment pricing requests and results.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

type PreviewRequest struct {
	TenantID   snowflake.ID `json:"tenant_id"`
	GuardianID snowflake.ID `json:"guardian_id"`
	StudentID  snowflake.ID `json:"student_id"`
	CourseID   snowflake.ID `json:"course_id"`
	// StartDate is the enrollment date; mid-month dates prorate the
	// current-month bucket.
	StartDate time.Time `json:"start_date"`
	// DaysOfWeek uses 1=Monday..7=Sunday.
	DaysOfWeek        []int          `json:"days_of_week"`
	AdditionalTickets int            `json:"additional_tickets"`
	TextbookIDs       []snowflake.ID `json:"textbook_ids"`
}

type PreviewLine struct {
	ProductID   snowflake.ID           `json:"product_id"`
	ProductName string                 `json:"product_name"`
	ItemType    catalogdomain.ItemType `json:"item_type"`
	Quantity    int                    `json:"quantity"`
	// UnitPrice is tax-inclusive, per unit; Total = UnitPrice*Quantity.
	UnitPrice    int64 `json:"unit_price"`
	TaxAmount    int64 `json:"tax_amount"`
	Total        int64 `json:"total"`
	ServiceYear  int   `json:"service_year"`
	ServiceMonth int   `json:"service_month"`
}

// PreviewResponse splits the quote into the four billing buckets shown
// at enrollment.
type PreviewResponse struct {
	Enrollment   []PreviewLine `json:"enrollment"`
	CurrentMonth []PreviewLine `json:"current_month"`
	Month1       []PreviewLine `json:"month1"`
	Month2       []PreviewLine `json:"month2"`

	Proration engine.Proration `json:"proration"`

	MileBalance       int   `json:"mile_balance"`
	CanUseMiles       bool  `json:"can_use_miles"`
	AvailableDiscount int64 `json:"available_discount"`

	Total int64 `json:"total"`
}

// PackPreviewRequest prices a whole pack for the enrollment month.
type PackPreviewRequest struct {
	TenantID  snowflake.ID `json:"tenant_id"`
	PackID    snowflake.ID `json:"pack_id"`
	StartDate time.Time    `json:"start_date"`
}

type PackPreviewResponse struct {
	PackID   snowflake.ID              `json:"pack_id"`
	PackName string                    `json:"pack_name"`
	Quote    engine.AggregateBreakdown `json:"quote"`
}

type ConfirmRequest struct {
	PreviewRequest

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	// RedeemMiles > 0 applies the tiered mile discount at purchase.
	RedeemMiles int `json:"redeem_miles"`
	// IdempotencyKey is the client-supplied order token.
	IdempotencyKey string `json:"idempotency_key"`
	// ActorID is the staff member confirming the purchase.
	ActorID snowflake.ID `json:"actor_id"`
}

type ConfirmStatus string

const (
	ConfirmStatusCompleted        ConfirmStatus = "completed"
	ConfirmStatusAlreadyCompleted ConfirmStatus = "already_completed"
)

type ConfirmResult struct {
	Status       ConfirmStatus `json:"status"`
	OrderID      snowflake.ID  `json:"order_id"`
	ContractID   snowflake.ID  `json:"contract_id"`
	MileDiscount int64         `json:"mile_discount"`
	BillingYear  int           `json:"billing_year"`
	BillingMonth int           `json:"billing_month"`
	Total        int64         `json:"total"`
}

var (
	ErrInvalidStartDate   = errors.New("invalid_start_date")
	ErrInvalidDaysOfWeek  = errors.New("invalid_days_of_week")
	ErrInvalidStartTime   = errors.New("invalid_start_time")
	ErrNoOpenBillingMonth = errors.New("no_open_billing_month")
)

type PreviewService interface {
	Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error)
	PackPreview(ctx context.Context, req PackPreviewRequest) (*PackPreviewResponse, error)
}

type ConfirmationService interface {
	ConfirmPurchase(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)
}
