// Package engine implements pure price calculation: no persistence, no
// clock, only catalog data in and yen amounts out.
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
)

// Breakdown is the priced result for a single product line.
type Breakdown struct {
	BasePrice             int64 `json:"base_price"`
	AdditionalTicketPrice int64 `json:"additional_ticket_price"`
	Subtotal              int64 `json:"subtotal"`
	TaxAmount             int64 `json:"tax_amount"`
	Total                 int64 `json:"total"`
}

// LineBreakdown pairs a product with its quantity-expanded breakdown.
type LineBreakdown struct {
	ProductID   int64                  `json:"product_id"`
	ProductName string                 `json:"product_name"`
	ItemType    catalogdomain.ItemType `json:"item_type"`
	Quantity    int                    `json:"quantity"`
	Breakdown
}

// AggregateBreakdown sums course or pack lines.
type AggregateBreakdown struct {
	Lines          []LineBreakdown `json:"lines"`
	Subtotal       int64           `json:"subtotal"`
	DiscountAmount int64           `json:"discount_amount"`
	TaxAmount      int64           `json:"tax_amount"`
	Total          int64           `json:"total"`
}

type Engine struct {
	resolver catalogdomain.PriceResolver
}

func New() *Engine {
	return &Engine{}
}

// ticket surcharge never applies to one-time enrollment or textbook
// charges, matched both by item type and by name.
var surchargeExcludedNames = []string{"入会金", "教材費", "入会時教材費"}

func surchargeEligible(product catalogdomain.Product) bool {
	switch product.ItemType {
	case catalogdomain.ItemTypeEnrollment, catalogdomain.ItemTypeTextbook:
		return false
	}
	for _, name := range surchargeExcludedNames {
		if strings.Contains(product.Name, name) {
			return false
		}
	}
	return true
}

// ProductPrice computes one product's price for a target billing month.
// The month a student enrolls in uses the enrollment-month table; every
// later month uses the billing-month table. Both fall back through the
// PriceResolver chain.
func (e *Engine) ProductPrice(
	item catalogdomain.PricedItem,
	enrollmentDate time.Time,
	targetYear int,
	targetMonth time.Month,
	additionalTickets int,
	taxCategory int,
) Breakdown {
	isFirstMonth := targetYear == enrollmentDate.Year() && targetMonth == enrollmentDate.Month()
	return e.monthTablePrice(item, int(targetMonth), isFirstMonth, additionalTickets, taxCategory)
}

// monthTablePrice prices one line off an explicit table: the
// enrollment-month table or the billing-month table, both keyed by the
// target calendar month. The ticket surcharge divisor always reads the
// billing table.
func (e *Engine) monthTablePrice(
	item catalogdomain.PricedItem,
	month int,
	enrollmentTable bool,
	additionalTickets int,
	taxCategory int,
) Breakdown {
	product := item.Product

	var base int64
	switch {
	case item.PriceOverride != nil:
		base = *item.PriceOverride
	case enrollmentTable:
		base = e.resolver.EnrollmentMonthPrice(product, item.Override, month)
	default:
		base = e.resolver.BillingMonthPrice(product, item.Override, month)
	}

	var additional int64
	if additionalTickets > 0 && surchargeEligible(product) {
		if product.PerTicketPrice != nil {
			additional = *product.PerTicketPrice * int64(additionalTickets)
		} else {
			monthly := e.resolver.BillingMonthPrice(product, item.Override, month)
			perTicket := decimal.NewFromInt(monthly).Div(ticketDivisor)
			additional = roundHalfUpYen(perTicket.Mul(decimal.NewFromInt(int64(additionalTickets))))
		}
	}

	subtotal := base + additional
	tax := taxAmount(subtotal, taxCategory)

	return Breakdown{
		BasePrice:             base,
		AdditionalTicketPrice: additional,
		Subtotal:              subtotal,
		TaxAmount:             tax,
		Total:                 subtotal + tax,
	}
}

func taxAmount(subtotal int64, taxCategory int) int64 {
	switch taxCategory {
	case catalogdomain.TaxCategoryStandard, catalogdomain.TaxCategoryStandardReduced:
		return roundHalfUpYen(decimal.NewFromInt(subtotal).Mul(taxRateStandard))
	case catalogdomain.TaxCategoryExempt:
		return 0
	}
	return roundHalfUpYen(decimal.NewFromInt(subtotal).Mul(taxRateStandard))
}

// CoursePrice aggregates a course's active items for the target month.
// Additional tickets attach to tuition lines only. A course-level price
// override replaces the summed subtotal wholesale.
func (e *Engine) CoursePrice(
	bundle catalogdomain.CourseBundle,
	enrollmentDate time.Time,
	targetYear int,
	targetMonth time.Month,
	additionalTickets int,
) AggregateBreakdown {
	var agg AggregateBreakdown

	for _, item := range bundle.Items {
		tickets := 0
		if item.Product.ItemType == catalogdomain.ItemTypeTuition {
			tickets = additionalTickets
		}

		unit := e.ProductPrice(item, enrollmentDate, targetYear, targetMonth, tickets, item.Product.TaxCategory)
		line := expandLine(item, unit)
		agg.Lines = append(agg.Lines, line)
		agg.Subtotal += line.Subtotal
		agg.TaxAmount += line.TaxAmount
	}

	if bundle.Course.PriceOverride != nil {
		agg.Subtotal = *bundle.Course.PriceOverride
		agg.TaxAmount = taxAmount(agg.Subtotal, catalogdomain.TaxCategoryStandard)
	}

	agg.Total = agg.Subtotal + agg.TaxAmount
	return agg
}

// MonthlyCourseLines prices the two invoice months following
// enrollment, recurring items only. Month1 (the first full invoice)
// reads the enrollment-month table, month2 the billing-month table;
// additional tickets attach to tuition lines.
func (e *Engine) MonthlyCourseLines(
	bundle catalogdomain.CourseBundle,
	enrollmentDate time.Time,
	additionalTickets int,
) (AggregateBreakdown, AggregateBreakdown) {
	month1Date := time.Date(enrollmentDate.Year(), enrollmentDate.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	month2Date := month1Date.AddDate(0, 1, 0)

	recurring := bundle.Recurring()
	month1 := e.courseTableLines(recurring, int(month1Date.Month()), true, additionalTickets)
	month2 := e.courseTableLines(recurring, int(month2Date.Month()), false, additionalTickets)
	return month1, month2
}

func (e *Engine) courseTableLines(
	bundle catalogdomain.CourseBundle,
	month int,
	enrollmentTable bool,
	additionalTickets int,
) AggregateBreakdown {
	var agg AggregateBreakdown

	for _, item := range bundle.Items {
		tickets := 0
		if item.Product.ItemType == catalogdomain.ItemTypeTuition {
			tickets = additionalTickets
		}

		unit := e.monthTablePrice(item, month, enrollmentTable, tickets, item.Product.TaxCategory)
		line := expandLine(item, unit)
		agg.Lines = append(agg.Lines, line)
		agg.Subtotal += line.Subtotal
		agg.TaxAmount += line.TaxAmount
	}

	if bundle.Course.PriceOverride != nil {
		agg.Subtotal = *bundle.Course.PriceOverride
		agg.TaxAmount = taxAmount(agg.Subtotal, catalogdomain.TaxCategoryStandard)
	}

	agg.Total = agg.Subtotal + agg.TaxAmount
	return agg
}

func expandLine(item catalogdomain.PricedItem, unit Breakdown) LineBreakdown {
	qty := int64(item.Quantity)
	return LineBreakdown{
		ProductID:   int64(item.Product.ID),
		ProductName: item.Product.Name,
		ItemType:    item.Product.ItemType,
		Quantity:    item.Quantity,
		Breakdown: Breakdown{
			BasePrice:             unit.BasePrice * qty,
			AdditionalTicketPrice: unit.AdditionalTicketPrice * qty,
			Subtotal:              unit.Subtotal * qty,
			TaxAmount:             unit.TaxAmount * qty,
			Total:                 unit.Total * qty,
		},
	}
}

// PackPrice aggregates pack courses and items, then applies the pack
// discount to the pre-tax subtotal before recomputing tax. The
// discounted subtotal never goes below zero.
func (e *Engine) PackPrice(
	bundle catalogdomain.PackBundle,
	enrollmentDate time.Time,
	targetYear int,
	targetMonth time.Month,
) AggregateBreakdown {
	var agg AggregateBreakdown
	var taxableSubtotal, exemptSubtotal int64

	collect := func(line LineBreakdown, taxCategory int) {
		agg.Lines = append(agg.Lines, line)
		if taxCategory == catalogdomain.TaxCategoryExempt {
			exemptSubtotal += line.Subtotal
		} else {
			taxableSubtotal += line.Subtotal
		}
	}

	for _, course := range bundle.Courses {
		courseAgg := e.CoursePrice(course, enrollmentDate, targetYear, targetMonth, 0)
		for _, line := range courseAgg.Lines {
			category := catalogdomain.TaxCategoryStandard
			if line.TaxAmount == 0 && line.Subtotal > 0 {
				category = catalogdomain.TaxCategoryExempt
			}
			collect(line, category)
		}
	}

	for _, item := range bundle.Items {
		unit := e.ProductPrice(item, enrollmentDate, targetYear, targetMonth, 0, item.Product.TaxCategory)
		collect(expandLine(item, unit), item.Product.TaxCategory)
	}

	preTax := taxableSubtotal + exemptSubtotal

	var discount int64
	switch {
	case bundle.Pack.DiscountPercent != nil:
		discount = roundHalfUpYen(decimal.NewFromInt(preTax).
			Mul(decimal.NewFromFloat(*bundle.Pack.DiscountPercent)).
			Div(decimal.NewFromInt(100)))
	case bundle.Pack.DiscountAmount != nil:
		discount = *bundle.Pack.DiscountAmount
	}
	if discount > preTax {
		discount = preTax
	}

	// The discount erodes the taxable share first; only once it is
	// exhausted does it touch exempt lines.
	discountedTaxable := taxableSubtotal - discount
	discountedExempt := exemptSubtotal
	if discountedTaxable < 0 {
		discountedExempt += discountedTaxable
		discountedTaxable = 0
	}
	if discountedExempt < 0 {
		discountedExempt = 0
	}

	agg.Subtotal = discountedTaxable + discountedExempt
	agg.DiscountAmount = discount
	agg.TaxAmount = roundHalfUpYen(decimal.NewFromInt(discountedTaxable).Mul(taxRateStandard))
	agg.Total = agg.Subtotal + agg.TaxAmount
	return agg
}
