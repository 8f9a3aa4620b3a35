package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
)

// Weekdays are 1=Monday through 7=Sunday throughout the scheduling
// domain.
const (
	WeekdayMonday = 1
	WeekdaySunday = 7
)

var ErrInvalidDayOfWeek = errors.New("invalid_day_of_week")

// Proration counts class occurrences in an enrollment month.
type Proration struct {
	Remaining int
	Total     int
}

func (p Proration) Ratio() decimal.Decimal {
	if p.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.Remaining)).Div(decimal.NewFromInt(int64(p.Total)))
}

// Full reports whether enrollment covers every occurrence, in which
// case no proration line is emitted and regular monthly pricing rules.
func (p Proration) Full() bool {
	return p.Total == 0 || p.Remaining >= p.Total
}

func weekdayOf(t time.Time) int {
	return int(t.Weekday()+6)%7 + 1
}

// ProratedByDayOfWeek counts the weekday's occurrences in start's
// calendar month: all of them, and the subset on/after start.
func ProratedByDayOfWeek(start time.Time, dayOfWeek int) (Proration, error) {
	if dayOfWeek < WeekdayMonday || dayOfWeek > WeekdaySunday {
		return Proration{}, ErrInvalidDayOfWeek
	}

	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	var p Proration
	for d := first; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		if weekdayOf(d) != dayOfWeek {
			continue
		}
		p.Total++
		if !d.Before(startDay) {
			p.Remaining++
		}
	}
	return p, nil
}

// ProratedByDaysOfWeek sums counts across weekdays independently; a
// date serving two class days counts twice.
func ProratedByDaysOfWeek(start time.Time, daysOfWeek []int) (Proration, error) {
	var sum Proration
	for _, day := range daysOfWeek {
		p, err := ProratedByDayOfWeek(start, day)
		if err != nil {
			return Proration{}, err
		}
		sum.Remaining += p.Remaining
		sum.Total += p.Total
	}
	return sum, nil
}

// ProratedFee is one partial-month charge for a recurring item.
type ProratedFee struct {
	ProductID     int64                  `json:"product_id"`
	ProductName   string                 `json:"product_name"`
	ItemType      catalogdomain.ItemType `json:"item_type"`
	FullPrice     int64                  `json:"full_price"`
	ProratedPrice int64                  `json:"prorated_price"`
}

// ProratedCurrentMonthFees prorates each recurring item's tax-inclusive
// enrollment-month price by the occurrence ratio, flooring to whole
// yen. Enrollment covering the whole month emits nothing; the regular
// monthly schedule applies instead.
func (e *Engine) ProratedCurrentMonthFees(
	items []catalogdomain.PricedItem,
	start time.Time,
	daysOfWeek []int,
) ([]ProratedFee, Proration, error) {
	p, err := ProratedByDaysOfWeek(start, daysOfWeek)
	if err != nil {
		return nil, Proration{}, err
	}
	if p.Full() {
		return nil, p, nil
	}

	ratio := p.Ratio()
	var fees []ProratedFee
	for _, item := range items {
		if !item.Product.ItemType.IsRecurring() {
			continue
		}

		base := e.resolver.EnrollmentMonthPrice(item.Product, item.Override, int(start.Month()))
		full := base + taxAmount(base, item.Product.TaxCategory)
		prorated := floorYen(decimal.NewFromInt(full).Mul(ratio))

		fees = append(fees, ProratedFee{
			ProductID:     int64(item.Product.ID),
			ProductName:   item.Product.Name,
			ItemType:      item.Product.ItemType,
			FullPrice:     full,
			ProratedPrice: prorated,
		})
	}
	return fees, p, nil
}

// MonthlyTuition is the planned recurring charge for one month.
type MonthlyTuition struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Total int64      `json:"total"`
}

// MonthlyTuitionPrices plans the two months following enrollment:
// month1 (the first full invoice) is priced off the enrollment-month
// table, month2 off the billing-month table. Totals-only view of
// MonthlyCourseLines.
func (e *Engine) MonthlyTuitionPrices(bundle catalogdomain.CourseBundle, start time.Time) (MonthlyTuition, MonthlyTuition) {
	month1Date := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	month2Date := month1Date.AddDate(0, 1, 0)

	agg1, agg2 := e.MonthlyCourseLines(bundle, start, 0)
	month1 := MonthlyTuition{Year: month1Date.Year(), Month: month1Date.Month(), Total: agg1.Total}
	month2 := MonthlyTuition{Year: month2Date.Year(), Month: month2Date.Month(), Total: agg2.Total}
	return month1, month2
}
