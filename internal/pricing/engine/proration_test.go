package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

// 2025-09-01 is a Monday; September 2025 has five Mondays
// (1, 8, 15, 22, 29).
var september = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func TestProratedByDayOfWeek(t *testing.T) {
	midMonth := september.AddDate(0, 0, 15) // Sep 16, Tuesday
	p, err := engine.ProratedByDayOfWeek(midMonth, engine.WeekdayMonday)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 2, p.Remaining, "Sep 22 and 29 remain")
	assert.True(t, p.Ratio().Equal(decimal.NewFromFloat(0.4)))
}

func TestProratedByDayOfWeekFirstDayIsFull(t *testing.T) {
	p, err := engine.ProratedByDayOfWeek(september, engine.WeekdayMonday)
	require.NoError(t, err)
	assert.Equal(t, p.Total, p.Remaining)
	assert.True(t, p.Full())
	assert.True(t, p.Ratio().Equal(decimal.NewFromInt(1)))
}

func TestProratedByDayOfWeekBounds(t *testing.T) {
	for day := engine.WeekdayMonday; day <= engine.WeekdaySunday; day++ {
		for offset := 0; offset < 30; offset++ {
			p, err := engine.ProratedByDayOfWeek(september.AddDate(0, 0, offset), day)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p.Remaining, 0)
			assert.LessOrEqual(t, p.Remaining, p.Total)
		}
	}
}

func TestProratedByDayOfWeekInvalid(t *testing.T) {
	_, err := engine.ProratedByDayOfWeek(september, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidDayOfWeek)
	_, err = engine.ProratedByDayOfWeek(september, 8)
	assert.ErrorIs(t, err, engine.ErrInvalidDayOfWeek)
}

func TestProratedByDaysOfWeekSumsWithoutDedup(t *testing.T) {
	midMonth := september.AddDate(0, 0, 15)
	p, err := engine.ProratedByDaysOfWeek(midMonth, []int{engine.WeekdayMonday, engine.WeekdayMonday})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Total)
	assert.Equal(t, 4, p.Remaining)
}

func TestProratedCurrentMonthFees(t *testing.T) {
	e := engine.New()

	items := []catalogdomain.PricedItem{
		{Product: tuitionProduct(10000), Quantity: 1},
		{Product: catalogdomain.Product{
			Name:        "入会金",
			ItemType:    catalogdomain.ItemTypeEnrollment,
			BasePrice:   11000,
			TaxCategory: catalogdomain.TaxCategoryStandard,
		}, Quantity: 1},
	}

	midMonth := september.AddDate(0, 0, 15) // ratio 2/5
	fees, p, err := e.ProratedCurrentMonthFees(items, midMonth, []int{engine.WeekdayMonday})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Remaining)

	// Only the recurring tuition line is prorated; one-time items are
	// excluded.
	require.Len(t, fees, 1)
	assert.Equal(t, int64(11000), fees[0].FullPrice, "tax-inclusive full price")
	assert.Equal(t, int64(4400), fees[0].ProratedPrice, "floor(11000 * 0.4)")
}

func TestProratedCurrentMonthFeesFullMonthEmitsNothing(t *testing.T) {
	e := engine.New()
	items := []catalogdomain.PricedItem{{Product: tuitionProduct(10000), Quantity: 1}}

	fees, p, err := e.ProratedCurrentMonthFees(items, september, []int{engine.WeekdayMonday})
	require.NoError(t, err)
	assert.True(t, p.Full())
	assert.Empty(t, fees)
}

func TestMonthlyTuitionPrices(t *testing.T) {
	e := engine.New()

	product := tuitionProduct(10000)
	product.Enrollment.M10 = ptr(int64(8000))
	product.Billing.M11 = ptr(int64(12000))

	bundle := catalogdomain.CourseBundle{
		Items: []catalogdomain.PricedItem{{Product: product, Quantity: 1}},
	}

	start := september.AddDate(0, 0, 15)
	month1, month2 := e.MonthlyTuitionPrices(bundle, start)

	assert.Equal(t, time.October, month1.Month)
	assert.Equal(t, int64(8800), month1.Total, "enrollment table entry for October, tax included")

	assert.Equal(t, time.November, month2.Month)
	assert.Equal(t, int64(13200), month2.Total, "billing table entry for November, tax included")
}

func TestMonthlyCourseLinesTableSelection(t *testing.T) {
	e := engine.New()

	tuition := tuitionProduct(10000)
	tuition.Enrollment.M10 = ptr(int64(8000))
	tuition.Billing.M10 = ptr(int64(12000))
	tuition.Billing.M11 = ptr(int64(12000))

	textbook := catalogdomain.Product{
		Name:        "教材費",
		ItemType:    catalogdomain.ItemTypeTextbook,
		BasePrice:   3000,
		TaxCategory: catalogdomain.TaxCategoryStandard,
	}

	bundle := catalogdomain.CourseBundle{
		Items: []catalogdomain.PricedItem{
			{Product: tuition, Quantity: 1},
			{Product: textbook, Quantity: 1},
		},
	}

	month1, month2 := e.MonthlyCourseLines(bundle, september.AddDate(0, 0, 15), 0)

	require.Len(t, month1.Lines, 1, "one-time items stay out of the monthly plan")
	assert.Equal(t, int64(8800), month1.Total, "October reads the enrollment table")
	require.Len(t, month2.Lines, 1)
	assert.Equal(t, int64(13200), month2.Total, "November reads the billing table")
}

func TestMonthlyTuitionPricesYearRollover(t *testing.T) {
	e := engine.New()
	bundle := catalogdomain.CourseBundle{
		Items: []catalogdomain.PricedItem{{Product: tuitionProduct(10000), Quantity: 1}},
	}

	start := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	month1, month2 := e.MonthlyTuitionPrices(bundle, start)

	assert.Equal(t, 2026, month1.Year)
	assert.Equal(t, time.January, month1.Month)
	assert.Equal(t, 2026, month2.Year)
	assert.Equal(t, time.February, month2.Month)
}
