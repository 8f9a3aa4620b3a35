package engine_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

func ptr[T any](v T) *T { return &v }

func tuitionProduct(base int64) catalogdomain.Product {
	return catalogdomain.Product{
		ID:          snowflake.ID(1),
		Name:        "小学生コース授業料",
		ItemType:    catalogdomain.ItemTypeTuition,
		BasePrice:   base,
		TaxCategory: catalogdomain.TaxCategoryStandard,
	}
}

func TestProductPriceTaxRounding(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	item := catalogdomain.PricedItem{Product: tuitionProduct(999), Quantity: 1}

	got := e.ProductPrice(item, enrollment, 2025, time.May, 0, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(999), got.Subtotal)
	assert.Equal(t, int64(100), got.TaxAmount, "round_half_up(99.9)")
	assert.Equal(t, int64(1099), got.Total)

	exempt := e.ProductPrice(item, enrollment, 2025, time.May, 0, catalogdomain.TaxCategoryExempt)
	assert.Equal(t, int64(0), exempt.TaxAmount)
	assert.Equal(t, int64(999), exempt.Total)
}

func TestProductPriceFirstMonthUsesEnrollmentTable(t *testing.T) {
	e := engine.New()

	product := tuitionProduct(10000)
	product.Enrollment.M04 = ptr(int64(8000))
	product.Billing.M05 = ptr(int64(12000))
	item := catalogdomain.PricedItem{Product: product, Quantity: 1}

	enrollment := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	first := e.ProductPrice(item, enrollment, 2025, time.April, 0, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(8000), first.BasePrice)

	ongoing := e.ProductPrice(item, enrollment, 2025, time.May, 0, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(12000), ongoing.BasePrice)

	// June has no billing entry; the base price is the terminal fallback.
	fallback := e.ProductPrice(item, enrollment, 2025, time.June, 0, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(10000), fallback.BasePrice)
}

func TestProductPriceOverrideTableWins(t *testing.T) {
	e := engine.New()

	product := tuitionProduct(10000)
	product.Billing.M05 = ptr(int64(12000))
	override := &catalogdomain.ProductPrice{
		IsActive: true,
	}
	override.Billing.M05 = ptr(int64(11000))
	item := catalogdomain.PricedItem{Product: product, Override: override, Quantity: 1}

	enrollment := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	got := e.ProductPrice(item, enrollment, 2025, time.May, 0, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(11000), got.BasePrice)
}

func TestAdditionalTicketSurcharge(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	item := catalogdomain.PricedItem{Product: tuitionProduct(3300), Quantity: 1}

	got := e.ProductPrice(item, enrollment, 2025, time.May, 2, catalogdomain.TaxCategoryStandard)
	// 3300 / 3.3 = 1000 per ticket.
	assert.Equal(t, int64(2000), got.AdditionalTicketPrice)
	assert.Equal(t, int64(5300), got.Subtotal)
}

func TestAdditionalTicketSurchargeRoundsHalfUp(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	item := catalogdomain.PricedItem{Product: tuitionProduct(10000), Quantity: 1}

	got := e.ProductPrice(item, enrollment, 2025, time.May, 1, catalogdomain.TaxCategoryStandard)
	// 10000 / 3.3 = 3030.30... -> 3030
	assert.Equal(t, int64(3030), got.AdditionalTicketPrice)
}

func TestSurchargeExclusions(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	textbook := catalogdomain.PricedItem{Product: catalogdomain.Product{
		Name:        "算数テキスト",
		ItemType:    catalogdomain.ItemTypeTextbook,
		BasePrice:   2000,
		TaxCategory: catalogdomain.TaxCategoryStandard,
	}, Quantity: 1}
	got := e.ProductPrice(textbook, enrollment, 2025, time.May, 3, catalogdomain.TaxCategoryStandard)
	assert.Zero(t, got.AdditionalTicketPrice)

	byName := catalogdomain.PricedItem{Product: catalogdomain.Product{
		Name:        "入会金",
		ItemType:    catalogdomain.ItemTypeOther,
		BasePrice:   11000,
		TaxCategory: catalogdomain.TaxCategoryStandard,
	}, Quantity: 1}
	got = e.ProductPrice(byName, enrollment, 2025, time.May, 3, catalogdomain.TaxCategoryStandard)
	assert.Zero(t, got.AdditionalTicketPrice)
}

func TestPerTicketPricePreferred(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	product := tuitionProduct(10000)
	product.PerTicketPrice = ptr(int64(2500))
	item := catalogdomain.PricedItem{Product: product, Quantity: 1}

	got := e.ProductPrice(item, enrollment, 2025, time.May, 2, catalogdomain.TaxCategoryStandard)
	assert.Equal(t, int64(5000), got.AdditionalTicketPrice)
}

func TestCoursePriceSumsItemsByQuantity(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	bundle := catalogdomain.CourseBundle{
		Course: catalogdomain.Course{Name: "中学生 英数コース"},
		Items: []catalogdomain.PricedItem{
			{Product: tuitionProduct(10000), Quantity: 1},
			{Product: catalogdomain.Product{
				ID:          snowflake.ID(2),
				Name:        "設備費",
				ItemType:    catalogdomain.ItemTypeFacility,
				BasePrice:   1000,
				TaxCategory: catalogdomain.TaxCategoryStandard,
			}, Quantity: 2},
		},
	}

	got := e.CoursePrice(bundle, enrollment, 2025, time.May, 0)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, int64(12000), got.Subtotal)
	assert.Equal(t, int64(1200), got.TaxAmount)
	assert.Equal(t, int64(13200), got.Total)
}

func TestCoursePriceOverrideReplacesSum(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	bundle := catalogdomain.CourseBundle{
		Course: catalogdomain.Course{PriceOverride: ptr(int64(20000))},
		Items: []catalogdomain.PricedItem{
			{Product: tuitionProduct(10000), Quantity: 1},
		},
	}

	got := e.CoursePrice(bundle, enrollment, 2025, time.May, 0)
	assert.Equal(t, int64(20000), got.Subtotal)
	assert.Equal(t, int64(2000), got.TaxAmount)
}

func TestCourseItemPriceOverride(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	bundle := catalogdomain.CourseBundle{
		Items: []catalogdomain.PricedItem{
			{Product: tuitionProduct(10000), Quantity: 1, PriceOverride: ptr(int64(7000))},
		},
	}

	got := e.CoursePrice(bundle, enrollment, 2025, time.May, 0)
	assert.Equal(t, int64(7000), got.Subtotal)
}

func TestPackPriceDiscounts(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	course := catalogdomain.CourseBundle{
		Items: []catalogdomain.PricedItem{
			{Product: tuitionProduct(10000), Quantity: 1},
		},
	}

	percent := catalogdomain.PackBundle{
		Pack:    catalogdomain.Pack{DiscountPercent: ptr(10.0)},
		Courses: []catalogdomain.CourseBundle{course},
	}
	got := e.PackPrice(percent, enrollment, 2025, time.May)
	assert.Equal(t, int64(1000), got.DiscountAmount)
	assert.Equal(t, int64(9000), got.Subtotal)
	assert.Equal(t, int64(900), got.TaxAmount)
	assert.Equal(t, int64(9900), got.Total)

	fixed := catalogdomain.PackBundle{
		Pack:    catalogdomain.Pack{DiscountAmount: ptr(int64(3000))},
		Courses: []catalogdomain.CourseBundle{course},
	}
	got = e.PackPrice(fixed, enrollment, 2025, time.May)
	assert.Equal(t, int64(7000), got.Subtotal)
	assert.Equal(t, int64(700), got.TaxAmount)
}

func TestPackDiscountFloorsAtZero(t *testing.T) {
	e := engine.New()
	enrollment := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	bundle := catalogdomain.PackBundle{
		Pack: catalogdomain.Pack{DiscountAmount: ptr(int64(99999))},
		Courses: []catalogdomain.CourseBundle{{
			Items: []catalogdomain.PricedItem{
				{Product: tuitionProduct(5000), Quantity: 1},
			},
		}},
	}

	got := e.PackPrice(bundle, enrollment, 2025, time.May)
	assert.Equal(t, int64(0), got.Subtotal)
	assert.Equal(t, int64(0), got.TaxAmount)
	assert.Equal(t, int64(0), got.Total)
	assert.Equal(t, int64(5000), got.DiscountAmount, "discount capped at the pre-tax subtotal")
}
