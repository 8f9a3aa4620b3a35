// Package domain contains the product/price catalog models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ItemType string

const (
	ItemTypeTuition           ItemType = "tuition"
	ItemTypeMonthlyFee        ItemType = "monthly_fee"
	ItemTypeFacility          ItemType = "facility"
	ItemTypeTextbook          ItemType = "textbook"
	ItemTypeEnrollment        ItemType = "enrollment"
	ItemTypeEnrollmentTuition ItemType = "enrollment_tuition"
	ItemTypeOther             ItemType = "other"
)

// IsRecurring reports whether the item bills every month and is
// therefore subject to first-month proration.
func (t ItemType) IsRecurring() bool {
	switch t {
	case ItemTypeTuition, ItemTypeMonthlyFee, ItemTypeFacility:
		return true
	}
	return false
}

// MonthPrices holds one optional price per calendar month. A nil entry
// falls through to the next resolver stage.
type MonthPrices struct {
	M01 *int64 `gorm:"column:m01"`
	M02 *int64 `gorm:"column:m02"`
	M03 *int64 `gorm:"column:m03"`
	M04 *int64 `gorm:"column:m04"`
	M05 *int64 `gorm:"column:m05"`
	M06 *int64 `gorm:"column:m06"`
	M07 *int64 `gorm:"column:m07"`
	M08 *int64 `gorm:"column:m08"`
	M09 *int64 `gorm:"column:m09"`
	M10 *int64 `gorm:"column:m10"`
	M11 *int64 `gorm:"column:m11"`
	M12 *int64 `gorm:"column:m12"`
}

func (m MonthPrices) Month(month int) *int64 {
	switch month {
	case 1:
		return m.M01
	case 2:
		return m.M02
	case 3:
		return m.M03
	case 4:
		return m.M04
	case 5:
		return m.M05
	case 6:
		return m.M06
	case 7:
		return m.M07
	case 8:
		return m.M08
	case 9:
		return m.M09
	case 10:
		return m.M10
	case 11:
		return m.M11
	case 12:
		return m.M12
	}
	return nil
}

const (
	TaxCategoryStandard        = 1
	TaxCategoryStandardReduced = 2
	TaxCategoryExempt          = 3
)

type Product struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	BrandID  snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`
	ItemType ItemType     `gorm:"type:text;not null"`
	// BasePrice is the terminal fallback when no month table applies.
	BasePrice      int64       `gorm:"not null"`
	TaxCategory    int         `gorm:"not null;default:1"`
	PerTicketPrice *int64      `gorm:""`
	FirstYearFree  bool        `gorm:"not null;default:false"`
	MileValue      int         `gorm:"not null;default:0"`
	Active         bool        `gorm:"not null;default:true"`
	Enrollment     MonthPrices `gorm:"embedded;embeddedPrefix:enroll_"`
	Billing        MonthPrices `gorm:"embedded;embeddedPrefix:bill_"`
	CreatedAt      time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// ProductPrice is the optional monthly override table. At most one
// active row per product is consulted.
type ProductPrice struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TenantID   snowflake.ID `gorm:"not null;index"`
	ProductID  snowflake.ID `gorm:"not null;index"`
	IsActive   bool         `gorm:"not null;default:true"`
	Enrollment MonthPrices  `gorm:"embedded;embeddedPrefix:enroll_"`
	Billing    MonthPrices  `gorm:"embedded;embeddedPrefix:bill_"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductPrice) TableName() string { return "product_prices" }

type Course struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	BrandID  snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`
	// PriceOverride replaces the summed item price when set.
	PriceOverride *int64    `gorm:""`
	Active        bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Course) TableName() string { return "courses" }

type CourseItem struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TenantID      snowflake.ID `gorm:"not null;index"`
	CourseID      snowflake.ID `gorm:"not null;index"`
	ProductID     snowflake.ID `gorm:"not null;index"`
	Quantity      int          `gorm:"not null;default:1"`
	PriceOverride *int64       `gorm:""`
	Active        bool         `gorm:"not null;default:true"`
}

func (CourseItem) TableName() string { return "course_items" }

type Pack struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	BrandID  snowflake.ID `gorm:"not null;index"`
	Name     string       `gorm:"type:text;not null"`
	// Exactly one of the discount fields is normally set; percent wins
	// when both are present.
	DiscountPercent *float64  `gorm:""`
	DiscountAmount  *int64    `gorm:""`
	Active          bool      `gorm:"not null;default:true"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Pack) TableName() string { return "packs" }

type PackCourse struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`
	PackID   snowflake.ID `gorm:"not null;index"`
	CourseID snowflake.ID `gorm:"not null;index"`
	Quantity int          `gorm:"not null;default:1"`
}

func (PackCourse) TableName() string { return "pack_courses" }

type PackItem struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TenantID      snowflake.ID `gorm:"not null;index"`
	PackID        snowflake.ID `gorm:"not null;index"`
	ProductID     snowflake.ID `gorm:"not null;index"`
	Quantity      int          `gorm:"not null;default:1"`
	PriceOverride *int64       `gorm:""`
	Active        bool         `gorm:"not null;default:true"`
}

func (PackItem) TableName() string { return "pack_items" }

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrCourseNotFound  = errors.New("course_not_found")
	ErrPackNotFound    = errors.New("pack_not_found")
)

// PricedItem pairs a course/pack line with its product and the active
// monthly override, everything a price computation needs.
type PricedItem struct {
	Product       Product
	Override      *ProductPrice
	Quantity      int
	PriceOverride *int64
}

// CourseBundle is the fully loaded course aggregate the pricing engine
// consumes.
type CourseBundle struct {
	Course Course
	Items  []PricedItem
}

// Recurring returns a copy of the bundle holding only monthly items,
// for months after the enrollment month.
func (b CourseBundle) Recurring() CourseBundle {
	out := CourseBundle{Course: b.Course}
	for _, item := range b.Items {
		if item.Product.ItemType.IsRecurring() {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// PackBundle mirrors CourseBundle for packs.
type PackBundle struct {
	Pack    Pack
	Courses []CourseBundle
	Items   []PricedItem
}

type Repository interface {
	FindProductByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Product, error)
	// FindActiveProductPrice returns the single active override row for
	// the product, or nil.
	FindActiveProductPrice(ctx context.Context, db *gorm.DB, tenantID, productID snowflake.ID) (*ProductPrice, error)
	FindCourseByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Course, error)
	ListActiveCourseItems(ctx context.Context, db *gorm.DB, tenantID, courseID snowflake.ID) ([]CourseItem, error)
	FindPackByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Pack, error)
	ListPackCourses(ctx context.Context, db *gorm.DB, tenantID, packID snowflake.ID) ([]PackCourse, error)
	ListActivePackItems(ctx context.Context, db *gorm.DB, tenantID, packID snowflake.ID) ([]PackItem, error)
	// FindBrandProductByType locates the brand-level fallback product
	// for facility/monthly_fee lines missing from a course.
	FindBrandProductByType(ctx context.Context, db *gorm.DB, tenantID, brandID snowflake.ID, itemType ItemType) (*Product, error)
	ListProducts(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit, offset int) ([]Product, error)
	ListCourses(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit, offset int) ([]Course, error)
}

// Service loads priced aggregates for the pricing engine.
type Service interface {
	LoadProduct(ctx context.Context, tenantID, productID snowflake.ID) (*PricedItem, error)
	LoadCourse(ctx context.Context, tenantID, courseID snowflake.ID) (*CourseBundle, error)
	LoadPack(ctx context.Context, tenantID, packID snowflake.ID) (*PackBundle, error)
	FindBrandFallback(ctx context.Context, tenantID, brandID snowflake.ID, itemType ItemType) (*PricedItem, error)
	ListProducts(ctx context.Context, tenantID snowflake.ID, limit, offset int) ([]Product, error)
	ListCourses(ctx context.Context, tenantID snowflake.ID, limit, offset int) ([]Course, error)
}
