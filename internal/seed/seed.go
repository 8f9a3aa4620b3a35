// Package seed bootstraps a demo tenant for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
)

const demoTenantID = snowflake.ID(1)

// EnsureDemoTenant seeds a brand, a guardian with one student, a small
// product catalog and a payment provider. Idempotent: an existing brand
// short-circuits the whole seed.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&directorydomain.Brand{}).Where("tenant_id = ?", demoTenantID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		brand := &directorydomain.Brand{
			ID:       node.Generate(),
			TenantID: demoTenantID,
			Name:     "まなびる個別指導",
		}
		if err := tx.Create(brand).Error; err != nil {
			return err
		}

		guardian := &directorydomain.Guardian{
			ID:       node.Generate(),
			TenantID: demoTenantID,
			Number:   "G-0001",
			Name:     "山田太郎",
			KanaName: "ヤマダタロウ",
			Email:    "yamada@example.com",
		}
		if err := tx.Create(guardian).Error; err != nil {
			return err
		}
		student := &directorydomain.Student{
			ID:         node.Generate(),
			TenantID:   demoTenantID,
			GuardianID: guardian.ID,
			BrandID:    brand.ID,
			Name:       "山田花子",
		}
		if err := tx.Create(student).Error; err != nil {
			return err
		}

		tuition := &catalogdomain.Product{
			ID:          node.Generate(),
			TenantID:    demoTenantID,
			BrandID:     brand.ID,
			Name:        "小学生コース授業料",
			ItemType:    catalogdomain.ItemTypeTuition,
			BasePrice:   10000,
			TaxCategory: catalogdomain.TaxCategoryStandard,
			MileValue:   1,
			Active:      true,
		}
		facility := &catalogdomain.Product{
			ID:          node.Generate(),
			TenantID:    demoTenantID,
			BrandID:     brand.ID,
			Name:        "設備費",
			ItemType:    catalogdomain.ItemTypeFacility,
			BasePrice:   1000,
			TaxCategory: catalogdomain.TaxCategoryStandard,
			Active:      true,
		}
		enrollment := &catalogdomain.Product{
			ID:          node.Generate(),
			TenantID:    demoTenantID,
			BrandID:     brand.ID,
			Name:        "入会金",
			ItemType:    catalogdomain.ItemTypeEnrollment,
			BasePrice:   11000,
			TaxCategory: catalogdomain.TaxCategoryExempt,
			Active:      true,
		}
		for _, p := range []*catalogdomain.Product{tuition, facility, enrollment} {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}

		course := &catalogdomain.Course{
			ID:       node.Generate(),
			TenantID: demoTenantID,
			BrandID:  brand.ID,
			Name:     "小学生コース",
			Active:   true,
		}
		if err := tx.Create(course).Error; err != nil {
			return err
		}
		for _, productID := range []snowflake.ID{tuition.ID, facility.ID} {
			item := &catalogdomain.CourseItem{
				ID:        node.Generate(),
				TenantID:  demoTenantID,
				CourseID:  course.ID,
				ProductID: productID,
				Quantity:  1,
				Active:    true,
			}
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}

		provider := &billingdomain.PaymentProvider{
			ID:                node.Generate(),
			TenantID:          demoTenantID,
			Name:              "口座振替",
			DefaultClosingDay: 25,
			IsActive:          true,
			CreatedAt:         time.Now().UTC(),
		}
		return tx.Create(provider).Error
	})
}
