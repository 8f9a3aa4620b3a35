// Package migration creates and evolves the schema. AutoMigrate covers
// the models; the handful of indexes gorm tags cannot express are
// created with raw SQL.
package migration

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	"github.com/manabill-io/manabill/internal/scheduler"
)

func models() []any {
	return []any{
		&directorydomain.Brand{},
		&directorydomain.Guardian{},
		&directorydomain.Student{},

		&catalogdomain.Product{},
		&catalogdomain.ProductPrice{},
		&catalogdomain.Course{},
		&catalogdomain.CourseItem{},
		&catalogdomain.Pack{},
		&catalogdomain.PackCourse{},
		&catalogdomain.PackItem{},

		&contractdomain.Contract{},
		&contractdomain.StudentItem{},

		&billingdomain.ConfirmedBilling{},
		&billingdomain.MonthlyBillingDeadline{},
		&billingdomain.DeadlineHistory{},
		&billingdomain.PaymentProvider{},

		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&invoicedomain.Payment{},

		&balancedomain.GuardianBalance{},
		&balancedomain.OffsetLog{},

		&transferdomain.BankTransferImport{},
		&transferdomain.BankTransfer{},

		&miledomain.MileTransaction{},

		&scheduler.JobRun{},
	}
}

// Run migrates the full schema.
func Run(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return err
	}

	// Only one live contract per purchase identity; voided rows keep
	// history without blocking re-enrollment.
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_contract_live
		ON contracts (student_id, course_id, day_of_week, start_time)
		WHERE voided = false`).Error
	if err != nil {
		return err
	}

	log.Info("schema migrated")
	return nil
}
