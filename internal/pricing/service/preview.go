package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	pricingdomain "github.com/manabill-io/manabill/internal/pricing/domain"
	"github.com/manabill-io/manabill/internal/pricing/engine"
)

type PreviewService struct {
	db  *gorm.DB
	log *zap.Logger

	engine  *engine.Engine
	catalog catalogdomain.Service
	mileSvc miledomain.Service
}

type PreviewServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Catalog catalogdomain.Service
	MileSvc miledomain.Service
}

func NewPreviewService(p PreviewServiceParam) pricingdomain.PreviewService {
	return &PreviewService{
		db:      p.DB,
		log:     p.Log.Named("pricing.preview"),
		engine:  engine.New(),
		catalog: p.Catalog,
		mileSvc: p.MileSvc,
	}
}

func (s *PreviewService) Preview(ctx context.Context, req pricingdomain.PreviewRequest) (*pricingdomain.PreviewResponse, error) {
	if req.StartDate.IsZero() {
		return nil, pricingdomain.ErrInvalidStartDate
	}
	if len(req.DaysOfWeek) == 0 {
		return nil, pricingdomain.ErrInvalidDaysOfWeek
	}

	bundle, err := s.catalog.LoadCourse(ctx, req.TenantID, req.CourseID)
	if err != nil {
		return nil, err
	}

	resp := &pricingdomain.PreviewResponse{}

	if err := s.buildEnrollmentBucket(ctx, req, bundle, resp); err != nil {
		return nil, err
	}
	if err := s.buildCurrentMonthBucket(ctx, req, bundle, resp); err != nil {
		return nil, err
	}
	s.buildMonthlyBuckets(req, bundle, resp)

	balance, err := s.mileSvc.GetBalance(ctx, s.db, req.TenantID, req.GuardianID)
	if err != nil {
		return nil, err
	}
	canUse, err := s.mileSvc.CanUseMiles(ctx, s.db, req.TenantID, req.GuardianID)
	if err != nil {
		return nil, err
	}
	resp.MileBalance = balance
	resp.CanUseMiles = canUse
	if canUse {
		resp.AvailableDiscount = s.mileSvc.CalculateDiscount(balance)
	}

	for _, bucket := range [][]pricingdomain.PreviewLine{resp.Enrollment, resp.CurrentMonth, resp.Month1, resp.Month2} {
		for _, line := range bucket {
			resp.Total += line.Total
		}
	}
	return resp, nil
}

// PackPreview prices a pack for the enrollment month; the pack
// discount lands on the pre-tax subtotal.
func (s *PreviewService) PackPreview(ctx context.Context, req pricingdomain.PackPreviewRequest) (*pricingdomain.PackPreviewResponse, error) {
	if req.StartDate.IsZero() {
		return nil, pricingdomain.ErrInvalidStartDate
	}

	bundle, err := s.catalog.LoadPack(ctx, req.TenantID, req.PackID)
	if err != nil {
		return nil, err
	}

	quote := s.engine.PackPrice(*bundle, req.StartDate, req.StartDate.Year(), req.StartDate.Month())
	return &pricingdomain.PackPreviewResponse{
		PackID:   bundle.Pack.ID,
		PackName: bundle.Pack.Name,
		Quote:    quote,
	}, nil
}

// buildEnrollmentBucket assembles one-time charges: the enrollment fee
// (suppressed once any sibling has paid it), the welcome bag
// (suppressed per student), and the selected textbooks.
func (s *PreviewService) buildEnrollmentBucket(ctx context.Context, req pricingdomain.PreviewRequest, bundle *catalogdomain.CourseBundle, resp *pricingdomain.PreviewResponse) error {
	year, month := req.StartDate.Year(), int(req.StartDate.Month())

	enrollmentFee, err := s.catalog.FindBrandFallback(ctx, req.TenantID, bundle.Course.BrandID, catalogdomain.ItemTypeEnrollment)
	if err != nil {
		return err
	}
	if enrollmentFee != nil {
		paid, err := s.HasGuardianPaidEnrollmentFee(ctx, req.TenantID, req.GuardianID)
		if err != nil {
			return err
		}
		if !paid {
			resp.Enrollment = append(resp.Enrollment, s.oneTimeLine(req.StartDate, *enrollmentFee, year, month))
		}
	}

	bag, err := s.catalog.FindBrandFallback(ctx, req.TenantID, bundle.Course.BrandID, catalogdomain.ItemTypeEnrollmentTuition)
	if err != nil {
		return err
	}
	if bag != nil {
		received, err := s.HasStudentReceivedProduct(ctx, req.TenantID, req.StudentID, bag.Product.ID)
		if err != nil {
			return err
		}
		if !received {
			resp.Enrollment = append(resp.Enrollment, s.oneTimeLine(req.StartDate, *bag, year, month))
		}
	}

	for _, textbookID := range req.TextbookIDs {
		item, err := s.catalog.LoadProduct(ctx, req.TenantID, textbookID)
		if err != nil {
			return err
		}
		resp.Enrollment = append(resp.Enrollment, s.oneTimeLine(req.StartDate, *item, year, month))
	}
	return nil
}

func (s *PreviewService) oneTimeLine(start time.Time, item catalogdomain.PricedItem, year, month int) pricingdomain.PreviewLine {
	breakdown := s.engine.ProductPrice(item, start, year, time.Month(month), 0, item.Product.TaxCategory)
	qty := int64(item.Quantity)
	return pricingdomain.PreviewLine{
		ProductID:    item.Product.ID,
		ProductName:  item.Product.Name,
		ItemType:     item.Product.ItemType,
		Quantity:     item.Quantity,
		UnitPrice:    breakdown.Total,
		TaxAmount:    breakdown.TaxAmount * qty,
		Total:        breakdown.Total * qty,
		ServiceYear:  year,
		ServiceMonth: month,
	}
}

// buildCurrentMonthBucket prorates recurring fees for the partial
// enrollment month. Missing facility/monthly_fee items fall back to the
// brand-level product when one exists.
func (s *PreviewService) buildCurrentMonthBucket(ctx context.Context, req pricingdomain.PreviewRequest, bundle *catalogdomain.CourseBundle, resp *pricingdomain.PreviewResponse) error {
	items := make([]catalogdomain.PricedItem, 0, len(bundle.Items))
	haveType := map[catalogdomain.ItemType]bool{}
	for _, item := range bundle.Items {
		items = append(items, item)
		haveType[item.Product.ItemType] = true
	}

	for _, itemType := range []catalogdomain.ItemType{catalogdomain.ItemTypeFacility, catalogdomain.ItemTypeMonthlyFee} {
		if haveType[itemType] {
			continue
		}
		fallback, err := s.catalog.FindBrandFallback(ctx, req.TenantID, bundle.Course.BrandID, itemType)
		if err != nil {
			return err
		}
		if fallback != nil {
			items = append(items, *fallback)
		}
	}

	fees, proration, err := s.engine.ProratedCurrentMonthFees(items, req.StartDate, req.DaysOfWeek)
	if err != nil {
		return err
	}
	resp.Proration = proration

	for _, fee := range fees {
		resp.CurrentMonth = append(resp.CurrentMonth, pricingdomain.PreviewLine{
			ProductID:    snowflake.ID(fee.ProductID),
			ProductName:  fee.ProductName,
			ItemType:     fee.ItemType,
			Quantity:     1,
			UnitPrice:    fee.ProratedPrice,
			Total:        fee.ProratedPrice,
			ServiceYear:  req.StartDate.Year(),
			ServiceMonth: int(req.StartDate.Month()),
		})
	}
	return nil
}

// buildMonthlyBuckets plans the first two full invoice months:
// recurring items only, month1 priced off the enrollment-month table
// and month2 off the billing-month table.
func (s *PreviewService) buildMonthlyBuckets(req pricingdomain.PreviewRequest, bundle *catalogdomain.CourseBundle, resp *pricingdomain.PreviewResponse) {
	month1Date := time.Date(req.StartDate.Year(), req.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	month2Date := month1Date.AddDate(0, 1, 0)

	month1, month2 := s.engine.MonthlyCourseLines(*bundle, req.StartDate, req.AdditionalTickets)

	resp.Month1 = aggregateToLines(month1, month1Date)
	resp.Month2 = aggregateToLines(month2, month2Date)
}

func aggregateToLines(agg engine.AggregateBreakdown, serviceDate time.Time) []pricingdomain.PreviewLine {
	lines := make([]pricingdomain.PreviewLine, 0, len(agg.Lines))
	for _, line := range agg.Lines {
		qty := int64(line.Quantity)
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, pricingdomain.PreviewLine{
			ProductID:    snowflake.ID(line.ProductID),
			ProductName:  line.ProductName,
			ItemType:     line.ItemType,
			Quantity:     line.Quantity,
			UnitPrice:    line.Total / qty,
			TaxAmount:    line.TaxAmount,
			Total:        line.Total,
			ServiceYear:  serviceDate.Year(),
			ServiceMonth: int(serviceDate.Month()),
		})
	}
	return lines
}

// HasGuardianPaidEnrollmentFee reports whether any of the guardian's
// students already carries an enrollment-fee billing line.
func (s *PreviewService) HasGuardianPaidEnrollmentFee(ctx context.Context, tenantID, guardianID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&contractdomain.StudentItem{}).
		Joins("JOIN products ON products.id = student_items.product_id").
		Where("student_items.tenant_id = ? AND student_items.guardian_id = ? AND products.item_type = ?",
			tenantID, guardianID, catalogdomain.ItemTypeEnrollment).
		Count(&count).Error
	return count > 0, err
}

// HasStudentReceivedProduct reports whether the student was already
// billed a given one-time product (e.g. the welcome bag).
func (s *PreviewService) HasStudentReceivedProduct(ctx context.Context, tenantID, studentID, productID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&contractdomain.StudentItem{}).
		Where("tenant_id = ? AND student_id = ? AND product_id = ?", tenantID, studentID, productID).
		Count(&count).Error
	return count > 0, err
}
