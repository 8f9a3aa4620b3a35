package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo catalogdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo catalogdomain.Repository
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) LoadProduct(ctx context.Context, tenantID, productID snowflake.ID) (*catalogdomain.PricedItem, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalogdomain.ErrProductNotFound
	}
	override, err := s.repo.FindActiveProductPrice(ctx, s.db, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return &catalogdomain.PricedItem{
		Product:  *product,
		Override: override,
		Quantity: 1,
	}, nil
}

func (s *Service) LoadCourse(ctx context.Context, tenantID, courseID snowflake.ID) (*catalogdomain.CourseBundle, error) {
	course, err := s.repo.FindCourseByID(ctx, s.db, tenantID, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, catalogdomain.ErrCourseNotFound
	}

	items, err := s.repo.ListActiveCourseItems(ctx, s.db, tenantID, courseID)
	if err != nil {
		return nil, err
	}

	bundle := &catalogdomain.CourseBundle{Course: *course}
	for _, item := range items {
		priced, err := s.pricedItem(ctx, tenantID, item.ProductID, item.Quantity, item.PriceOverride)
		if err != nil {
			return nil, err
		}
		if priced == nil {
			s.log.Warn("course item references missing product",
				zap.Int64("course_id", int64(courseID)),
				zap.Int64("product_id", int64(item.ProductID)))
			continue
		}
		bundle.Items = append(bundle.Items, *priced)
	}
	return bundle, nil
}

func (s *Service) LoadPack(ctx context.Context, tenantID, packID snowflake.ID) (*catalogdomain.PackBundle, error) {
	pack, err := s.repo.FindPackByID(ctx, s.db, tenantID, packID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, catalogdomain.ErrPackNotFound
	}

	bundle := &catalogdomain.PackBundle{Pack: *pack}

	packCourses, err := s.repo.ListPackCourses(ctx, s.db, tenantID, packID)
	if err != nil {
		return nil, err
	}
	for _, pc := range packCourses {
		for i := 0; i < pc.Quantity; i++ {
			courseBundle, err := s.LoadCourse(ctx, tenantID, pc.CourseID)
			if err != nil {
				return nil, err
			}
			bundle.Courses = append(bundle.Courses, *courseBundle)
		}
	}

	packItems, err := s.repo.ListActivePackItems(ctx, s.db, tenantID, packID)
	if err != nil {
		return nil, err
	}
	for _, item := range packItems {
		priced, err := s.pricedItem(ctx, tenantID, item.ProductID, item.Quantity, item.PriceOverride)
		if err != nil {
			return nil, err
		}
		if priced == nil {
			continue
		}
		bundle.Items = append(bundle.Items, *priced)
	}
	return bundle, nil
}

func (s *Service) FindBrandFallback(ctx context.Context, tenantID, brandID snowflake.ID, itemType catalogdomain.ItemType) (*catalogdomain.PricedItem, error) {
	product, err := s.repo.FindBrandProductByType(ctx, s.db, tenantID, brandID, itemType)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, nil
	}
	override, err := s.repo.FindActiveProductPrice(ctx, s.db, tenantID, product.ID)
	if err != nil {
		return nil, err
	}
	return &catalogdomain.PricedItem{
		Product:  *product,
		Override: override,
		Quantity: 1,
	}, nil
}

func (s *Service) ListProducts(ctx context.Context, tenantID snowflake.ID, limit, offset int) ([]catalogdomain.Product, error) {
	return s.repo.ListProducts(ctx, s.db, tenantID, limit, offset)
}

func (s *Service) ListCourses(ctx context.Context, tenantID snowflake.ID, limit, offset int) ([]catalogdomain.Course, error) {
	return s.repo.ListCourses(ctx, s.db, tenantID, limit, offset)
}

func (s *Service) pricedItem(ctx context.Context, tenantID, productID snowflake.ID, quantity int, priceOverride *int64) (*catalogdomain.PricedItem, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.Active {
		return nil, nil
	}
	override, err := s.repo.FindActiveProductPrice(ctx, s.db, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return &catalogdomain.PricedItem{
		Product:       *product,
		Override:      override,
		Quantity:      quantity,
		PriceOverride: priceOverride,
	}, nil
}
