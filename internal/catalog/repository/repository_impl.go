package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
)

type repository struct{}

func New() catalogdomain.Repository {
	return &repository{}
}

func (r *repository) FindProductByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindActiveProductPrice(ctx context.Context, db *gorm.DB, tenantID, productID snowflake.ID) (*catalogdomain.ProductPrice, error) {
	var price catalogdomain.ProductPrice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND is_active = ?", tenantID, productID, true).
		Order("id").
		First(&price).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &price, nil
}

func (r *repository) FindCourseByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*catalogdomain.Course, error) {
	var course catalogdomain.Course
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &course, nil
}

func (r *repository) ListActiveCourseItems(ctx context.Context, db *gorm.DB, tenantID, courseID snowflake.ID) ([]catalogdomain.CourseItem, error) {
	var items []catalogdomain.CourseItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND course_id = ? AND active = ?", tenantID, courseID, true).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *repository) FindPackByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*catalogdomain.Pack, error) {
	var pack catalogdomain.Pack
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&pack).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pack, nil
}

func (r *repository) ListPackCourses(ctx context.Context, db *gorm.DB, tenantID, packID snowflake.ID) ([]catalogdomain.PackCourse, error) {
	var rows []catalogdomain.PackCourse
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND pack_id = ?", tenantID, packID).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListActivePackItems(ctx context.Context, db *gorm.DB, tenantID, packID snowflake.ID) ([]catalogdomain.PackItem, error) {
	var rows []catalogdomain.PackItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND pack_id = ? AND active = ?", tenantID, packID, true).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindBrandProductByType(ctx context.Context, db *gorm.DB, tenantID, brandID snowflake.ID, itemType catalogdomain.ItemType) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND brand_id = ? AND item_type = ? AND active = ?", tenantID, brandID, itemType, true).
		Order("id").
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit, offset int) ([]catalogdomain.Product, error) {
	var products []catalogdomain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	return products, err
}

func (r *repository) ListCourses(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, limit, offset int) ([]catalogdomain.Course, error) {
	var courses []catalogdomain.Course
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&courses).Error
	return courses, err
}
