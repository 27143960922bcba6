package store

import (
	"context"
	"errors"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
)

// PlanFilter contains optional fields for filtering plan queries.
// nil fields are ignored (not filtered).
type PlanFilter struct {
	ProviderID *uint
	ImageID    *int
}

type Plan interface {
	List(ctx context.Context, filter *PlanFilter) (model.PlanList, error)
	ListByProviderAndImage(ctx context.Context, providerID uint, imageID int) (model.PlanList, error)
	Create(ctx context.Context, plan model.Plan) (*model.Plan, error)
	Update(ctx context.Context, plan model.Plan) (*model.Plan, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*model.Plan, error)
}

type PlanStore struct {
	db *gorm.DB
}

var _ Plan = (*PlanStore)(nil)

func NewPlan(db *gorm.DB) Plan {
	return &PlanStore{db: db}
}

func (s *PlanStore) List(ctx context.Context, filter *PlanFilter) (model.PlanList, error) {
	var plans model.PlanList
	query := s.db.WithContext(ctx).Preload("Provider")

	if filter != nil {
		if filter.ProviderID != nil {
			query = query.Where("provider_id = ?", *filter.ProviderID)
		}
		if filter.ImageID != nil {
			query = query.Where("cloud_image_id = ?", *filter.ImageID)
		}
	}

	if err := query.Order("id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *PlanStore) ListByProviderAndImage(ctx context.Context, providerID uint, imageID int) (model.PlanList, error) {
	return s.List(ctx, &PlanFilter{ProviderID: &providerID, ImageID: &imageID})
}

func (s *PlanStore) Create(ctx context.Context, plan model.Plan) (*model.Plan, error) {
	if err := s.db.WithContext(ctx).Omit("Provider").Create(&plan).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, plan.ID)
}

func (s *PlanStore) Update(ctx context.Context, plan model.Plan) (*model.Plan, error) {
	result := s.db.WithContext(ctx).Model(&plan).Omit("Provider").
		Select("name", "description", "provider_id", "cloud_image_id", "cloud_flavour_id", "update_time").
		Updates(&plan)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrPlanNotFound
	}
	return s.Get(ctx, plan.ID)
}

func (s *PlanStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Plan{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (s *PlanStore) Get(ctx context.Context, id uint) (*model.Plan, error) {
	var plan model.Plan
	if err := s.db.WithContext(ctx).Preload("Provider").First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}
