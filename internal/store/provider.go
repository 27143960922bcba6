package store

import (
	"context"
	"errors"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
)

// ProviderFilter contains optional fields for filtering provider queries.
// nil fields are ignored (not filtered).
type ProviderFilter struct {
	Name *string
}

type Provider interface {
	List(ctx context.Context, filter *ProviderFilter, pagination *Pagination) (model.ProviderList, error)
	Create(ctx context.Context, provider model.Provider) (*model.Provider, error)
	Delete(ctx context.Context, id uint) error
	Update(ctx context.Context, provider model.Provider) (*model.Provider, error)
	Get(ctx context.Context, id uint) (*model.Provider, error)
}

type ProviderStore struct {
	db *gorm.DB
}

var _ Provider = (*ProviderStore)(nil)

func NewProvider(db *gorm.DB) Provider {
	return &ProviderStore{db: db}
}

func (s *ProviderStore) List(ctx context.Context, filter *ProviderFilter, pagination *Pagination) (model.ProviderList, error) {
	var providers model.ProviderList
	query := s.db.WithContext(ctx)

	if filter != nil {
		if filter.Name != nil {
			query = query.Where("name = ?", *filter.Name)
		}
	}

	// Apply consistent ordering for pagination
	query = query.Order("id ASC")

	if pagination != nil {
		query = query.Limit(pagination.Limit).Offset(pagination.Offset)
	}

	if err := query.Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (s *ProviderStore) Create(ctx context.Context, provider model.Provider) (*model.Provider, error) {
	if err := s.db.WithContext(ctx).Clauses(clause.Returning{}).Create(&provider).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (s *ProviderStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Provider{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (s *ProviderStore) Update(ctx context.Context, provider model.Provider) (*model.Provider, error) {
	result := s.db.WithContext(ctx).Model(&provider).
		Select("name", "description", "url", "update_time").
		Updates(&provider)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrProviderNotFound
	}
	return s.Get(ctx, provider.ID)
}

func (s *ProviderStore) Get(ctx context.Context, id uint) (*model.Provider, error) {
	var provider model.Provider
	if err := s.db.WithContext(ctx).First(&provider, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}
