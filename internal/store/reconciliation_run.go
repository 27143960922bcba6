package store

import (
	"context"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
)

type ReconciliationRun interface {
	Create(ctx context.Context, run model.ReconciliationRun) (*model.ReconciliationRun, error)
	List(ctx context.Context, limit int) (model.ReconciliationRunList, error)
}

type ReconciliationRunStore struct {
	db *gorm.DB
}

var _ ReconciliationRun = (*ReconciliationRunStore)(nil)

func NewReconciliationRun(db *gorm.DB) ReconciliationRun {
	return &ReconciliationRunStore{db: db}
}

func (s *ReconciliationRunStore) Create(ctx context.Context, run model.ReconciliationRun) (*model.ReconciliationRun, error) {
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs first.
func (s *ReconciliationRunStore) List(ctx context.Context, limit int) (model.ReconciliationRunList, error) {
	var runs model.ReconciliationRunList
	query := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
