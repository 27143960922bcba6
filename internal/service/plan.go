package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"go.uber.org/zap"
)

type PlanService struct {
	store    store.Store
	gateway  *cloud.Gateway
	composer *Composer
}

func NewPlanService(store store.Store, gateway *cloud.Gateway, composer *Composer) *PlanService {
	return &PlanService{store: store, gateway: gateway, composer: composer}
}

// ListPlans returns plans, optionally narrowed to one provider and image.
func (s *PlanService) ListPlans(ctx context.Context, filter *store.PlanFilter) ([]PlanView, error) {
	plans, err := s.store.Plan().List(ctx, filter)
	if err != nil {
		return nil, internalFailure("list plans", err)
	}
	return s.composer.ConvertPlans(ctx, plans)
}

func (s *PlanService) GetPlan(ctx context.Context, planID uint) (*PlanView, error) {
	plan, err := s.store.Plan().Get(ctx, planID)
	if err != nil {
		return nil, planLookupFailure(planID, err)
	}
	view, err := s.composer.ConvertPlan(ctx, *plan)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// CreatePlan checks that the provider exists and offers the image and
// flavour before storing the plan.
func (s *PlanService) CreatePlan(ctx context.Context, req *PlanRequest) (*PlanView, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	created, err := s.store.Plan().Create(ctx, PlanToModel(req))
	if err != nil {
		return nil, internalFailure("create plan", err)
	}

	zap.L().Info("Created plan", zap.String("name", created.Name), zap.Uint("id", created.ID))
	return s.GetPlan(ctx, created.ID)
}

func (s *PlanService) UpdatePlan(ctx context.Context, planID uint, req *PlanRequest) (*PlanView, error) {
	existing, err := s.store.Plan().Get(ctx, planID)
	if err != nil {
		return nil, planLookupFailure(planID, err)
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	plan := PlanToModel(req)
	plan.ID = existing.ID
	if _, err := s.store.Plan().Update(ctx, plan); err != nil {
		return nil, planLookupFailure(planID, err)
	}

	zap.L().Info("Updated plan", zap.Uint("id", planID))
	return s.GetPlan(ctx, planID)
}

func (s *PlanService) DeletePlan(ctx context.Context, planID uint) error {
	if err := s.store.Plan().Delete(ctx, planID); err != nil {
		return planLookupFailure(planID, err)
	}
	zap.L().Info("Deleted plan", zap.Uint("id", planID))
	return nil
}

func (s *PlanService) validate(ctx context.Context, req *PlanRequest) error {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return NewBadRequestError("plan name is required")
	}

	provider, err := s.store.Provider().Get(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, store.ErrProviderNotFound) {
			return NewBadRequestError(fmt.Sprintf("provider %d does not exist", req.ProviderID))
		}
		return internalFailure("retrieve provider", err)
	}

	if _, err := s.gateway.Images.GetByID(ctx, *provider, req.ImageID); err != nil {
		if cloud.IsNotFound(err) {
			return NewBadRequestError(fmt.Sprintf("image %d is not offered by provider '%s'", req.ImageID, provider.Name))
		}
		return remoteFailure(err, "")
	}
	if _, err := s.gateway.Flavours.GetByID(ctx, *provider, req.FlavourID); err != nil {
		if cloud.IsNotFound(err) {
			return NewBadRequestError(fmt.Sprintf("flavour %d is not offered by provider '%s'", req.FlavourID, provider.Name))
		}
		return remoteFailure(err, "")
	}
	return nil
}

func planLookupFailure(planID uint, err error) error {
	if errors.Is(err, store.ErrPlanNotFound) {
		return NewNotFoundError(fmt.Sprintf("plan %d not found", planID))
	}
	return internalFailure("retrieve plan", err)
}
