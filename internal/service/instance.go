package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcm-project/cloud-instance-manager/internal/cloud"
	"github.com/dcm-project/cloud-instance-manager/internal/events"
	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InstanceService provisions instances at providers and keeps the local
// record of them. The admin operations act on any instance; the ForUser
// variants act through the caller's membership.
type InstanceService struct {
	store     store.Store
	gateway   *cloud.Gateway
	composer  *Composer
	members   *MemberService
	users     *UserService
	publisher events.Publisher
}

func NewInstanceService(store store.Store, gateway *cloud.Gateway, composer *Composer, members *MemberService, users *UserService, publisher events.Publisher) *InstanceService {
	return &InstanceService{
		store:     store,
		gateway:   gateway,
		composer:  composer,
		members:   members,
		users:     users,
		publisher: publisher,
	}
}

// ListInstances composes every live instance. Alongside a PROVIDER_ERROR
// the views of instances at healthy providers are still returned.
func (s *InstanceService) ListInstances(ctx context.Context) ([]InstanceView, error) {
	instances, err := s.store.Instance().List(ctx, nil)
	if err != nil {
		return nil, internalFailure("list instances", err)
	}
	return s.composer.ComposeMany(ctx, instances)
}

func (s *InstanceService) ListInstancesForUser(ctx context.Context, userID uint) ([]InstanceView, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	instances, err := s.store.Instance().List(ctx, &store.InstanceFilter{UserID: &userID})
	if err != nil {
		return nil, internalFailure("list instances", err)
	}
	return s.composer.ComposeMany(ctx, instances)
}

func (s *InstanceService) GetInstance(ctx context.Context, instanceID uint) (*InstanceView, error) {
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return nil, instanceLookupFailure(instanceID, err)
	}
	return s.composer.ComposeOne(ctx, *instance)
}

func (s *InstanceService) GetInstanceForUser(ctx context.Context, instanceID, userID uint) (*InstanceView, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	instance, err := s.store.Instance().GetForUser(ctx, instanceID, userID)
	if err != nil {
		return nil, instanceLookupFailure(instanceID, err)
	}
	return s.composer.ComposeOne(ctx, *instance)
}

// CreateInstance provisions the instance at the plan's provider and records
// it locally with the account's user as OWNER.
func (s *InstanceService) CreateInstance(ctx context.Context, req *InstanceCreateRequest) (*InstanceView, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, NewBadRequestError("instance name is required")
	}
	if req.Account.UserID == 0 {
		return nil, NewBadRequestError("account user id is required")
	}

	plan, err := s.store.Plan().Get(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, NewBadRequestError(fmt.Sprintf("plan %d does not exist", req.PlanID))
		}
		return nil, internalFailure("retrieve plan", err)
	}

	var (
		remote   *cloud.Instance
		planView PlanView
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		remote, err = s.gateway.Instances.Create(ctx, plan.Provider, cloud.InstanceCreator{
			Name:        req.Name,
			Description: req.Description,
			ImageID:     plan.ImageID,
			FlavourID:   plan.FlavourID,
			Account:     req.Account,
		})
		if err != nil {
			return remoteFailure(err, "plan image or flavour not found at provider")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		planView, err = s.composer.ConvertPlan(ctx, *plan)
		if err != nil {
			// The remote create may already have succeeded; record it anyway.
			zap.L().Warn("Failed to resolve plan catalog for new instance",
				zap.Uint("plan_id", plan.ID), zap.Error(err))
			planView = newPlanView(*plan, nil, nil)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	instance := &model.Instance{CloudID: remote.ID, PlanID: plan.ID}
	owner := model.User{
		ID:        req.Account.UserID,
		FirstName: ptrString(req.Account.FirstName),
		LastName:  ptrString(req.Account.LastName),
		Email:     req.Account.Email,
	}
	if _, err := s.members.AddMember(ctx, instance, owner, model.RoleOwner); err != nil {
		zap.L().Error("Instance created at provider but not recorded locally",
			zap.Int("cloud_id", remote.ID), zap.String("provider", plan.Provider.Name), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Created instance",
		zap.Uint("instance_id", instance.ID), zap.Int("cloud_id", instance.CloudID), zap.Uint("owner_id", owner.ID))
	s.publish(ctx, events.InstanceCreated, instance, &owner.ID)

	view := Stitch(*instance, *remote, planView)
	return &view, nil
}

// CreateInstanceForUser only lets a user create instances they own.
func (s *InstanceService) CreateInstanceForUser(ctx context.Context, userID uint, req *InstanceCreateRequest) (*InstanceView, error) {
	if req == nil || req.Account.UserID != userID {
		return nil, NewBadRequestError("the user can only create an instance where they are the owner")
	}
	return s.CreateInstance(ctx, req)
}

// UpdateInstance renames the instance at its provider.
func (s *InstanceService) UpdateInstance(ctx context.Context, instanceID uint, req *InstanceUpdateRequest) (*InstanceView, error) {
	if err := validateInstanceUpdate(instanceID, req); err != nil {
		return nil, err
	}
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return nil, instanceLookupFailure(instanceID, err)
	}
	return s.update(ctx, instance, req, nil)
}

func (s *InstanceService) UpdateInstanceForUser(ctx context.Context, instanceID, userID uint, req *InstanceUpdateRequest) (*InstanceView, error) {
	if err := validateInstanceUpdate(instanceID, req); err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	instance, _, err := s.members.Authorize(ctx, instanceID, userID, model.RoleOwner)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, instance, req, &userID)
}

func (s *InstanceService) update(ctx context.Context, instance *model.Instance, req *InstanceUpdateRequest, userID *uint) (*InstanceView, error) {
	var (
		remote   *cloud.Instance
		planView PlanView
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		remote, err = s.gateway.Instances.Update(ctx, instance.Plan.Provider, cloud.InstanceUpdator{
			ID:          instance.CloudID,
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			return remoteFailure(err, fmt.Sprintf("instance %d not found at provider", instance.ID))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		planView, err = s.composer.ConvertPlan(ctx, instance.Plan)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.publish(ctx, events.InstanceUpdated, instance, userID)
	view := Stitch(*instance, *remote, planView)
	return &view, nil
}

// DeleteInstance deletes the instance at its provider, then soft-deletes
// the local record.
func (s *InstanceService) DeleteInstance(ctx context.Context, instanceID uint) error {
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return instanceLookupFailure(instanceID, err)
	}
	return s.delete(ctx, instance, nil)
}

func (s *InstanceService) DeleteInstanceForUser(ctx context.Context, instanceID, userID uint) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	instance, _, err := s.members.Authorize(ctx, instanceID, userID, model.RoleOwner)
	if err != nil {
		return err
	}
	return s.delete(ctx, instance, &userID)
}

func (s *InstanceService) delete(ctx context.Context, instance *model.Instance, userID *uint) error {
	deleted, err := s.gateway.Instances.Delete(ctx, instance.Plan.Provider, instance.CloudID)
	if err != nil {
		return remoteFailure(err, "")
	}
	if !deleted {
		return NewProviderError(fmt.Sprintf("provider refused to delete instance %d", instance.ID), nil)
	}

	if err := s.store.Instance().MarkDeleted(ctx, instance.ID); err != nil {
		return instanceLookupFailure(instance.ID, err)
	}

	zap.L().Info("Deleted instance", zap.Uint("instance_id", instance.ID), zap.Int("cloud_id", instance.CloudID))
	s.publish(ctx, events.InstanceDeleted, instance, userID)
	return nil
}

func (s *InstanceService) GetInstanceState(ctx context.Context, instanceID uint) (*cloud.State, error) {
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return nil, instanceLookupFailure(instanceID, err)
	}
	state, err := s.gateway.Instances.GetState(ctx, instance.Plan.Provider, instance.CloudID)
	if err != nil {
		return nil, remoteFailure(err, fmt.Sprintf("instance %d not found at provider", instance.ID))
	}
	return state, nil
}

// ExecuteAction sends a START, SHUTDOWN or REBOOT command to the provider.
func (s *InstanceService) ExecuteAction(ctx context.Context, instanceID uint, command cloud.Command) (*InstanceView, error) {
	if !command.Type.IsValid() {
		return nil, NewBadRequestError(fmt.Sprintf("invalid command type '%s'", command.Type))
	}
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return nil, instanceLookupFailure(instanceID, err)
	}
	return s.execute(ctx, instance, command)
}

// ExecuteActionForUser requires an OWNER or USER membership; guests may
// only look.
func (s *InstanceService) ExecuteActionForUser(ctx context.Context, instanceID, userID uint, command cloud.Command) (*InstanceView, error) {
	if !command.Type.IsValid() {
		return nil, NewBadRequestError(fmt.Sprintf("invalid command type '%s'", command.Type))
	}
	instance, _, err := s.members.Authorize(ctx, instanceID, userID, model.RoleOwner, model.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, instance, command)
}

func (s *InstanceService) execute(ctx context.Context, instance *model.Instance, command cloud.Command) (*InstanceView, error) {
	var (
		remote   *cloud.Instance
		planView PlanView
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		remote, err = s.gateway.Instances.ExecuteAction(ctx, instance.Plan.Provider, instance.CloudID, command)
		if err != nil {
			return remoteFailure(err, fmt.Sprintf("instance %d not found at provider", instance.ID))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		planView, err = s.composer.ConvertPlan(ctx, instance.Plan)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("Executed instance action",
		zap.Uint("instance_id", instance.ID), zap.String("command", string(command.Type)))
	view := Stitch(*instance, *remote, planView)
	return &view, nil
}

func (s *InstanceService) publish(ctx context.Context, eventType string, instance *model.Instance, userID *uint) {
	event := events.Event{
		Type:       eventType,
		InstanceID: instance.ID,
		CloudID:    instance.CloudID,
		PlanID:     instance.PlanID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		zap.L().Warn("Failed to publish instance event", zap.String("subject", event.Subject()), zap.Error(err))
	}
}

func validateInstanceUpdate(instanceID uint, req *InstanceUpdateRequest) error {
	if req == nil {
		return NewBadRequestError("invalid instance in request")
	}
	if req.ID != instanceID {
		return NewBadRequestError("id in path is not the same as body id")
	}
	return nil
}
