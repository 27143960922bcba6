package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dcm-project/cloud-instance-manager/internal/store"
	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"go.uber.org/zap"
)

// MemberService enforces the membership rules: an instance gets its single
// OWNER at creation, and the OWNER can be neither granted, changed nor
// removed afterwards.
type MemberService struct {
	store store.Store
	users *UserService
}

func NewMemberService(store store.Store, users *UserService) *MemberService {
	return &MemberService{store: store, users: users}
}

// AddMember upserts user, attaches it to instance with role and saves the
// instance. Adding the same (user, role) pair again returns the existing
// member. instance is replaced by its persisted state.
func (s *MemberService) AddMember(ctx context.Context, instance *model.Instance, user model.User, role model.InstanceMemberRole) (*model.InstanceMember, error) {
	if _, err := s.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	instance.AddMember(user, role)
	saved, err := s.store.Instance().Save(ctx, instance)
	if err != nil {
		return nil, internalFailure("save instance", err)
	}
	*instance = *saved

	member := instance.FindMember(user.ID, role)
	if member == nil {
		return nil, NewInternalError("member missing after save", nil)
	}
	return member, nil
}

func (s *MemberService) ListMembers(ctx context.Context, instanceID, callerID uint) ([]MemberView, error) {
	instance, _, err := s.Authorize(ctx, instanceID, callerID)
	if err != nil {
		return nil, err
	}
	return ModelToMembers(instance.Members), nil
}

func (s *MemberService) CreateMember(ctx context.Context, instanceID, callerID uint, req *MemberCreateRequest) (*MemberView, error) {
	if req == nil || req.User.ID == 0 {
		return nil, NewBadRequestError("member user id is required")
	}
	if err := validateGrantableRole(req.Role); err != nil {
		return nil, err
	}

	instance, _, err := s.Authorize(ctx, instanceID, callerID, model.RoleOwner)
	if err != nil {
		return nil, err
	}

	member, err := s.AddMember(ctx, instance, UserToModel(&req.User), req.Role)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Added instance member",
		zap.Uint("instance_id", instanceID), zap.Uint("user_id", member.UserID), zap.String("role", string(member.Role)))
	view := ModelToMember(member)
	return &view, nil
}

func (s *MemberService) UpdateMemberRole(ctx context.Context, instanceID, callerID, memberID uint, req *MemberUpdateRequest) (*MemberView, error) {
	if req == nil || req.ID != memberID {
		return nil, NewBadRequestError("member id in path does not match body id")
	}
	if err := validateGrantableRole(req.Role); err != nil {
		return nil, err
	}

	instance, _, err := s.Authorize(ctx, instanceID, callerID, model.RoleOwner)
	if err != nil {
		return nil, err
	}
	target, err := targetMember(instance, memberID)
	if err != nil {
		return nil, err
	}
	if target.Role == model.RoleOwner {
		return nil, NewBadRequestError("the owner's role cannot be changed")
	}
	if target.Role == req.Role {
		view := ModelToMember(target)
		return &view, nil
	}
	if instance.FindMember(target.UserID, req.Role) != nil {
		return nil, NewBadRequestError(fmt.Sprintf("user %d already holds role %s", target.UserID, req.Role))
	}

	updated, err := s.store.InstanceMember().UpdateRole(ctx, memberID, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrInstanceMemberNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("member %d not found", memberID))
		}
		return nil, internalFailure("update member role", err)
	}

	zap.L().Info("Updated instance member role",
		zap.Uint("instance_id", instanceID), zap.Uint("member_id", memberID), zap.String("role", string(req.Role)))
	view := ModelToMember(updated)
	return &view, nil
}

func (s *MemberService) RemoveMember(ctx context.Context, instanceID, callerID, memberID uint) error {
	instance, _, err := s.Authorize(ctx, instanceID, callerID, model.RoleOwner)
	if err != nil {
		return err
	}
	target, err := targetMember(instance, memberID)
	if err != nil {
		return err
	}
	if target.Role == model.RoleOwner {
		return NewBadRequestError("the owner cannot be removed")
	}

	if _, err := s.store.Instance().RemoveMember(ctx, instance, *target); err != nil {
		return internalFailure("remove member", err)
	}

	zap.L().Info("Removed instance member", zap.Uint("instance_id", instanceID), zap.Uint("member_id", memberID))
	return nil
}

// Authorize loads the instance and the caller's membership on it. When
// roles are given the membership must hold one of them. A missing instance
// is NOT_FOUND; a caller without the required membership is UNAUTHORIZED.
func (s *MemberService) Authorize(ctx context.Context, instanceID, callerID uint, roles ...model.InstanceMemberRole) (*model.Instance, *model.InstanceMember, error) {
	instance, err := s.store.Instance().Get(ctx, instanceID)
	if err != nil {
		return nil, nil, instanceLookupFailure(instanceID, err)
	}

	member, err := s.store.InstanceMember().GetForUserAndInstance(ctx, callerID, instanceID)
	if err != nil {
		if errors.Is(err, store.ErrInstanceMemberNotFound) {
			return nil, nil, NewUnauthorizedError(fmt.Sprintf("user %d is not a member of instance %d", callerID, instanceID))
		}
		return nil, nil, internalFailure("retrieve membership", err)
	}
	if len(roles) > 0 && !slices.Contains(roles, member.Role) {
		return nil, nil, NewUnauthorizedError(fmt.Sprintf("user %d is not allowed to perform this operation on instance %d", callerID, instanceID))
	}
	return instance, member, nil
}

func validateGrantableRole(role model.InstanceMemberRole) error {
	if !role.IsValid() {
		return NewBadRequestError(fmt.Sprintf("invalid role '%s'", role))
	}
	if role == model.RoleOwner {
		return NewBadRequestError("the OWNER role can only be assigned at instance creation")
	}
	return nil
}

func targetMember(instance *model.Instance, memberID uint) (*model.InstanceMember, error) {
	member := instance.MemberByID(memberID)
	if member == nil {
		return nil, NewNotFoundError(fmt.Sprintf("member %d not found on instance %d", memberID, instance.ID))
	}
	return member, nil
}

func instanceLookupFailure(instanceID uint, err error) error {
	if errors.Is(err, store.ErrInstanceNotFound) {
		return NewNotFoundError(fmt.Sprintf("instance %d not found", instanceID))
	}
	return internalFailure("retrieve instance", err)
}
