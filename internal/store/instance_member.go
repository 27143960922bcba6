package store

import (
	"context"
	"errors"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
)

var (
	ErrInstanceMemberNotFound = errors.New("instance member not found")
)

type InstanceMember interface {
	Get(ctx context.Context, id uint) (*model.InstanceMember, error)
	GetForUserAndInstance(ctx context.Context, userID uint, instanceID uint) (*model.InstanceMember, error)
	GetOwner(ctx context.Context, instanceID uint) (*model.InstanceMember, error)
	ListForInstance(ctx context.Context, instanceID uint) (model.InstanceMemberList, error)
	UpdateRole(ctx context.Context, id uint, role model.InstanceMemberRole) (*model.InstanceMember, error)
}

type InstanceMemberStore struct {
	db *gorm.DB
}

var _ InstanceMember = (*InstanceMemberStore)(nil)

func NewInstanceMember(db *gorm.DB) InstanceMember {
	return &InstanceMemberStore{db: db}
}

func (s *InstanceMemberStore) Get(ctx context.Context, id uint) (*model.InstanceMember, error) {
	var member model.InstanceMember
	if err := s.db.WithContext(ctx).Preload("User").First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetForUserAndInstance returns the user's most privileged membership on the
// instance.
func (s *InstanceMemberStore) GetForUserAndInstance(ctx context.Context, userID uint, instanceID uint) (*model.InstanceMember, error) {
	var members model.InstanceMemberList
	err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrInstanceMemberNotFound
	}

	best := members[0]
	for _, m := range members[1:] {
		if rolePrecedence(m.Role) < rolePrecedence(best.Role) {
			best = m
		}
	}
	return &best, nil
}

func (s *InstanceMemberStore) GetOwner(ctx context.Context, instanceID uint) (*model.InstanceMember, error) {
	var member model.InstanceMember
	err := s.db.WithContext(ctx).Preload("User").
		Where("instance_id = ? AND role = ?", instanceID, model.RoleOwner).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (s *InstanceMemberStore) ListForInstance(ctx context.Context, instanceID uint) (model.InstanceMemberList, error) {
	var members model.InstanceMemberList
	err := s.db.WithContext(ctx).Preload("User").
		Where("instance_id = ?", instanceID).
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *InstanceMemberStore) UpdateRole(ctx context.Context, id uint, role model.InstanceMemberRole) (*model.InstanceMember, error) {
	result := s.db.WithContext(ctx).Model(&model.InstanceMember{}).
		Where("id = ?", id).
		Update("role", role)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInstanceMemberNotFound
	}
	return s.Get(ctx, id)
}

func rolePrecedence(role model.InstanceMemberRole) int {
	switch role {
	case model.RoleOwner:
		return 0
	case model.RoleUser:
		return 1
	default:
		return 2
	}
}
