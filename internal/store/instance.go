package store

import (
	"context"
	"errors"

	"github.com/dcm-project/cloud-instance-manager/internal/store/model"
	"gorm.io/gorm"
)

var (
	ErrInstanceNotFound = errors.New("instance not found")
)

// InstanceFilter contains optional fields for filtering instance queries.
// nil fields are ignored (not filtered). Soft-deleted instances are excluded
// unless IncludeDeleted is set.
type InstanceFilter struct {
	UserID         *uint
	ProviderID     *uint
	IncludeDeleted bool
}

type Instance interface {
	List(ctx context.Context, filter *InstanceFilter) (model.InstanceList, error)
	Get(ctx context.Context, id uint) (*model.Instance, error)
	GetForUser(ctx context.Context, id uint, userID uint) (*model.Instance, error)
	Save(ctx context.Context, instance *model.Instance) (*model.Instance, error)
	RemoveMember(ctx context.Context, instance *model.Instance, member model.InstanceMember) (*model.Instance, error)
	MarkDeleted(ctx context.Context, id uint) error
}

type InstanceStore struct {
	db *gorm.DB
}

var _ Instance = (*InstanceStore)(nil)

func NewInstance(db *gorm.DB) Instance {
	return &InstanceStore{db: db}
}

func (s *InstanceStore) query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Plan.Provider").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Members.User")
}

func (s *InstanceStore) List(ctx context.Context, filter *InstanceFilter) (model.InstanceList, error) {
	var instances model.InstanceList
	query := s.query(ctx)

	if filter == nil || !filter.IncludeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if filter != nil {
		if filter.UserID != nil {
			query = query.Where("id IN (?)",
				s.db.Model(&model.InstanceMember{}).Select("instance_id").Where("user_id = ?", *filter.UserID))
		}
		if filter.ProviderID != nil {
			query = query.Where("plan_id IN (?)",
				s.db.Model(&model.Plan{}).Select("id").Where("provider_id = ?", *filter.ProviderID))
		}
	}

	if err := query.Order("id ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *InstanceStore) Get(ctx context.Context, id uint) (*model.Instance, error) {
	var instance model.Instance
	err := s.query(ctx).Where("id = ? AND deleted = ?", id, false).First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &instance, nil
}

func (s *InstanceStore) GetForUser(ctx context.Context, id uint, userID uint) (*model.Instance, error) {
	var instance model.Instance
	err := s.query(ctx).
		Where("id = ? AND deleted = ?", id, false).
		Where("id IN (?)", s.db.Model(&model.InstanceMember{}).Select("instance_id").Where("user_id = ?", userID)).
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &instance, nil
}

// Save creates or updates the instance together with its members and their
// users in one transaction, then purges members left without an instance.
// The deleted flag is never written here; see MarkDeleted.
func (s *InstanceStore) Save(ctx context.Context, instance *model.Instance) (*model.Instance, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveInstance(tx, instance); err != nil {
			return err
		}
		return purgeOrphanMembers(tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, instance.ID)
}

// RemoveMember drops member from the instance, deletes its row and re-saves
// the instance, atomically.
func (s *InstanceStore) RemoveMember(ctx context.Context, instance *model.Instance, member model.InstanceMember) (*model.Instance, error) {
	instance.RemoveMember(member)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.InstanceMember{}, member.ID).Error; err != nil {
			return err
		}
		if err := saveInstance(tx, instance); err != nil {
			return err
		}
		return purgeOrphanMembers(tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, instance.ID)
}

// MarkDeleted soft-deletes the instance with a single conditional update.
func (s *InstanceStore) MarkDeleted(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&model.Instance{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func saveInstance(tx *gorm.DB, instance *model.Instance) error {
	return tx.Session(&gorm.Session{FullSaveAssociations: true}).
		Omit("Plan", "Deleted").
		Save(instance).Error
}

func purgeOrphanMembers(tx *gorm.DB) error {
	return tx.Where("instance_id IS NULL").Delete(&model.InstanceMember{}).Error
}
