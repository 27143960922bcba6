package model

import (
	"time"
)

// Instance is the local record of an instance provisioned by a provider.
// CloudID is the provider-assigned identifier and the join key against
// remote state.
type Instance struct {
	ID         uint             `gorm:"primaryKey"`
	CloudID    int              `gorm:"column:cloud_id;not null"`
	PlanID     uint             `gorm:"column:plan_id;not null"`
	Plan       Plan             `gorm:"foreignKey:PlanID"`
	Members    []InstanceMember `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE"`
	Deleted    bool             `gorm:"column:deleted;not null;default:false;index"`
	CreateTime time.Time        `gorm:"column:create_time;autoCreateTime"`
	UpdateTime time.Time        `gorm:"column:update_time;autoUpdateTime"`
}

type InstanceList []Instance

// AddMember appends a member for user with role unless one with the same
// (user, role) pair already exists, in which case that member is returned.
func (i *Instance) AddMember(user User, role InstanceMemberRole) *InstanceMember {
	if existing := i.FindMember(user.ID, role); existing != nil {
		return existing
	}
	i.Members = append(i.Members, InstanceMember{
		InstanceID: instanceRef(i.ID),
		UserID:     user.ID,
		User:       user,
		Role:       role,
	})
	return &i.Members[len(i.Members)-1]
}

// RemoveMember drops every member matching member's (user, role) pair.
func (i *Instance) RemoveMember(member InstanceMember) {
	kept := i.Members[:0]
	for _, m := range i.Members {
		if m.UserID == member.UserID && m.Role == member.Role {
			continue
		}
		kept = append(kept, m)
	}
	i.Members = kept
}

func (i *Instance) FindMember(userID uint, role InstanceMemberRole) *InstanceMember {
	for idx := range i.Members {
		if i.Members[idx].UserID == userID && i.Members[idx].Role == role {
			return &i.Members[idx]
		}
	}
	return nil
}

func (i *Instance) MemberByID(memberID uint) *InstanceMember {
	for idx := range i.Members {
		if i.Members[idx].ID == memberID {
			return &i.Members[idx]
		}
	}
	return nil
}

// Owners returns the members holding the OWNER role.
func (i *Instance) Owners() []InstanceMember {
	var owners []InstanceMember
	for _, m := range i.Members {
		if m.Role == RoleOwner {
			owners = append(owners, m)
		}
	}
	return owners
}

func instanceRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
