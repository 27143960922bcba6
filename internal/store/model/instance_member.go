package model

import (
	"time"
)

type InstanceMemberRole string

const (
	RoleOwner InstanceMemberRole = "OWNER"
	RoleUser  InstanceMemberRole = "USER"
	RoleGuest InstanceMemberRole = "GUEST"
)

func (r InstanceMemberRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleUser, RoleGuest:
		return true
	}
	return false
}

// InstanceMember is a user's role on an instance. InstanceID is nil only
// transiently while an instance is being saved.
type InstanceMember struct {
	ID         uint               `gorm:"primaryKey"`
	InstanceID *uint              `gorm:"column:instance_id;index"`
	UserID     uint               `gorm:"column:user_id;not null"`
	User       User               `gorm:"foreignKey:UserID"`
	Role       InstanceMemberRole `gorm:"size:50;index:instance_member_role_index;not null"`
	CreateTime time.Time          `gorm:"column:create_time;autoCreateTime"`
}

type InstanceMemberList []InstanceMember
