package model

import (
	"time"
)

type AuthorisationToken struct {
	ID               uint           `gorm:"primaryKey"`
	Token            string         `gorm:"size:250;uniqueIndex;not null"`
	InstanceMemberID uint           `gorm:"column:instance_member_id;not null"`
	InstanceMember   InstanceMember `gorm:"foreignKey:InstanceMemberID;constraint:OnDelete:CASCADE"`
	CreatedAtMs      int64          `gorm:"column:created_at;not null"`
}

// Expired reports whether more than validFor has elapsed since the token
// was created.
func (t *AuthorisationToken) Expired(now time.Time, validFor time.Duration) bool {
	return now.UnixMilli()-t.CreatedAtMs > validFor.Milliseconds()
}
