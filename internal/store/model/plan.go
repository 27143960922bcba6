package model

import (
	"time"
)

// Plan binds a remote image/flavour pair offered by one provider. ImageID and
// FlavourID are identifiers in the provider's catalog.
type Plan struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:250;index:plan_name_index;not null"`
	Description *string   `gorm:"size:2500"`
	ProviderID  uint      `gorm:"column:provider_id;not null"`
	Provider    Provider  `gorm:"foreignKey:ProviderID"`
	ImageID     int       `gorm:"column:cloud_image_id;not null"`
	FlavourID   int       `gorm:"column:cloud_flavour_id;not null"`
	CreateTime  time.Time `gorm:"column:create_time;autoCreateTime"`
	UpdateTime  time.Time `gorm:"column:update_time;autoUpdateTime"`
}

type PlanList []Plan
