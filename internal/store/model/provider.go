package model

import (
	"time"
)

type Provider struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:250;index:provider_name_index;not null"`
	Description *string   `gorm:"size:2500"`
	URL         string    `gorm:"column:url;size:250;not null"`
	CreateTime  time.Time `gorm:"column:create_time;autoCreateTime"`
	UpdateTime  time.Time `gorm:"column:update_time;autoUpdateTime"`
}

type ProviderList []Provider
