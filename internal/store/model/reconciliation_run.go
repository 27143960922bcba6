package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReconciliationRun records one sweep of local instances against remote state.
type ReconciliationRun struct {
	ID                 uint                      `gorm:"primaryKey" json:"id"`
	StartedAt          time.Time                 `gorm:"column:started_at;not null" json:"startedAt"`
	FinishedAt         time.Time                 `gorm:"column:finished_at;not null" json:"finishedAt"`
	DeletedCount       int                       `gorm:"column:deleted_count;not null" json:"deletedCount"`
	DeletedInstanceIDs datatypes.JSONSlice[uint] `gorm:"column:deleted_instance_ids" json:"deletedInstanceIds"`
	Error              *string                   `gorm:"column:error" json:"error,omitempty"`
}

type ReconciliationRunList []ReconciliationRun
