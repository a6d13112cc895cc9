package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run statuses stored in SyncHistory.Status
const (
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusPartial   = "partial"
	RunStatusError     = "error"
	RunStatusCancelled = "cancelled"
)

// SyncHistory records each job run: what triggered it, how it ended and the
// per-item failures it collected.
type SyncHistory struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID       string         `gorm:"column:run_id;size:36;uniqueIndex;not null" json:"runId"`
	Job         string         `gorm:"column:job;not null;index" json:"job"`
	Trigger     string         `gorm:"column:triggered_by;size:16" json:"trigger"` // "http", "schedule", "cli"
	Status      string         `gorm:"column:status;not null;index" json:"status"` // see RunStatus*
	StartedAt   time.Time      `gorm:"column:started_at;not null;index" json:"startedAt"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completedAt"`
	Duration    int            `gorm:"column:duration;default:0" json:"duration"` // milliseconds
	Created     int            `gorm:"column:created;default:0" json:"created"`
	Updated     int            `gorm:"column:updated;default:0" json:"updated"`
	Deleted     int            `gorm:"column:deleted;default:0" json:"deleted"`
	Skipped     int            `gorm:"column:skipped;default:0" json:"skipped"`
	Errors      int            `gorm:"column:errors;default:0" json:"errors"`
	ErrorDetail string         `gorm:"column:error_detail;type:text" json:"errorDetail"`
	Failures    datatypes.JSON `gorm:"column:failures" json:"failures"`
	Counters    datatypes.JSON `gorm:"column:counters" json:"counters"`
	LogFile     string         `gorm:"column:log_file" json:"logFile"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"-"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (SyncHistory) TableName() string {
	return "sync_history"
}

// Finished reports whether the run has completed
func (s SyncHistory) Finished() bool {
	return s.CompletedAt != nil
}
