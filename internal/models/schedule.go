package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RepeatMode string

const (
	RepeatOnce   RepeatMode = "once"
	RepeatDaily  RepeatMode = "daily"
	RepeatWeekly RepeatMode = "weekly"
)

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusLaunched  ScheduleStatus = "launched"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusError     ScheduleStatus = "error"
)

// ScheduledMailing becomes a Campaign when due.
type ScheduledMailing struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID        string             `bson:"tenant_id" json:"tenant_id"`
	SourceID        primitive.ObjectID `bson:"source_id" json:"source_id"`
	TemplateID      primitive.ObjectID `bson:"template_id" json:"template_id"`
	AccountFolderID string             `bson:"account_folder_id,omitempty" json:"account_folder_id,omitempty"`
	UseWarmStart    bool               `bson:"use_warm_start" json:"use_warm_start"`
	ScheduledAt     time.Time          `bson:"scheduled_at" json:"scheduled_at"`
	RepeatMode      RepeatMode         `bson:"repeat_mode" json:"repeat_mode"`
	Status          ScheduleStatus     `bson:"status" json:"status"`
	Error           string             `bson:"error,omitempty" json:"error,omitempty"`
	LaunchedAt      *time.Time         `bson:"launched_at,omitempty" json:"launched_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// ScheduledTask re-arms recurring maintenance jobs (parsing, warmup,
// mailing kicks).
type ScheduledTask struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	TenantID    string                 `bson:"tenant_id" json:"tenant_id"`
	TaskType    string                 `bson:"task_type" json:"task_type"`
	TaskConfig  map[string]interface{} `bson:"task_config,omitempty" json:"task_config,omitempty"`
	ScheduledAt time.Time              `bson:"scheduled_at" json:"scheduled_at"`
	RepeatMode  RepeatMode             `bson:"repeat_mode" json:"repeat_mode"`
	Status      ScheduleStatus         `bson:"status" json:"status"`
	Error       string                 `bson:"error,omitempty" json:"error,omitempty"`
	LastRunAt   *time.Time             `bson:"last_run_at,omitempty" json:"last_run_at,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
}
