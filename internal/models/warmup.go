package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WarmupType string

const (
	WarmupTypeStandard    WarmupType = "standard"
	WarmupTypeWarmAccount WarmupType = "warm_account"
)

type WarmupProgressStatus string

const (
	WarmupProgressPending    WarmupProgressStatus = "pending"
	WarmupProgressInProgress WarmupProgressStatus = "in_progress"
	WarmupProgressCompleted  WarmupProgressStatus = "completed"
	WarmupProgressPaused     WarmupProgressStatus = "paused"
)

// WarmupAction records one completed warmup day.
type WarmupAction struct {
	Day       int       `bson:"day" json:"day"`
	Action    string    `bson:"action" json:"action"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// WarmupProgress is the day-indexed warmup program of one account.
// Advanced at most once per tenant-local calendar day.
type WarmupProgress struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AccountID        primitive.ObjectID   `bson:"account_id" json:"account_id"`
	TenantID         string               `bson:"tenant_id" json:"tenant_id"`
	Type             WarmupType           `bson:"warmup_type" json:"warmup_type"`
	CurrentDay       int                  `bson:"current_day" json:"current_day"`
	TotalDays        int                  `bson:"total_days" json:"total_days"`
	Status           WarmupProgressStatus `bson:"status" json:"status"`
	CompletedActions []WarmupAction       `bson:"completed_actions" json:"completed_actions"`
	TargetFolderID   string               `bson:"target_folder_id,omitempty" json:"target_folder_id,omitempty"`
	LastActionAt     *time.Time           `bson:"last_action_at,omitempty" json:"last_action_at,omitempty"`
	StartedAt        time.Time            `bson:"started_at" json:"started_at"`
	CompletedAt      *time.Time           `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
