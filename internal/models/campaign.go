package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusStopped   CampaignStatus = "stopped"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusError     CampaignStatus = "error"
)

// CanTransition encodes the campaign state machine.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	switch s {
	case CampaignStatusPending:
		return to == CampaignStatusRunning || to == CampaignStatusStopped || to == CampaignStatusError
	case CampaignStatusRunning:
		return to == CampaignStatusPaused || to == CampaignStatusStopped ||
			to == CampaignStatusCompleted || to == CampaignStatusError
	case CampaignStatusPaused:
		return to == CampaignStatusRunning || to == CampaignStatusStopped
	case CampaignStatusScheduled:
		return to == CampaignStatusPending
	default:
		return false
	}
}

// CampaignSettings are the per-campaign pacing knobs.
type CampaignSettings struct {
	DelayMin    int `bson:"delay_min" json:"delay_min"`
	DelayMax    int `bson:"delay_max" json:"delay_max"`
	ReportEvery int `bson:"report_every" json:"report_every"`
}

// Campaign is a mass-send job consuming from an audience.
type Campaign struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID           string               `bson:"tenant_id" json:"tenant_id"`
	SourceID           primitive.ObjectID   `bson:"source_id" json:"source_id"`
	TemplateID         primitive.ObjectID   `bson:"template_id" json:"template_id"`
	AccountIDs         []primitive.ObjectID `bson:"account_ids" json:"account_ids"`
	AccountFolderID    string               `bson:"account_folder_id,omitempty" json:"account_folder_id,omitempty"`
	Status             CampaignStatus       `bson:"status" json:"status"`
	PauseReason        string               `bson:"pause_reason,omitempty" json:"pause_reason,omitempty"`
	SentCount          int                  `bson:"sent_count" json:"sent_count"`
	FailedCount        int                  `bson:"failed_count" json:"failed_count"`
	TotalCount         int                  `bson:"total_count" json:"total_count"`
	CurrentAccountID   primitive.ObjectID   `bson:"current_account_id,omitempty" json:"current_account_id,omitempty"`
	NextAccountIndex   int                  `bson:"next_account_index" json:"next_account_index"`
	UseWarmStart       bool                 `bson:"use_warm_start" json:"use_warm_start"`
	UseTypingSim       bool                 `bson:"use_typing_simulation" json:"use_typing_simulation"`
	UseAdaptiveDelays  bool                 `bson:"use_adaptive_delays" json:"use_adaptive_delays"`
	UseSmartPersonal   bool                 `bson:"use_smart_personalization" json:"use_smart_personalization"`
	AdaptiveMultiplier float64              `bson:"adaptive_multiplier" json:"adaptive_multiplier"`
	Settings           CampaignSettings     `bson:"settings" json:"settings"`
	ScheduledAt        *time.Time           `bson:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
	CreatedAt          time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time            `bson:"updated_at" json:"updated_at"`
}

type CampaignUpdate struct {
	Status             *CampaignStatus
	PauseReason        *string
	TotalCount         *int
	CurrentAccountID   *primitive.ObjectID
	NextAccountIndex   *int
	AdaptiveMultiplier *float64
}

// MessageTemplate is the render source for campaign messages.
type MessageTemplate struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Name      string             `bson:"name" json:"name"`
	Text      string             `bson:"text" json:"text"`
	MediaPath string             `bson:"media_path,omitempty" json:"media_path,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
