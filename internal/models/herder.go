package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type HerderStatus string

const (
	HerderStatusActive  HerderStatus = "active"
	HerderStatusPaused  HerderStatus = "paused"
	HerderStatusStopped HerderStatus = "stopped"
)

type HerderStrategy string

const (
	StrategyObserver    HerderStrategy = "observer"
	StrategyExpert      HerderStrategy = "expert"
	StrategySupport     HerderStrategy = "support"
	StrategyTrendsetter HerderStrategy = "trendsetter"
	StrategyCommunity   HerderStrategy = "community"
)

type ActionKind string

const (
	ActionRead    ActionKind = "read"
	ActionReact   ActionKind = "react"
	ActionComment ActionKind = "comment"
	ActionSave    ActionKind = "save"
)

// ActionStep is one step of an assignment's action chain.
type ActionStep struct {
	Kind          ActionKind `bson:"kind" json:"kind"`
	Probability   float64    `bson:"probability" json:"probability"`
	DelayAfterMin int        `bson:"delay_after_min" json:"delay_after_min"`
	DelayAfterMax int        `bson:"delay_after_max" json:"delay_after_max"`
	Emoji         []string   `bson:"emoji,omitempty" json:"emoji,omitempty"`
	MinEngagement int        `bson:"min_engagement,omitempty" json:"min_engagement,omitempty"`
}

type HerderSettings struct {
	MaxCommentsPerDay    int  `bson:"max_comments_per_day" json:"max_comments_per_day"`
	DelayAfterPostMin    int  `bson:"delay_after_post_min" json:"delay_after_post_min"`
	DelayAfterPostMax    int  `bson:"delay_after_post_max" json:"delay_after_post_max"`
	CoordinateDiscussion bool `bson:"coordinate_discussions" json:"coordinate_discussions"`
	SeasonalBehavior     bool `bson:"seasonal_behavior" json:"seasonal_behavior"`
}

// HerderAssignment ties one monitored channel to a set of accounts and
// an engagement strategy.
type HerderAssignment struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID        string               `bson:"tenant_id" json:"tenant_id"`
	ChannelUsername string               `bson:"channel_username" json:"channel_username"`
	AccountIDs      []primitive.ObjectID `bson:"account_ids" json:"account_ids"`
	Strategy        HerderStrategy       `bson:"strategy" json:"strategy"`
	ActionChain     []ActionStep         `bson:"action_chain" json:"action_chain"`
	Settings        HerderSettings       `bson:"settings" json:"settings"`
	Status          HerderStatus         `bson:"status" json:"status"`
	ResumeAt        *time.Time           `bson:"resume_at,omitempty" json:"resume_at,omitempty"`
	TotalActions    int                  `bson:"total_actions" json:"total_actions"`
	TotalComments   int                  `bson:"total_comments" json:"total_comments"`
	DeletedComments int                  `bson:"deleted_comments" json:"deleted_comments"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

// HerderActionLog is one executed (or failed) action.
type HerderActionLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	AccountID    primitive.ObjectID `bson:"account_id" json:"account_id"`
	Kind         ActionKind         `bson:"kind" json:"kind"`
	Status       string             `bson:"status" json:"status"`
	PostID       int                `bson:"post_id,omitempty" json:"post_id,omitempty"`
	Detail       string             `bson:"detail,omitempty" json:"detail,omitempty"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
}

// ChannelPost is a fetched channel post the herder picks from.
type ChannelPost struct {
	ID       int       `json:"id"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
	Views    int       `json:"views"`
	Replies  int       `json:"replies"`
	HasMedia bool      `json:"has_media"`
}
