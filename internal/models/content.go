package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentStatus string

const (
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusError     ContentStatus = "error"
)

// UserChannel is a channel a tenant owns and publishes to.
type UserChannel struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID        string             `bson:"tenant_id" json:"tenant_id"`
	ChannelUsername string             `bson:"channel_username" json:"channel_username"`
	Title           string             `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// ScheduledContent is a one-time channel post.
type ScheduledContent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     string             `bson:"tenant_id" json:"tenant_id"`
	ChannelID    primitive.ObjectID `bson:"channel_id" json:"channel_id"`
	Text         string             `bson:"text" json:"text"`
	MediaURL     string             `bson:"media_url,omitempty" json:"media_url,omitempty"`
	UseAIRewrite bool               `bson:"use_ai_rewrite" json:"use_ai_rewrite"`
	ScheduledAt  time.Time          `bson:"scheduled_at" json:"scheduled_at"`
	Status       ContentStatus      `bson:"status" json:"status"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	MessageID    int                `bson:"message_id,omitempty" json:"message_id,omitempty"`
	PublishedAt  *time.Time         `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// TemplateSchedule is a recurring template post: it fires when the
// tenant-local minute equals PublishTime on an allowed weekday.
type TemplateSchedule struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID        string             `bson:"tenant_id" json:"tenant_id"`
	TemplateID      primitive.ObjectID `bson:"template_id" json:"template_id"`
	ChannelID       primitive.ObjectID `bson:"channel_id" json:"channel_id"`
	RepeatDays      []int              `bson:"repeat_days" json:"repeat_days"`   // 0=Monday … 6=Sunday
	PublishTime     string             `bson:"publish_time" json:"publish_time"` // HH:MM tenant time
	UseAIRewrite    bool               `bson:"use_ai_rewrite" json:"use_ai_rewrite"`
	IsActive        bool               `bson:"is_active" json:"is_active"`
	Error           string             `bson:"error,omitempty" json:"error,omitempty"`
	LastPublishedAt *time.Time         `bson:"last_published_at,omitempty" json:"last_published_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}
