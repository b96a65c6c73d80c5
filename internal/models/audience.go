package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AudienceSource is a parsed set of target users.
type AudienceSource struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   string             `bson:"tenant_id" json:"tenant_id"`
	Name       string             `bson:"name" json:"name"`
	Origin     string             `bson:"origin,omitempty" json:"origin,omitempty"`
	TotalCount int                `bson:"total_count" json:"total_count"`
	SentCount  int                `bson:"sent_count" json:"sent_count"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Remaining is how many members have not been sent to yet.
func (s *AudienceSource) Remaining() int {
	r := s.TotalCount - s.SentCount
	if r < 0 {
		return 0
	}
	return r
}

// AudienceMember is one target user. Sent is the at-most-once
// idempotency mark per (campaign source, user).
type AudienceMember struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SourceID   primitive.ObjectID `bson:"source_id" json:"source_id"`
	TelegramID int64              `bson:"telegram_id" json:"telegram_id"`
	AccessHash int64              `bson:"access_hash,omitempty" json:"access_hash,omitempty"`
	Username   string             `bson:"username,omitempty" json:"username,omitempty"`
	FirstName  string             `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName   string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	IsPremium  bool               `bson:"is_premium,omitempty" json:"is_premium,omitempty"`
	Sent       bool               `bson:"sent" json:"sent"`
	SentAt     *time.Time         `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	FailReason string             `bson:"fail_reason,omitempty" json:"fail_reason,omitempty"`
}

type BlacklistSource string

const (
	BlacklistSourceManual       BlacklistSource = "manual"
	BlacklistSourceAutoResponse BlacklistSource = "auto_response"
	BlacklistSourceAutoBlock    BlacklistSource = "auto_block"
)

// BlacklistEntry suppresses outbound sends to a user for a tenant.
type BlacklistEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   string             `bson:"tenant_id" json:"tenant_id"`
	TelegramID int64              `bson:"telegram_id,omitempty" json:"telegram_id,omitempty"`
	Username   string             `bson:"username,omitempty" json:"username,omitempty"`
	Source     BlacklistSource    `bson:"source" json:"source"`
	Reason     string             `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// StopTrigger auto-blacklists a reply sender whose text contains the
// phrase (case-insensitive substring).
type StopTrigger struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Phrase    string             `bson:"phrase" json:"phrase"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	HitsCount int                `bson:"hits_count" json:"hits_count"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
