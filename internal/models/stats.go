package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HourlyStats is one (tenant, weekday, hour) bucket. Increment-only
// within a tick; the pacing engine tolerates stale reads.
type HourlyStats struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   string             `bson:"tenant_id" json:"tenant_id"`
	DayOfWeek  int                `bson:"day_of_week" json:"day_of_week"` // 0=Sunday … 6=Saturday
	Hour       int                `bson:"hour" json:"hour"`
	Sent       int                `bson:"sent" json:"sent"`
	Success    int                `bson:"success" json:"success"`
	Failed     int                `bson:"failed" json:"failed"`
	FloodWaits int                `bson:"flood_waits" json:"flood_waits"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// FloodRate is the bucket's flood_waits per sent message.
func (h *HourlyStats) FloodRate() float64 {
	if h.Sent == 0 {
		return 0
	}
	return float64(h.FloodWaits) / float64(h.Sent)
}

// ErrorLog is one persisted non-trivial error.
type ErrorLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Worker    string             `bson:"worker" json:"worker"`
	TaskID    string             `bson:"task_id,omitempty" json:"task_id,omitempty"`
	AccountID primitive.ObjectID `bson:"account_id,omitempty" json:"account_id,omitempty"`
	Kind      string             `bson:"kind" json:"kind"`
	Message   string             `bson:"message" json:"message"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
