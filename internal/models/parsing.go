package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ParsingTaskStatus string

const (
	ParsingStatusPending    ParsingTaskStatus = "pending"
	ParsingStatusInProgress ParsingTaskStatus = "in_progress"
	ParsingStatusCompleted  ParsingTaskStatus = "completed"
	ParsingStatusError      ParsingTaskStatus = "error"
)

// ParsingTask collects an audience from a channel's members into a new
// or existing audience source.
type ParsingTask struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    string             `bson:"tenant_id" json:"tenant_id"`
	SourceLink  string             `bson:"source_link" json:"source_link"`
	SourceID    primitive.ObjectID `bson:"source_id,omitempty" json:"source_id,omitempty"`
	AccountID   primitive.ObjectID `bson:"account_id,omitempty" json:"account_id,omitempty"`
	Limit       int                `bson:"limit" json:"limit"`
	Status      ParsingTaskStatus  `bson:"status" json:"status"`
	ParsedCount int                `bson:"parsed_count" json:"parsed_count"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
