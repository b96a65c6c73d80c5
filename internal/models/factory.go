package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FactoryTaskStatus string

const (
	FactoryStatusPending    FactoryTaskStatus = "pending"
	FactoryStatusInProgress FactoryTaskStatus = "in_progress"
	FactoryStatusPaused     FactoryTaskStatus = "paused"
	FactoryStatusCompleted  FactoryTaskStatus = "completed"
	FactoryStatusError      FactoryTaskStatus = "error"
)

// FactoryTask asks the factory for Count fresh accounts. The worker
// reduces it one account per tick.
type FactoryTask struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID         string             `bson:"tenant_id" json:"tenant_id"`
	Count            int                `bson:"count" json:"count"`
	Country          string             `bson:"country" json:"country"`
	AutoWarmup       bool               `bson:"auto_warmup" json:"auto_warmup"`
	WarmupDays       int                `bson:"warmup_days" json:"warmup_days"`
	RoleDistribution map[string]float64 `bson:"role_distribution" json:"role_distribution"`
	Status           FactoryTaskStatus  `bson:"status" json:"status"`
	PauseReason      string             `bson:"pause_reason,omitempty" json:"pause_reason,omitempty"`
	CreatedCount     int                `bson:"created_count" json:"created_count"`
	FailedCount      int                `bson:"failed_count" json:"failed_count"`
	Errors           []string           `bson:"errors" json:"errors"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// Done reports whether the task has produced (or failed) its full count.
func (t *FactoryTask) Done() bool {
	return t.CreatedCount+t.FailedCount >= t.Count
}

type AuthTaskStatus string

const (
	AuthStatusPending      AuthTaskStatus = "pending"
	AuthStatusCodeSent     AuthTaskStatus = "code_sent"
	AuthStatusCodeReceived AuthTaskStatus = "code_received"
	AuthStatusCompleted    AuthTaskStatus = "completed"
	AuthStatus2FARequired  AuthTaskStatus = "2fa_required"
	AuthStatusFloodWait    AuthTaskStatus = "flood_wait"
	AuthStatusError        AuthTaskStatus = "error"
)

// AuthTask drives interactive authorization of a manually added account.
type AuthTask struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID      string             `bson:"tenant_id" json:"tenant_id"`
	AccountID     primitive.ObjectID `bson:"account_id,omitempty" json:"account_id,omitempty"`
	Phone         string             `bson:"phone" json:"phone"`
	Proxy         string             `bson:"proxy,omitempty" json:"proxy,omitempty"`
	Status        AuthTaskStatus     `bson:"status" json:"status"`
	Code          string             `bson:"code,omitempty" json:"code,omitempty"`
	Password      string             `bson:"password,omitempty" json:"password,omitempty"`
	PhoneCodeHash string             `bson:"phone_code_hash,omitempty" json:"phone_code_hash,omitempty"`
	Error         string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
