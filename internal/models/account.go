package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AccountStatus string

const (
	AccountStatusPending    AccountStatus = "pending"
	AccountStatusActive     AccountStatus = "active"
	AccountStatusFloodWait  AccountStatus = "flood_wait"
	AccountStatusBlocked    AccountStatus = "blocked"
	AccountStatusError      AccountStatus = "error"
	AccountStatusPausedRisk AccountStatus = "paused_risk"
)

type WarmupStatus string

const (
	WarmupStatusNone       WarmupStatus = "none"
	WarmupStatusInProgress WarmupStatus = "in_progress"
	WarmupStatusCompleted  WarmupStatus = "completed"
	WarmupStatusPaused     WarmupStatus = "paused"
)

type AccountRole string

const (
	RoleObserver    AccountRole = "observer"
	RoleExpert      AccountRole = "expert"
	RoleSupport     AccountRole = "support"
	RoleTrendsetter AccountRole = "trendsetter"
	RoleCommunity   AccountRole = "community"
)

// Account is one Telegram user identity owned by a tenant and driven by
// the worker fleet.
type Account struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID          string             `bson:"tenant_id" json:"tenant_id"`
	Phone             string             `bson:"phone" json:"phone"`
	TelegramID        int64              `bson:"telegram_id,omitempty" json:"telegram_id,omitempty"`
	Username          string             `bson:"username,omitempty" json:"username,omitempty"`
	FirstName         string             `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName          string             `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Status            AccountStatus      `bson:"status" json:"status"`
	Role              AccountRole        `bson:"role" json:"role"`
	FolderID          string             `bson:"folder_id,omitempty" json:"folder_id,omitempty"`
	Proxy             string             `bson:"proxy,omitempty" json:"proxy,omitempty"`
	Source            string             `bson:"source,omitempty" json:"source,omitempty"`
	DailySent         int                `bson:"daily_sent" json:"daily_sent"`
	DailyErrors       int                `bson:"daily_errors" json:"daily_errors"`
	DailyLimit        int                `bson:"daily_limit" json:"daily_limit"`
	ReliabilityScore  float64            `bson:"reliability_score" json:"reliability_score"`
	ConsecutiveErrors int                `bson:"consecutive_errors" json:"consecutive_errors"`
	TotalFloodWaits   int                `bson:"total_flood_waits" json:"total_flood_waits"`
	FloodWaitUntil    *time.Time         `bson:"flood_wait_until,omitempty" json:"flood_wait_until,omitempty"`
	WarmupStatus      WarmupStatus       `bson:"warmup_status" json:"warmup_status"`
	LastError         string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// DailyRemaining is how many sends the account has left today.
func (a *Account) DailyRemaining() int {
	remaining := a.DailyLimit - a.DailySent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SelectorScore ranks eligible accounts:
// daily_remaining × reliability/100 − consecutive_errors × 10.
func (a *Account) SelectorScore() float64 {
	return float64(a.DailyRemaining())*a.ReliabilityScore/100.0 - float64(a.ConsecutiveErrors)*10.0
}

// AccountUpdate carries a partial account mutation.
type AccountUpdate struct {
	Status         *AccountStatus
	WarmupStatus   *WarmupStatus
	FolderID       *string
	TelegramID     *int64
	Username       *string
	FirstName      *string
	LastName       *string
	FloodWaitUntil **time.Time
	LastError      *string
	DailyLimit     *int
}

type AccountFilter struct {
	TenantID     string
	IDs          []primitive.ObjectID
	Status       AccountStatus
	FolderID     string
	WarmupStatus WarmupStatus
	Limit        int64
}
