package models

import (
	"time"
)

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

type TenantHerderSettings struct {
	DefaultStrategy      HerderStrategy `bson:"default_strategy" json:"default_strategy"`
	MaxActionsPerAccount int            `bson:"max_actions_per_account" json:"max_actions_per_account"`
	CoordinateDiscussion bool           `bson:"coordinate_discussions" json:"coordinate_discussions"`
	SeasonalBehavior     bool           `bson:"seasonal_behavior" json:"seasonal_behavior"`
	QuietModeThreshold   int            `bson:"quiet_mode_threshold" json:"quiet_mode_threshold"`
}

type TenantFactorySettings struct {
	DefaultWarmupDays   int  `bson:"default_warmup_days" json:"default_warmup_days"`
	AutoProxyAssignment bool `bson:"auto_proxy_assignment" json:"auto_proxy_assignment"`
}

// TenantSettings is the per-tenant runtime configuration consulted each
// tick. One row per tenant.
type TenantSettings struct {
	TenantID              string                `bson:"_id" json:"tenant_id"`
	Timezone              string                `bson:"timezone" json:"timezone"`
	QuietHoursStart       int                   `bson:"quiet_hours_start" json:"quiet_hours_start"`
	QuietHoursEnd         int                   `bson:"quiet_hours_end" json:"quiet_hours_end"`
	DailyLimit            int                   `bson:"daily_limit" json:"daily_limit"`
	DelayMin              int                   `bson:"delay_min" json:"delay_min"`
	DelayMax              int                   `bson:"delay_max" json:"delay_max"`
	MailingCacheTTLDays   int                   `bson:"mailing_cache_ttl_days" json:"mailing_cache_ttl_days"`
	AutoBlacklistEnabled  bool                  `bson:"auto_blacklist_enabled" json:"auto_blacklist_enabled"`
	WarmupBeforeMailing   bool                  `bson:"warmup_before_mailing" json:"warmup_before_mailing"`
	WarmupDurationMinutes int                   `bson:"warmup_duration_minutes" json:"warmup_duration_minutes"`
	RiskTolerance         RiskTolerance         `bson:"risk_tolerance" json:"risk_tolerance"`
	LearningMode          bool                  `bson:"learning_mode" json:"learning_mode"`
	AutoRecoveryMode      bool                  `bson:"auto_recovery_mode" json:"auto_recovery_mode"`
	Herder                TenantHerderSettings  `bson:"herder" json:"herder"`
	Factory               TenantFactorySettings `bson:"factory" json:"factory"`
	LLMAPIKey             string                `bson:"llm_api_key,omitempty" json:"-"`
	SMSAPIKey             string                `bson:"sms_api_key,omitempty" json:"-"`
	LastDailyReset        string                `bson:"last_daily_reset,omitempty" json:"last_daily_reset,omitempty"` // tenant-local YYYY-MM-DD
	UpdatedAt             time.Time             `bson:"updated_at" json:"updated_at"`
}

// DefaultTenantSettings fills the documented defaults for a tenant that
// has never saved settings.
func DefaultTenantSettings(tenantID string) *TenantSettings {
	return &TenantSettings{
		TenantID:            tenantID,
		Timezone:            "Europe/Moscow",
		QuietHoursStart:     23,
		QuietHoursEnd:       8,
		DailyLimit:          50,
		DelayMin:            30,
		DelayMax:            90,
		MailingCacheTTLDays: 30,
		RiskTolerance:       RiskMedium,
		Herder: TenantHerderSettings{
			DefaultStrategy:      StrategyObserver,
			MaxActionsPerAccount: 50,
			QuietModeThreshold:   3,
		},
		Factory: TenantFactorySettings{
			DefaultWarmupDays: 5,
		},
	}
}

// PanicFlag is the tenant kill switch. Every worker consults it before
// acting; an optional AutoResumeAt clears it on first check past that
// time.
type PanicFlag struct {
	TenantID     string     `bson:"_id" json:"tenant_id"`
	IsPaused     bool       `bson:"is_paused" json:"is_paused"`
	Reason       string     `bson:"reason,omitempty" json:"reason,omitempty"`
	AutoResumeAt *time.Time `bson:"auto_resume_at,omitempty" json:"auto_resume_at,omitempty"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}
