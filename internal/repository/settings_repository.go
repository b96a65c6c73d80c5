package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wintera/fleet/internal/models"
)

type SettingsRepository interface {
	GetOrDefault(ctx context.Context, tenantID string) (*models.TenantSettings, error)
	SetLastDailyReset(ctx context.Context, tenantID, localDate string) error
	GetPanicFlag(ctx context.Context, tenantID string) (*models.PanicFlag, error)
	ClearPanicFlag(ctx context.Context, tenantID string) error
}

type settingsRepository struct {
	settings *mongo.Collection
	panics   *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) SettingsRepository {
	return &settingsRepository{
		settings: db.Collection("tenant_settings"),
		panics:   db.Collection("panic_flags"),
	}
}

func (r *settingsRepository) GetOrDefault(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	var settings models.TenantSettings
	err := r.settings.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.DefaultTenantSettings(tenantID), nil
		}
		return nil, fmt.Errorf("failed to get tenant settings: %w", err)
	}
	fillSettingsDefaults(&settings)
	return &settings, nil
}

// fillSettingsDefaults papers over rows written before a field existed.
func fillSettingsDefaults(s *models.TenantSettings) {
	defaults := models.DefaultTenantSettings(s.TenantID)
	if s.Timezone == "" {
		s.Timezone = defaults.Timezone
	}
	if s.DailyLimit == 0 {
		s.DailyLimit = defaults.DailyLimit
	}
	if s.DelayMin == 0 && s.DelayMax == 0 {
		s.DelayMin = defaults.DelayMin
		s.DelayMax = defaults.DelayMax
	}
	if s.MailingCacheTTLDays == 0 {
		s.MailingCacheTTLDays = defaults.MailingCacheTTLDays
	}
	if s.Herder.MaxActionsPerAccount == 0 {
		s.Herder.MaxActionsPerAccount = defaults.Herder.MaxActionsPerAccount
	}
	if s.Herder.DefaultStrategy == "" {
		s.Herder.DefaultStrategy = defaults.Herder.DefaultStrategy
	}
	if s.Factory.DefaultWarmupDays == 0 {
		s.Factory.DefaultWarmupDays = defaults.Factory.DefaultWarmupDays
	}
}

func (r *settingsRepository) SetLastDailyReset(ctx context.Context, tenantID, localDate string) error {
	_, err := r.settings.UpdateOne(ctx,
		bson.M{"_id": tenantID},
		bson.M{"$set": bson.M{
			"last_daily_reset": localDate,
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set last daily reset: %w", err)
	}
	return nil
}

func (r *settingsRepository) GetPanicFlag(ctx context.Context, tenantID string) (*models.PanicFlag, error) {
	var flag models.PanicFlag
	err := r.panics.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&flag)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get panic flag: %w", err)
	}
	return &flag, nil
}

func (r *settingsRepository) ClearPanicFlag(ctx context.Context, tenantID string) error {
	_, err := r.panics.UpdateOne(ctx, bson.M{"_id": tenantID}, bson.M{"$set": bson.M{
		"is_paused":      false,
		"auto_resume_at": nil,
		"updated_at":     time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to clear panic flag: %w", err)
	}
	return nil
}
