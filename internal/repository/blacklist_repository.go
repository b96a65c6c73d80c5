package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wintera/fleet/internal/models"
)

type BlacklistRepository interface {
	IsBlacklisted(ctx context.Context, tenantID string, telegramID int64) (bool, error)
	Add(ctx context.Context, entry *models.BlacklistEntry) error
	ListActiveTriggers(ctx context.Context, tenantID string) ([]*models.StopTrigger, error)
	IncrementTriggerHits(ctx context.Context, triggerID primitive.ObjectID) error
}

type blacklistRepository struct {
	entries  *mongo.Collection
	triggers *mongo.Collection
}

func NewBlacklistRepository(db *mongo.Database) BlacklistRepository {
	return &blacklistRepository{
		entries:  db.Collection("blacklist"),
		triggers: db.Collection("stop_triggers"),
	}
}

func (r *blacklistRepository) IsBlacklisted(ctx context.Context, tenantID string, telegramID int64) (bool, error) {
	count, err := r.entries.CountDocuments(ctx, bson.M{
		"tenant_id":   tenantID,
		"telegram_id": telegramID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return count > 0, nil
}

// Add upserts on (tenant, telegram id) so repeated auto-blacklists of
// the same user stay a single row.
func (r *blacklistRepository) Add(ctx context.Context, entry *models.BlacklistEntry) error {
	entry.CreatedAt = time.Now().UTC()
	_, err := r.entries.UpdateOne(ctx,
		bson.M{"tenant_id": entry.TenantID, "telegram_id": entry.TelegramID},
		bson.M{"$setOnInsert": entry},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", err)
	}
	return nil
}

func (r *blacklistRepository) ListActiveTriggers(ctx context.Context, tenantID string) ([]*models.StopTrigger, error) {
	cursor, err := r.triggers.Find(ctx, bson.M{"tenant_id": tenantID, "is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list stop triggers: %w", err)
	}
	defer cursor.Close(ctx)

	var triggers []*models.StopTrigger
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, fmt.Errorf("failed to decode stop triggers: %w", err)
	}
	return triggers, nil
}

func (r *blacklistRepository) IncrementTriggerHits(ctx context.Context, triggerID primitive.ObjectID) error {
	_, err := r.triggers.UpdateOne(ctx, bson.M{"_id": triggerID},
		bson.M{"$inc": bson.M{"hits_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment trigger hits: %w", err)
	}
	return nil
}

// MatchTrigger returns the first active trigger whose phrase occurs in
// text, case-insensitively. Pure helper shared by workers and tests.
func MatchTrigger(triggers []*models.StopTrigger, text string) *models.StopTrigger {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		if t.Phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t.Phrase)) {
			return t
		}
	}
	return nil
}
