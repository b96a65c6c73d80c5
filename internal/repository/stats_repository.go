package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wintera/fleet/internal/models"
)

// HourlyDelta is one increment against a (tenant, weekday, hour) bucket.
type HourlyDelta struct {
	Sent       int
	Success    int
	Failed     int
	FloodWaits int
}

type StatsRepository interface {
	IncrementHourly(ctx context.Context, tenantID string, at time.Time, delta HourlyDelta) error
	TenantHeatmap(ctx context.Context, tenantID string) ([]*models.HourlyStats, error)
	HourBucket(ctx context.Context, tenantID string, dayOfWeek, hour int) (*models.HourlyStats, error)
	LogError(ctx context.Context, log *models.ErrorLog) error
}

type statsRepository struct {
	hourly *mongo.Collection
	errors *mongo.Collection
}

func NewStatsRepository(db *mongo.Database) StatsRepository {
	return &statsRepository{
		hourly: db.Collection("hourly_stats"),
		errors: db.Collection("error_logs"),
	}
}

func (r *statsRepository) IncrementHourly(ctx context.Context, tenantID string, at time.Time, delta HourlyDelta) error {
	at = at.UTC()
	filter := bson.M{
		"tenant_id":   tenantID,
		"day_of_week": int(at.Weekday()),
		"hour":        at.Hour(),
	}
	update := bson.M{
		"$inc": bson.M{
			"sent":        delta.Sent,
			"success":     delta.Success,
			"failed":      delta.Failed,
			"flood_waits": delta.FloodWaits,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	_, err := r.hourly.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to increment hourly stats: %w", err)
	}
	return nil
}

func (r *statsRepository) TenantHeatmap(ctx context.Context, tenantID string) ([]*models.HourlyStats, error) {
	cursor, err := r.hourly.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to load heatmap: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []*models.HourlyStats
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode heatmap: %w", err)
	}
	return buckets, nil
}

func (r *statsRepository) HourBucket(ctx context.Context, tenantID string, dayOfWeek, hour int) (*models.HourlyStats, error) {
	var bucket models.HourlyStats
	err := r.hourly.FindOne(ctx, bson.M{
		"tenant_id":   tenantID,
		"day_of_week": dayOfWeek,
		"hour":        hour,
	}).Decode(&bucket)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get hour bucket: %w", err)
	}
	return &bucket, nil
}

func (r *statsRepository) LogError(ctx context.Context, log *models.ErrorLog) error {
	log.Timestamp = time.Now().UTC()
	if _, err := r.errors.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}
