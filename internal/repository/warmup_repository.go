package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wintera/fleet/internal/models"
)

type WarmupRepository interface {
	Create(ctx context.Context, progress *models.WarmupProgress) error
	ListInProgress(ctx context.Context) ([]*models.WarmupProgress, error)
	Advance(ctx context.Context, id primitive.ObjectID, action models.WarmupAction, completed bool) error
}

type warmupRepository struct {
	collection *mongo.Collection
}

func NewWarmupRepository(db *mongo.Database) WarmupRepository {
	return &warmupRepository{collection: db.Collection("warmup_progress")}
}

func (r *warmupRepository) Create(ctx context.Context, progress *models.WarmupProgress) error {
	progress.StartedAt = time.Now().UTC()
	if progress.CurrentDay == 0 {
		progress.CurrentDay = 1
	}
	if progress.Status == "" {
		progress.Status = models.WarmupProgressInProgress
	}
	if progress.CompletedActions == nil {
		progress.CompletedActions = []models.WarmupAction{}
	}

	result, err := r.collection.InsertOne(ctx, progress)
	if err != nil {
		return fmt.Errorf("failed to create warmup progress: %w", err)
	}
	progress.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *warmupRepository) ListInProgress(ctx context.Context) ([]*models.WarmupProgress, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.WarmupProgressInProgress})
	if err != nil {
		return nil, fmt.Errorf("failed to list warmups: %w", err)
	}
	defer cursor.Close(ctx)

	var progress []*models.WarmupProgress
	if err := cursor.All(ctx, &progress); err != nil {
		return nil, fmt.Errorf("failed to decode warmups: %w", err)
	}
	return progress, nil
}

// Advance records one completed day. When completed is set the program
// terminates, otherwise current_day moves forward.
func (r *warmupRepository) Advance(ctx context.Context, id primitive.ObjectID, action models.WarmupAction, completed bool) error {
	now := time.Now().UTC()
	update := bson.M{
		"$push": bson.M{"completed_actions": action},
		"$set":  bson.M{"last_action_at": now},
	}
	if completed {
		update["$set"].(bson.M)["status"] = models.WarmupProgressCompleted
		update["$set"].(bson.M)["completed_at"] = now
	} else {
		update["$inc"] = bson.M{"current_day": 1}
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to advance warmup: %w", err)
	}
	return nil
}
