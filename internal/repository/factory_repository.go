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

type FactoryRepository interface {
	ListRunnable(ctx context.Context) ([]*models.FactoryTask, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.FactoryTaskStatus, reason string) error
	RecordCreated(ctx context.Context, id primitive.ObjectID) error
	RecordFailed(ctx context.Context, id primitive.ObjectID, errMsg string) error
}

// factoryErrorsKept caps the stored error tail per task.
const factoryErrorsKept = 10

type factoryRepository struct {
	collection *mongo.Collection
}

func NewFactoryRepository(db *mongo.Database) FactoryRepository {
	return &factoryRepository{collection: db.Collection("factory_tasks")}
}

func (r *factoryRepository) ListRunnable(ctx context.Context) ([]*models.FactoryTask, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{
		models.FactoryStatusPending,
		models.FactoryStatusInProgress,
	}}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list factory tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.FactoryTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode factory tasks: %w", err)
	}
	return tasks, nil
}

func (r *factoryRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.FactoryTaskStatus, reason string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       status,
		"pause_reason": reason,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set factory task status: %w", err)
	}
	return nil
}

func (r *factoryRepository) RecordCreated(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"created_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to record created account: %w", err)
	}
	return nil
}

func (r *factoryRepository) RecordFailed(ctx context.Context, id primitive.ObjectID, errMsg string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"failed_count": 1},
		"$push": bson.M{"errors": bson.M{
			"$each":  bson.A{errMsg},
			"$slice": -factoryErrorsKept,
		}},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to record failed account: %w", err)
	}
	return nil
}
