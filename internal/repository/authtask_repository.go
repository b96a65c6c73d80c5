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

type AuthTaskRepository interface {
	ListActionable(ctx context.Context) ([]*models.AuthTask, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.AuthTaskStatus, errMsg string) error
	StoreCodeHash(ctx context.Context, id primitive.ObjectID, codeHash string) error
}

type authTaskRepository struct {
	collection *mongo.Collection
}

func NewAuthTaskRepository(db *mongo.Database) AuthTaskRepository {
	return &authTaskRepository{collection: db.Collection("auth_tasks")}
}

func (r *authTaskRepository) ListActionable(ctx context.Context) ([]*models.AuthTask, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{
		models.AuthStatusPending,
		models.AuthStatusCodeReceived,
	}}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.AuthTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode auth tasks: %w", err)
	}
	return tasks, nil
}

func (r *authTaskRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.AuthTaskStatus, errMsg string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set auth task status: %w", err)
	}
	return nil
}

func (r *authTaskRepository) StoreCodeHash(ctx context.Context, id primitive.ObjectID, codeHash string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":          models.AuthStatusCodeSent,
		"phone_code_hash": codeHash,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to store code hash: %w", err)
	}
	return nil
}
