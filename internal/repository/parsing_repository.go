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

type ParsingRepository interface {
	ListPending(ctx context.Context) ([]*models.ParsingTask, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.ParsingTaskStatus, errMsg string) error
	SetResult(ctx context.Context, id primitive.ObjectID, sourceID primitive.ObjectID, parsed int) error
	CreateSource(ctx context.Context, source *models.AudienceSource) error
}

type parsingRepository struct {
	tasks   *mongo.Collection
	sources *mongo.Collection
}

func NewParsingRepository(db *mongo.Database) ParsingRepository {
	return &parsingRepository{
		tasks:   db.Collection("parsing_tasks"),
		sources: db.Collection("audience_sources"),
	}
}

func (r *parsingRepository) ListPending(ctx context.Context) ([]*models.ParsingTask, error) {
	cursor, err := r.tasks.Find(ctx, bson.M{"status": models.ParsingStatusPending})
	if err != nil {
		return nil, fmt.Errorf("failed to list parsing tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.ParsingTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode parsing tasks: %w", err)
	}
	return tasks, nil
}

func (r *parsingRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.ParsingTaskStatus, errMsg string) error {
	_, err := r.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set parsing task status: %w", err)
	}
	return nil
}

func (r *parsingRepository) SetResult(ctx context.Context, id primitive.ObjectID, sourceID primitive.ObjectID, parsed int) error {
	_, err := r.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       models.ParsingStatusCompleted,
		"source_id":    sourceID,
		"parsed_count": parsed,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set parsing result: %w", err)
	}
	return nil
}

func (r *parsingRepository) CreateSource(ctx context.Context, source *models.AudienceSource) error {
	source.CreatedAt = time.Now().UTC()
	result, err := r.sources.InsertOne(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to create audience source: %w", err)
	}
	source.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}
