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

type HerderRepository interface {
	ListActive(ctx context.Context) ([]*models.HerderAssignment, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.HerderStatus, resumeAt *time.Time) error
	IncrementActions(ctx context.Context, id primitive.ObjectID, actions, comments int) error
	LogAction(ctx context.Context, log *models.HerderActionLog) error
	CountCommentsToday(ctx context.Context, assignmentID primitive.ObjectID, dayStart time.Time) (int64, error)
	CountAccountActionsToday(ctx context.Context, accountID primitive.ObjectID, dayStart time.Time) (int64, error)
}

type herderRepository struct {
	assignments *mongo.Collection
	actions     *mongo.Collection
}

func NewHerderRepository(db *mongo.Database) HerderRepository {
	return &herderRepository{
		assignments: db.Collection("herder_assignments"),
		actions:     db.Collection("herder_actions"),
	}
}

func (r *herderRepository) ListActive(ctx context.Context) ([]*models.HerderAssignment, error) {
	// Paused assignments with an elapsed auto-resume ride along so the
	// worker can flip them back in the same pass.
	now := time.Now().UTC()
	filter := bson.M{"$or": bson.A{
		bson.M{"status": models.HerderStatusActive},
		bson.M{"status": models.HerderStatusPaused, "resume_at": bson.M{"$lte": now}},
	}}

	cursor, err := r.assignments.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer cursor.Close(ctx)

	var assignments []*models.HerderAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, fmt.Errorf("failed to decode assignments: %w", err)
	}
	return assignments, nil
}

func (r *herderRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.HerderStatus, resumeAt *time.Time) error {
	_, err := r.assignments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"resume_at":  resumeAt,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set assignment status: %w", err)
	}
	return nil
}

func (r *herderRepository) IncrementActions(ctx context.Context, id primitive.ObjectID, actions, comments int) error {
	_, err := r.assignments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"total_actions": actions, "total_comments": comments},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to increment assignment counters: %w", err)
	}
	return nil
}

func (r *herderRepository) LogAction(ctx context.Context, log *models.HerderActionLog) error {
	log.Timestamp = time.Now().UTC()
	if _, err := r.actions.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to log herder action: %w", err)
	}
	return nil
}

func (r *herderRepository) CountCommentsToday(ctx context.Context, assignmentID primitive.ObjectID, dayStart time.Time) (int64, error) {
	count, err := r.actions.CountDocuments(ctx, bson.M{
		"assignment_id": assignmentID,
		"kind":          models.ActionComment,
		"status":        "success",
		"timestamp":     bson.M{"$gte": dayStart},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

func (r *herderRepository) CountAccountActionsToday(ctx context.Context, accountID primitive.ObjectID, dayStart time.Time) (int64, error) {
	count, err := r.actions.CountDocuments(ctx, bson.M{
		"account_id": accountID,
		"status":     "success",
		"timestamp":  bson.M{"$gte": dayStart},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count account actions: %w", err)
	}
	return count, nil
}
