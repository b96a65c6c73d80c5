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

type ScheduleRepository interface {
	DueMailings(ctx context.Context, now time.Time) ([]*models.ScheduledMailing, error)
	DueTasks(ctx context.Context, now time.Time) ([]*models.ScheduledTask, error)
	CompleteMailing(ctx context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error
	CompleteTask(ctx context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error
	RearmTask(ctx context.Context, id primitive.ObjectID, nextAt, ranAt time.Time) error
	RearmMailing(ctx context.Context, id primitive.ObjectID, nextAt time.Time) error
}

type scheduleRepository struct {
	mailings *mongo.Collection
	tasks    *mongo.Collection
}

func NewScheduleRepository(db *mongo.Database) ScheduleRepository {
	return &scheduleRepository{
		mailings: db.Collection("scheduled_mailings"),
		tasks:    db.Collection("scheduled_tasks"),
	}
}

func (r *scheduleRepository) DueMailings(ctx context.Context, now time.Time) ([]*models.ScheduledMailing, error) {
	cursor, err := r.mailings.Find(ctx, bson.M{
		"status":       models.ScheduleStatusPending,
		"scheduled_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due mailings: %w", err)
	}
	defer cursor.Close(ctx)

	var mailings []*models.ScheduledMailing
	if err := cursor.All(ctx, &mailings); err != nil {
		return nil, fmt.Errorf("failed to decode due mailings: %w", err)
	}
	return mailings, nil
}

func (r *scheduleRepository) DueTasks(ctx context.Context, now time.Time) ([]*models.ScheduledTask, error) {
	cursor, err := r.tasks.Find(ctx, bson.M{
		"status":       models.ScheduleStatusPending,
		"scheduled_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*models.ScheduledTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode due tasks: %w", err)
	}
	return tasks, nil
}

func (r *scheduleRepository) CompleteMailing(ctx context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error {
	now := time.Now().UTC()
	set := bson.M{"status": status, "error": errMsg}
	if status == models.ScheduleStatusLaunched || status == models.ScheduleStatusCompleted {
		set["launched_at"] = now
	}
	_, err := r.mailings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to complete scheduled mailing: %w", err)
	}
	return nil
}

func (r *scheduleRepository) CompleteTask(ctx context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error {
	_, err := r.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      status,
		"error":       errMsg,
		"last_run_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to complete scheduled task: %w", err)
	}
	return nil
}

func (r *scheduleRepository) RearmTask(ctx context.Context, id primitive.ObjectID, nextAt, ranAt time.Time) error {
	_, err := r.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"scheduled_at": nextAt,
		"last_run_at":  ranAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to rearm scheduled task: %w", err)
	}
	return nil
}

func (r *scheduleRepository) RearmMailing(ctx context.Context, id primitive.ObjectID, nextAt time.Time) error {
	_, err := r.mailings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"scheduled_at": nextAt,
		"launched_at":  time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to rearm scheduled mailing: %w", err)
	}
	return nil
}
