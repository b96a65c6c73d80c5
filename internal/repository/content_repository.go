package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/pkg/database"
)

type ContentRepository interface {
	DueContent(ctx context.Context, now time.Time) ([]*models.ScheduledContent, error)
	MarkPublished(ctx context.Context, id primitive.ObjectID, messageID int) error
	MarkContentError(ctx context.Context, id primitive.ObjectID, errMsg string) error
	ActiveTemplateSchedules(ctx context.Context) ([]*models.TemplateSchedule, error)
	TouchTemplateSchedule(ctx context.Context, id primitive.ObjectID, publishedAt time.Time, errMsg string) error
	GetChannel(ctx context.Context, id primitive.ObjectID) (*models.UserChannel, error)
	GetTemplate(ctx context.Context, id primitive.ObjectID) (*models.MessageTemplate, error)
}

type contentRepository struct {
	content   *mongo.Collection
	schedules *mongo.Collection
	channels  *mongo.Collection
	templates *mongo.Collection
}

func NewContentRepository(db *mongo.Database) ContentRepository {
	return &contentRepository{
		content:   db.Collection("scheduled_content"),
		schedules: db.Collection("template_schedules"),
		channels:  db.Collection("user_channels"),
		templates: db.Collection("message_templates"),
	}
}

func (r *contentRepository) DueContent(ctx context.Context, now time.Time) ([]*models.ScheduledContent, error) {
	cursor, err := r.content.Find(ctx, bson.M{
		"status":       models.ContentStatusPending,
		"scheduled_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due content: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*models.ScheduledContent
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode due content: %w", err)
	}
	return items, nil
}

func (r *contentRepository) MarkPublished(ctx context.Context, id primitive.ObjectID, messageID int) error {
	_, err := r.content.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       models.ContentStatusPublished,
		"message_id":   messageID,
		"published_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to mark content published: %w", err)
	}
	return nil
}

func (r *contentRepository) MarkContentError(ctx context.Context, id primitive.ObjectID, errMsg string) error {
	_, err := r.content.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status": models.ContentStatusError,
		"error":  errMsg,
	}})
	if err != nil {
		return fmt.Errorf("failed to mark content error: %w", err)
	}
	return nil
}

func (r *contentRepository) ActiveTemplateSchedules(ctx context.Context) ([]*models.TemplateSchedule, error) {
	cursor, err := r.schedules.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list template schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*models.TemplateSchedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode template schedules: %w", err)
	}
	return schedules, nil
}

func (r *contentRepository) TouchTemplateSchedule(ctx context.Context, id primitive.ObjectID, publishedAt time.Time, errMsg string) error {
	set := bson.M{"error": errMsg}
	if !publishedAt.IsZero() {
		set["last_published_at"] = publishedAt
	}
	_, err := r.schedules.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to touch template schedule: %w", err)
	}
	return nil
}

func (r *contentRepository) GetChannel(ctx context.Context, id primitive.ObjectID) (*models.UserChannel, error) {
	var channel models.UserChannel
	err := r.channels.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

func (r *contentRepository) GetTemplate(ctx context.Context, id primitive.ObjectID) (*models.MessageTemplate, error) {
	var template models.MessageTemplate
	err := r.templates.FindOne(ctx, bson.M{"_id": id}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &template, nil
}
