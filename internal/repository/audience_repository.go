package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/pkg/database"
)

type AudienceRepository interface {
	GetSource(ctx context.Context, id primitive.ObjectID) (*models.AudienceSource, error)
	ListUnsent(ctx context.Context, sourceID primitive.ObjectID, limit int64) ([]*models.AudienceMember, error)
	CountUnsent(ctx context.Context, sourceID primitive.ObjectID) (int64, error)
	// MarkSent is the at-most-once idempotency write: it only modifies a
	// member whose sent mark is still false, and reports whether this
	// call won the mark.
	MarkSent(ctx context.Context, memberID primitive.ObjectID, reason string) (bool, error)
	AddMembers(ctx context.Context, sourceID primitive.ObjectID, members []*models.AudienceMember) (int, error)
}

type audienceRepository struct {
	sources *mongo.Collection
	members *mongo.Collection
}

func NewAudienceRepository(db *mongo.Database) AudienceRepository {
	return &audienceRepository{
		sources: db.Collection("audience_sources"),
		members: db.Collection("audience_members"),
	}
}

func (r *audienceRepository) GetSource(ctx context.Context, id primitive.ObjectID) (*models.AudienceSource, error) {
	var source models.AudienceSource
	err := r.sources.FindOne(ctx, bson.M{"_id": id}).Decode(&source)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audience source: %w", err)
	}
	return &source, nil
}

func (r *audienceRepository) ListUnsent(ctx context.Context, sourceID primitive.ObjectID, limit int64) ([]*models.AudienceMember, error) {
	cursor, err := r.members.Find(ctx,
		bson.M{"source_id": sourceID, "sent": false},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list unsent members: %w", err)
	}
	defer cursor.Close(ctx)

	var members []*models.AudienceMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode members: %w", err)
	}
	return members, nil
}

func (r *audienceRepository) CountUnsent(ctx context.Context, sourceID primitive.ObjectID) (int64, error) {
	count, err := r.members.CountDocuments(ctx, bson.M{"source_id": sourceID, "sent": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unsent members: %w", err)
	}
	return count, nil
}

func (r *audienceRepository) MarkSent(ctx context.Context, memberID primitive.ObjectID, reason string) (bool, error) {
	now := time.Now().UTC()
	result, err := r.members.UpdateOne(ctx,
		bson.M{"_id": memberID, "sent": false},
		bson.M{"$set": bson.M{
			"sent":        true,
			"sent_at":     now,
			"fail_reason": reason,
		}})
	if err != nil {
		return false, fmt.Errorf("failed to mark member sent: %w", err)
	}
	if result.ModifiedCount == 0 {
		return false, nil
	}

	if _, err := r.sources.UpdateOne(ctx,
		bson.M{"_id": memberIDSource(ctx, r.members, memberID)},
		bson.M{"$inc": bson.M{"sent_count": 1}}); err != nil {
		return true, fmt.Errorf("failed to bump source sent count: %w", err)
	}
	return true, nil
}

// memberIDSource resolves the source id for a member; the extra read is
// cheap next to the Telegram call that preceded the mark.
func memberIDSource(ctx context.Context, members *mongo.Collection, memberID primitive.ObjectID) primitive.ObjectID {
	var doc struct {
		SourceID primitive.ObjectID `bson:"source_id"`
	}
	if err := members.FindOne(ctx, bson.M{"_id": memberID},
		options.FindOne().SetProjection(bson.M{"source_id": 1})).Decode(&doc); err != nil {
		return primitive.NilObjectID
	}
	return doc.SourceID
}

func (r *audienceRepository) AddMembers(ctx context.Context, sourceID primitive.ObjectID, members []*models.AudienceMember) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(members))
	for _, m := range members {
		m.SourceID = sourceID
		docs = append(docs, m)
	}

	result, err := r.members.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if result != nil && len(result.InsertedIDs) > 0 {
			return len(result.InsertedIDs), nil
		}
		return 0, fmt.Errorf("failed to add members: %w", err)
	}

	if _, err := r.sources.UpdateOne(ctx, bson.M{"_id": sourceID},
		bson.M{"$inc": bson.M{"total_count": len(result.InsertedIDs)}}); err != nil {
		return len(result.InsertedIDs), fmt.Errorf("failed to bump source total: %w", err)
	}
	return len(result.InsertedIDs), nil
}
