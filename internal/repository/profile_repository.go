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
)

type ProfileRepository interface {
	GetByAccount(ctx context.Context, accountID primitive.ObjectID) (*models.AccountProfile, error)
	Upsert(ctx context.Context, profile *models.AccountProfile) error
	MarkApplied(ctx context.Context, accountID primitive.ObjectID) error
}

type profileRepository struct {
	collection *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) ProfileRepository {
	return &profileRepository{collection: db.Collection("account_profiles")}
}

func (r *profileRepository) GetByAccount(ctx context.Context, accountID primitive.ObjectID) (*models.AccountProfile, error) {
	var profile models.AccountProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) Upsert(ctx context.Context, profile *models.AccountProfile) error {
	now := time.Now().UTC()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": profile.AccountID},
		bson.M{"$set": profile},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert account profile: %w", err)
	}
	return nil
}

func (r *profileRepository) MarkApplied(ctx context.Context, accountID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": accountID}, bson.M{"$set": bson.M{
		"applied_at": time.Now().UTC(),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to mark profile applied: %w", err)
	}
	return nil
}
