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

type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	ListActive(ctx context.Context) ([]*models.Campaign, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.CampaignUpdate) error
	// TransitionStatus only succeeds when the stored status equals from,
	// enforcing the state machine against concurrent writers.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.CampaignStatus, reason string) (bool, error)
	IncrementSent(ctx context.Context, id primitive.ObjectID) error
	IncrementFailed(ctx context.Context, id primitive.ObjectID) error
	PauseAllForTenant(ctx context.Context, tenantID, reason string) (int64, error)
}

type campaignRepository struct {
	collection *mongo.Collection
}

func NewCampaignRepository(db *mongo.Database) CampaignRepository {
	return &campaignRepository{collection: db.Collection("campaigns")}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	campaign.CreatedAt = time.Now().UTC()
	campaign.UpdatedAt = campaign.CreatedAt
	if campaign.AdaptiveMultiplier < 1.0 {
		campaign.AdaptiveMultiplier = 1.0
	}

	result, err := r.collection.InsertOne(ctx, campaign)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	campaign.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *campaignRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) ListActive(ctx context.Context) ([]*models.Campaign, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{
		models.CampaignStatusPending,
		models.CampaignStatusRunning,
	}}}

	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) Update(ctx context.Context, id primitive.ObjectID, update models.CampaignUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}

	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.PauseReason != nil {
		set["pause_reason"] = *update.PauseReason
	}
	if update.TotalCount != nil {
		set["total_count"] = *update.TotalCount
	}
	if update.CurrentAccountID != nil {
		set["current_account_id"] = *update.CurrentAccountID
	}
	if update.NextAccountIndex != nil {
		set["next_account_index"] = *update.NextAccountIndex
	}
	if update.AdaptiveMultiplier != nil {
		set["adaptive_multiplier"] = *update.AdaptiveMultiplier
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (r *campaignRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.CampaignStatus, reason string) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("illegal campaign transition %s -> %s", from, to)
	}

	set := bson.M{"status": to, "updated_at": time.Now().UTC()}
	if reason != "" {
		set["pause_reason"] = reason
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to transition campaign: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *campaignRepository) IncrementSent(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"sent_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to increment sent count: %w", err)
	}
	return nil
}

func (r *campaignRepository) IncrementFailed(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"failed_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to increment failed count: %w", err)
	}
	return nil
}

func (r *campaignRepository) PauseAllForTenant(ctx context.Context, tenantID, reason string) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"tenant_id": tenantID, "status": models.CampaignStatusRunning},
		bson.M{"$set": bson.M{
			"status":       models.CampaignStatusPaused,
			"pause_reason": reason,
			"updated_at":   time.Now().UTC(),
		}})
	if err != nil {
		return 0, fmt.Errorf("failed to pause tenant campaigns: %w", err)
	}
	return result.ModifiedCount, nil
}
