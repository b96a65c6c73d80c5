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

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.AccountUpdate) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// Feedback surface: the only writers of daily counters and
	// reliability scores.
	ApplySendSuccess(ctx context.Context, id primitive.ObjectID) error
	ApplyTransientFailure(ctx context.Context, id primitive.ObjectID, penalty float64, reason string) error
	SetFloodWait(ctx context.Context, id primitive.ObjectID, until time.Time) error
	SetExtendedCooldown(ctx context.Context, id primitive.ObjectID, until time.Time, reason string) error
	ReactivateIfExpired(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	ResetDailyCounters(ctx context.Context, tenantID string) (int64, error)

	DistinctTenants(ctx context.Context) ([]string, error)
}

type accountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{collection: db.Collection("accounts")}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	if account.ReliabilityScore == 0 {
		account.ReliabilityScore = 100
	}

	result, err := r.collection.InsertOne(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	account.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	query := bson.M{}
	if filter.TenantID != "" {
		query["tenant_id"] = filter.TenantID
	}
	if len(filter.IDs) > 0 {
		query["_id"] = bson.M{"$in": filter.IDs}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.FolderID != "" {
		query["folder_id"] = filter.FolderID
	}
	if filter.WarmupStatus != "" {
		query["warmup_status"] = filter.WarmupStatus
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) Update(ctx context.Context, id primitive.ObjectID, update models.AccountUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}

	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.WarmupStatus != nil {
		set["warmup_status"] = *update.WarmupStatus
	}
	if update.FolderID != nil {
		set["folder_id"] = *update.FolderID
	}
	if update.TelegramID != nil {
		set["telegram_id"] = *update.TelegramID
	}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.FirstName != nil {
		set["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		set["last_name"] = *update.LastName
	}
	if update.FloodWaitUntil != nil {
		set["flood_wait_until"] = *update.FloodWaitUntil
	}
	if update.LastError != nil {
		set["last_error"] = *update.LastError
	}
	if update.DailyLimit != nil {
		set["daily_limit"] = *update.DailyLimit
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// ApplySendSuccess increments daily_sent, clears consecutive_errors and
// nudges reliability up, clamped at 100. Pipeline update keeps the clamp
// server-side.
func (r *accountRepository) ApplySendSuccess(ctx context.Context, id primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"daily_sent":         bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$daily_sent", 0}}, 1}},
			"consecutive_errors": 0,
			"reliability_score": bson.M{"$min": bson.A{100.0,
				bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$reliability_score", 100.0}}, 0.1}}}},
			"updated_at": time.Now().UTC(),
		}}},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to apply send success: %w", err)
	}
	return nil
}

func (r *accountRepository) ApplyTransientFailure(ctx context.Context, id primitive.ObjectID, penalty float64, reason string) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"daily_errors":       bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$daily_errors", 0}}, 1}},
			"consecutive_errors": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$consecutive_errors", 0}}, 1}},
			"reliability_score": bson.M{"$max": bson.A{0.0,
				bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$reliability_score", 100.0}}, penalty}}}},
			"last_error": reason,
			"updated_at": time.Now().UTC(),
		}}},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to apply failure: %w", err)
	}
	return nil
}

func (r *accountRepository) SetFloodWait(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"status":           models.AccountStatusFloodWait,
			"flood_wait_until": until,
			"total_flood_waits": bson.M{"$add": bson.A{
				bson.M{"$ifNull": bson.A{"$total_flood_waits", 0}}, 1}},
			"reliability_score": bson.M{"$max": bson.A{0.0,
				bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$reliability_score", 100.0}}, 5.0}}}},
			"updated_at": time.Now().UTC(),
		}}},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to set flood wait: %w", err)
	}
	return nil
}

func (r *accountRepository) SetExtendedCooldown(ctx context.Context, id primitive.ObjectID, until time.Time, reason string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":           models.AccountStatusPausedRisk,
		"flood_wait_until": until,
		"last_error":       reason,
		"updated_at":       time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// ReactivateIfExpired flips a flood-waiting account back to active when
// its cooldown has passed. The filter makes the reactivation atomic:
// two workers racing on the same account produce one modification.
func (r *accountRepository) ReactivateIfExpired(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":              id,
			"status":           bson.M{"$in": bson.A{models.AccountStatusFloodWait, models.AccountStatusPausedRisk}},
			"flood_wait_until": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{
			"status":             models.AccountStatusActive,
			"flood_wait_until":   nil,
			"consecutive_errors": 0,
			"updated_at":         now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to reactivate account: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *accountRepository) ResetDailyCounters(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"tenant_id": tenantID},
		bson.M{"$set": bson.M{
			"daily_sent":   0,
			"daily_errors": 0,
			"updated_at":   time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *accountRepository) DistinctTenants(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tenant_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	tenants := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			tenants = append(tenants, s)
		}
	}
	return tenants, nil
}
