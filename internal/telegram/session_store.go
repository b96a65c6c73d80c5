package telegram

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	tdsession "github.com/gotd/td/session"

	"github.com/wintera/fleet/pkg/crypto"
)

// sessionStorage implements gotd's session.Storage over the
// telegram_sessions collection: one opaque blob per account, encrypted
// at rest.
type sessionStorage struct {
	collection *mongo.Collection
	encryptor  *crypto.Encryptor
	accountID  string
}

var _ tdsession.Storage = (*sessionStorage)(nil)

type sessionDoc struct {
	AccountID string    `bson:"_id"`
	Blob      string    `bson:"blob"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *sessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var doc sessionDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": s.accountID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, tdsession.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	blob, err := s.encryptor.DecryptBytes(doc.Blob)
	if err != nil {
		// An undecryptable blob behaves like a missing one; the client
		// will re-authorize instead of wedging.
		return nil, tdsession.ErrNotFound
	}
	return blob, nil
}

func (s *sessionStorage) StoreSession(ctx context.Context, data []byte) error {
	blob, err := s.encryptor.EncryptBytes(data)
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": s.accountID},
		bson.M{"$set": bson.M{"blob": blob, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// DeleteSession drops a stored blob, used when an account is removed or
// its authorization is revoked.
func DeleteSession(ctx context.Context, db *mongo.Database, accountID string) error {
	_, err := db.Collection("telegram_sessions").DeleteOne(ctx, bson.M{"_id": accountID})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
