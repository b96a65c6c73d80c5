package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountProfile is the persona a warm account presents: display name,
// bio, interests and reaction habits. Generated once per account, then
// applied to the Telegram profile.
type AccountProfile struct {
	AccountID          primitive.ObjectID `bson:"_id" json:"account_id"`
	TenantID           string             `bson:"tenant_id" json:"tenant_id"`
	Persona            string             `bson:"persona" json:"persona"`
	Bio                string             `bson:"bio" json:"bio"`
	Role               AccountRole        `bson:"role" json:"role"`
	Interests          []string           `bson:"interests" json:"interests"`
	SpeechStyle        string             `bson:"speech_style" json:"speech_style"`
	PreferredReactions []string           `bson:"preferred_reactions" json:"preferred_reactions"`
	AppliedAt          *time.Time         `bson:"applied_at,omitempty" json:"applied_at,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// DefaultAccountProfile is the fallback persona used when no AI service
// is available or generation fails.
func DefaultAccountProfile(accountID primitive.ObjectID, tenantID string, role AccountRole) *AccountProfile {
	if role == "" {
		role = RoleObserver
	}
	return &AccountProfile{
		AccountID:          accountID,
		TenantID:           tenantID,
		Persona:            "Пользователь Telegram",
		Bio:                "Интересуюсь новостями и технологиями",
		Role:               role,
		Interests:          []string{"общение", "новости", "технологии"},
		SpeechStyle:        "informal",
		PreferredReactions: []string{"👍", "❤️", "🔥"},
	}
}
