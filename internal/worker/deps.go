package worker

import (
	"context"
	"time"

	"github.com/wintera/fleet/internal/ai"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/telegram"
)

// TelegramGateway is the worker-facing slice of the actions façade.
// *telegram.Gateway implements it; tests substitute a fake.
type TelegramGateway interface {
	SendMessage(ctx context.Context, sender telegram.AccountRef, target telegram.Target, text, mediaURL string, typingDelay time.Duration) (int, error)
	SendChannelMessage(ctx context.Context, sender telegram.AccountRef, channel, text, mediaURL string) (int, error)
	JoinChannel(ctx context.Context, sender telegram.AccountRef, channel string) error
	GetChannelPosts(ctx context.Context, sender telegram.AccountRef, channel string, limit int) ([]models.ChannelPost, error)
	SendReaction(ctx context.Context, sender telegram.AccountRef, channel string, messageID int, emoji string) error
	SendComment(ctx context.Context, sender telegram.AccountRef, channel string, messageID int, text string) (int, error)
	GetChannelParticipants(ctx context.Context, sender telegram.AccountRef, channel string, limit, offset int) ([]telegram.ParsedUser, int, error)
	UpdateProfile(ctx context.Context, sender telegram.AccountRef, firstName, lastName, about string) error
}

// Authenticator is the interactive-auth slice of the session manager
// used by the factory and auth workers.
type Authenticator interface {
	StartAuth(ctx context.Context, accountID, phone, proxyURL string) (string, error)
	CompleteAuth(ctx context.Context, accountID, phone, code, codeHash, password string) error
}

// AIService is the optional text-generation surface. Implementations
// must be safe to call when unconfigured and return an error the caller
// silently downgrades on.
type AIService interface {
	Configured() bool
	PersonalizeMessage(ctx context.Context, template, firstName, username string) (string, error)
	CommentFor(ctx context.Context, postText, strategy string, maxLen int) (string, error)
	Rewrite(ctx context.Context, text string) (string, error)
	GenerateProfile(ctx context.Context, role string, interests []string, speechStyle string) (*ai.Profile, error)
}

func accountRef(a *models.Account) telegram.AccountRef {
	return telegram.AccountRef{
		ID:    a.ID.Hex(),
		Phone: a.Phone,
		Proxy: a.Proxy,
	}
}

func memberTarget(m *models.AudienceMember) telegram.Target {
	return telegram.Target{
		TelegramID: m.TelegramID,
		AccessHash: m.AccessHash,
		Username:   m.Username,
	}
}
