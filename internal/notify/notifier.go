// Package notify delivers one-way operator notifications over the Bot
// API. Delivery is best-effort: a failed notification is logged and
// dropped, never retried into a worker's path.
package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbot "github.com/go-telegram/bot"

	"github.com/wintera/fleet/pkg/logger"
)

// Notifier is the outbound surface workers use.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, message string)
}

// BotNotifier sends HTML-formatted messages to the tenant's chat. The
// tenant id doubles as the Bot API chat id, which is how the chat UI
// provisions tenants.
type BotNotifier struct {
	bot *tgbot.Bot
	log logger.Logger
}

func NewBotNotifier(token string, log logger.Logger) (*BotNotifier, error) {
	b, err := tgbot.New(token)
	if err != nil {
		return nil, fmt.Errorf("notifier bot: %w", err)
	}
	return &BotNotifier{bot: b, log: log}, nil
}

func (n *BotNotifier) Notify(ctx context.Context, tenantID string, message string) {
	chatID, err := strconv.ParseInt(tenantID, 10, 64)
	if err != nil {
		n.log.Warn("Tenant id is not a chat id, notification dropped",
			logger.Field{Key: "tenant_id", Value: tenantID})
		return
	}

	_, err = n.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      message,
		ParseMode: "HTML",
	})
	if err != nil {
		n.log.Warn("Notification failed",
			logger.Field{Key: "tenant_id", Value: tenantID},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// NoopNotifier is used when no bot token is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string, string) {}
