package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/timeutil"
	"github.com/wintera/fleet/pkg/database"
	"github.com/wintera/fleet/pkg/logger"
)

// ContentWorker publishes one-time scheduled posts and recurring
// template schedules to tenant channels through one active account.
type ContentWorker struct {
	content  repository.ContentRepository
	accounts repository.AccountRepository
	settings repository.SettingsRepository

	gateway  TelegramGateway
	selector *Selector
	gate     *PanicGate
	ai       AIService
	notifier notify.Notifier
	events   *Events
	log      logger.Logger
	now      func() time.Time
}

type ContentWorkerDeps struct {
	Content  repository.ContentRepository
	Accounts repository.AccountRepository
	Settings repository.SettingsRepository
	Gateway  TelegramGateway
	Selector *Selector
	Gate     *PanicGate
	AI       AIService
	Notifier notify.Notifier
	Events   *Events
	Log      logger.Logger
}

func NewContentWorker(deps ContentWorkerDeps) *ContentWorker {
	return &ContentWorker{
		content:  deps.Content,
		accounts: deps.Accounts,
		settings: deps.Settings,
		gateway:  deps.Gateway,
		selector: deps.Selector,
		gate:     deps.Gate,
		ai:       deps.AI,
		notifier: deps.Notifier,
		events:   deps.Events,
		log:      deps.Log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *ContentWorker) Name() string { return "content" }

func (w *ContentWorker) Process(ctx context.Context) error {
	if err := w.processScheduled(ctx); err != nil {
		return err
	}
	return w.processTemplateSchedules(ctx)
}

func (w *ContentWorker) processScheduled(ctx context.Context) error {
	due, err := w.content.DueContent(ctx, w.now())
	if err != nil {
		return fmt.Errorf("due content: %w", err)
	}

	for _, item := range due {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, item.TenantID) {
			continue
		}

		if err := w.publish(ctx, item); err != nil && ctx.Err() == nil {
			w.log.Error("Content publish failed",
				logger.Field{Key: "content_id", Value: item.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			_ = w.content.MarkContentError(ctx, item.ID, err.Error())
		}
	}
	return nil
}

func (w *ContentWorker) publish(ctx context.Context, item *models.ScheduledContent) error {
	channel, err := w.content.GetChannel(ctx, item.ChannelID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return w.content.MarkContentError(ctx, item.ID, "Channel not found")
		}
		return err
	}

	sender, err := w.pickSender(ctx, item.TenantID)
	if err != nil {
		return err
	}
	if sender == nil {
		return w.content.MarkContentError(ctx, item.ID, "No active accounts available")
	}

	text := item.Text
	if item.UseAIRewrite && w.ai != nil && w.ai.Configured() {
		if rewritten, err := w.ai.Rewrite(ctx, text); err == nil && rewritten != "" {
			text = rewritten
		}
	}

	messageID, err := w.gateway.SendChannelMessage(ctx, accountRef(sender), channel.ChannelUsername, text, item.MediaURL)
	if err != nil {
		return err
	}

	if err := w.content.MarkPublished(ctx, item.ID, messageID); err != nil {
		return err
	}
	w.notifier.Notify(ctx, item.TenantID, fmt.Sprintf(
		"✅ <b>Content published</b>\n\n📢 @%s", channel.ChannelUsername))
	w.events.Publish(EventContentPublished, item.TenantID, map[string]interface{}{
		"content_id": item.ID.Hex(),
		"channel":    channel.ChannelUsername,
	})
	return nil
}

func (w *ContentWorker) processTemplateSchedules(ctx context.Context) error {
	schedules, err := w.content.ActiveTemplateSchedules(ctx)
	if err != nil {
		return fmt.Errorf("template schedules: %w", err)
	}

	for _, schedule := range schedules {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, schedule.TenantID) {
			continue
		}

		tenant, err := w.settings.GetOrDefault(ctx, schedule.TenantID)
		if err != nil {
			continue
		}
		if !w.scheduleFires(schedule, tenant) {
			continue
		}

		if err := w.publishTemplate(ctx, schedule, tenant); err != nil && ctx.Err() == nil {
			w.log.Error("Template publish failed",
				logger.Field{Key: "schedule_id", Value: schedule.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			_ = w.content.TouchTemplateSchedule(ctx, schedule.ID, time.Time{}, err.Error())
		}
	}
	return nil
}

// scheduleFires checks the weekday allow-list and the HH:MM match in
// tenant time, and refuses a double fire inside the same minute.
func (w *ContentWorker) scheduleFires(schedule *models.TemplateSchedule, tenant *models.TenantSettings) bool {
	local := w.now().In(timeutil.Location(tenant.Timezone))

	if len(schedule.RepeatDays) > 0 {
		// Monday-based weekday index, matching the UI.
		weekday := (int(local.Weekday()) + 6) % 7
		allowed := false
		for _, d := range schedule.RepeatDays {
			if d == weekday {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if !timeutil.MatchesClock(w.now(), tenant.Timezone, schedule.PublishTime) {
		return false
	}
	if schedule.LastPublishedAt != nil && w.now().Sub(*schedule.LastPublishedAt) < time.Minute {
		return false
	}
	return true
}

func (w *ContentWorker) publishTemplate(ctx context.Context, schedule *models.TemplateSchedule, tenant *models.TenantSettings) error {
	template, err := w.content.GetTemplate(ctx, schedule.TemplateID)
	if err != nil {
		return err
	}
	channel, err := w.content.GetChannel(ctx, schedule.ChannelID)
	if err != nil {
		return err
	}

	sender, err := w.pickSender(ctx, schedule.TenantID)
	if err != nil {
		return err
	}
	if sender == nil {
		return fmt.Errorf("no active accounts")
	}

	text := template.Text
	if schedule.UseAIRewrite && w.ai != nil && w.ai.Configured() {
		if rewritten, err := w.ai.Rewrite(ctx, text); err == nil && rewritten != "" {
			text = rewritten
		}
	}

	if _, err := w.gateway.SendChannelMessage(ctx, accountRef(sender), channel.ChannelUsername, text, template.MediaPath); err != nil {
		return err
	}
	if err := w.content.TouchTemplateSchedule(ctx, schedule.ID, w.now(), ""); err != nil {
		return err
	}

	w.notifier.Notify(ctx, schedule.TenantID, fmt.Sprintf(
		"📅 <b>Auto-post published</b>\n\n📢 @%s\n📋 %s",
		channel.ChannelUsername, template.Name))
	return nil
}

func (w *ContentWorker) pickSender(ctx context.Context, tenantID string) (*models.Account, error) {
	accounts, err := w.accounts.List(ctx, models.AccountFilter{
		TenantID: tenantID,
		Status:   models.AccountStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return w.selector.Pick(ctx, accounts, w.now(), nil), nil
}
