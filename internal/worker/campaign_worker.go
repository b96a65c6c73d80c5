package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/internal/timeutil"
	"github.com/wintera/fleet/pkg/database"
	"github.com/wintera/fleet/pkg/logger"
)

// CampaignWorker drives every pending or running campaign one batch per
// tick: fetch unsent recipients, rotate sender accounts under the
// selector's constraints, send with pacing, and fold every outcome back
// into account and campaign state.
type CampaignWorker struct {
	campaigns repository.CampaignRepository
	audiences repository.AudienceRepository
	accounts  repository.AccountRepository
	blacklist repository.BlacklistRepository
	content   repository.ContentRepository
	settings  repository.SettingsRepository
	stats     repository.StatsRepository
	mailCache repository.MailingCache

	gateway  TelegramGateway
	selector *Selector
	pacing   *Pacing
	gate     *PanicGate
	ai       AIService
	notifier notify.Notifier
	events   *Events
	metrics  *Metrics
	cfg      config.MailingConfig
	log      logger.Logger
	now      func() time.Time
}

type CampaignWorkerDeps struct {
	Campaigns repository.CampaignRepository
	Audiences repository.AudienceRepository
	Accounts  repository.AccountRepository
	Blacklist repository.BlacklistRepository
	Content   repository.ContentRepository
	Settings  repository.SettingsRepository
	Stats     repository.StatsRepository
	MailCache repository.MailingCache
	Gateway   TelegramGateway
	Selector  *Selector
	Pacing    *Pacing
	Gate      *PanicGate
	AI        AIService
	Notifier  notify.Notifier
	Events    *Events
	Metrics   *Metrics
	Config    config.MailingConfig
	Log       logger.Logger
}

func NewCampaignWorker(deps CampaignWorkerDeps) *CampaignWorker {
	return &CampaignWorker{
		campaigns: deps.Campaigns,
		audiences: deps.Audiences,
		accounts:  deps.Accounts,
		blacklist: deps.Blacklist,
		content:   deps.Content,
		settings:  deps.Settings,
		stats:     deps.Stats,
		mailCache: deps.MailCache,
		gateway:   deps.Gateway,
		selector:  deps.Selector,
		pacing:    deps.Pacing,
		gate:      deps.Gate,
		ai:        deps.AI,
		notifier:  deps.Notifier,
		events:    deps.Events,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
		log:       deps.Log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *CampaignWorker) Name() string { return "campaign" }

func (w *CampaignWorker) Process(ctx context.Context) error {
	campaigns, err := w.campaigns.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active campaigns: %w", err)
	}
	w.metrics.CampaignsActive.Set(float64(len(campaigns)))

	for _, c := range campaigns {
		if ctx.Err() != nil {
			return nil
		}
		// A paused tenant stays inert: campaign rows keep their status
		// and resume untouched once the flag clears.
		if !w.gate.Allowed(ctx, c.TenantID) {
			continue
		}

		if err := w.processCampaign(ctx, c); err != nil && ctx.Err() == nil {
			w.log.Error("Campaign batch failed",
				logger.Field{Key: "campaign_id", Value: c.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			reason := fmt.Sprintf("Error: %.100s", err.Error())
			_, _ = w.campaigns.TransitionStatus(ctx, c.ID, models.CampaignStatusRunning, models.CampaignStatusPaused, reason)
			w.logError(ctx, c, "", err)
		}
	}
	return nil
}

func (w *CampaignWorker) processCampaign(ctx context.Context, c *models.Campaign) error {
	tenant, err := w.settings.GetOrDefault(ctx, c.TenantID)
	if err != nil {
		return fmt.Errorf("tenant settings: %w", err)
	}

	if c.Status == models.CampaignStatusPending {
		if err := w.startCampaign(ctx, c); err != nil {
			return err
		}
	}

	template, err := w.content.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return w.failCampaign(ctx, c, "Template not found")
		}
		return fmt.Errorf("get template: %w", err)
	}

	pool, err := w.resolvePool(ctx, c)
	if err != nil {
		return fmt.Errorf("resolve account pool: %w", err)
	}

	batch, err := w.audiences.ListUnsent(ctx, c.SourceID, int64(w.cfg.BatchSize))
	if err != nil {
		return fmt.Errorf("fetch batch: %w", err)
	}
	if len(batch) == 0 {
		return w.completeCampaign(ctx, c)
	}

	eligible := w.selector.Eligible(ctx, pool, w.now(), nil)
	w.metrics.AccountsEligible.WithLabelValues(c.TenantID).Set(float64(len(eligible)))
	if len(eligible) == 0 {
		return w.pauseCampaign(ctx, c, "No available accounts")
	}

	return w.sendBatch(ctx, c, tenant, template, eligible, batch)
}

func (w *CampaignWorker) sendBatch(ctx context.Context, c *models.Campaign, tenant *models.TenantSettings, template *models.MessageTemplate, pool []*models.Account, batch []*models.AudienceMember) error {
	index := c.NextAccountIndex
	sentTotal := c.SentCount
	multiplier := c.AdaptiveMultiplier

	reportEvery := c.Settings.ReportEvery
	if reportEvery <= 0 {
		reportEvery = w.cfg.ReportEvery
	}

	i := 0
	for i < len(batch) {
		if ctx.Err() != nil {
			break
		}
		recipient := batch[i]

		// Status changes and the panic flag are re-read before every
		// recipient so a pause lands between sends, not between ticks.
		fresh, err := w.campaigns.GetByID(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("refresh campaign: %w", err)
		}
		if fresh.Status != models.CampaignStatusRunning {
			break
		}
		if !w.gate.Allowed(ctx, c.TenantID) {
			break
		}
		// Quiet hours mid-batch: skip the rest, campaign stays running.
		if timeutil.InQuietHours(w.now(), tenant.Timezone, tenant.QuietHoursStart, tenant.QuietHoursEnd) {
			break
		}

		skip, err := w.suppressed(ctx, c, recipient)
		if err != nil {
			return err
		}
		if skip {
			i++
			continue
		}

		if len(pool) == 0 {
			return w.pauseCampaign(ctx, c, "No available accounts")
		}
		sender := pool[index%len(pool)]

		text := w.personalize(ctx, c, RenderTemplate(template.Text, recipient), recipient)

		var typingDelay time.Duration
		if c.UseTypingSim {
			typingDelay = w.pacing.TypingDelay()
		}

		_, sendErr := w.gateway.SendMessage(ctx, accountRef(sender), memberTarget(recipient), text, template.MediaPath, typingDelay)

		if sendErr == nil {
			if won, err := w.audiences.MarkSent(ctx, recipient.ID, ""); err != nil {
				return fmt.Errorf("mark sent: %w", err)
			} else if won {
				if err := w.campaigns.IncrementSent(ctx, c.ID); err != nil {
					return fmt.Errorf("increment sent: %w", err)
				}
			}
			sentTotal++
			_ = w.accounts.ApplySendSuccess(ctx, sender.ID)
			sender.ConsecutiveErrors = 0
			_ = w.mailCache.Mark(ctx, c.TenantID, recipient.TelegramID, tenant.MailingCacheTTLDays)
			_ = w.stats.IncrementHourly(ctx, c.TenantID, w.now(), repository.HourlyDelta{Sent: 1, Success: 1})
			w.metrics.MessagesTotal.WithLabelValues(c.TenantID, "success").Inc()

			multiplier = w.applyFeedback(ctx, c, multiplier, OutcomeSuccess)

			if reportEvery > 0 && sentTotal%reportEvery == 0 {
				w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf(
					"📊 <b>Campaign progress</b>\n\nSent: <b>%d/%d</b>\nFailed: %d",
					sentTotal, c.TotalCount, c.FailedCount))
			}

			index++
			i++
			w.persistRotation(ctx, c, pool, index)
			SleepDelay(ctx, w.pacing.NextDelay(ctx, c, tenant, w.now()))
			continue
		}

		kind := telegram.KindOf(sendErr)
		switch kind {
		case telegram.KindFloodWait:
			seconds, _ := telegram.FloodWaitSeconds(sendErr)
			until := w.now().Add(time.Duration(seconds) * time.Second)
			_ = w.accounts.SetFloodWait(ctx, sender.ID, until)
			_ = w.stats.IncrementHourly(ctx, c.TenantID, w.now(), repository.HourlyDelta{Sent: 1, FloodWaits: 1})
			w.metrics.FloodWaitsTotal.WithLabelValues(c.TenantID).Inc()
			multiplier = w.applyFeedback(ctx, c, multiplier, OutcomeFloodWait)
			w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf(
				"⏰ <b>Flood wait</b>\n\n📱 %s paused for %ds",
				logger.MaskPhone(sender.Phone), seconds))
			w.events.Publish(EventAccountFloodWait, c.TenantID, map[string]interface{}{
				"account_id": sender.ID.Hex(),
				"seconds":    seconds,
			})

			// The recipient is not marked: retry with another sender in
			// this batch; with no sender left the campaign is paused.
			pool = removeAccount(pool, sender.ID)
			if len(pool) == 0 {
				return w.pauseCampaign(ctx, c, "No available accounts")
			}
			index++
			continue

		case telegram.KindPeerFlood:
			multiplier = w.applyFeedback(ctx, c, multiplier, OutcomePeerFlood)
			until := w.now().Add(24 * time.Hour)
			_ = w.accounts.SetExtendedCooldown(ctx, sender.ID, until, "peer flood")
			// Recipient stays unmarked and is retried after resume.
			return w.pauseCampaign(ctx, c, fmt.Sprintf(
				"Peer flood on account %s", logger.MaskPhone(sender.Phone)))

		default:
			if telegram.IsTerminalForRecipient(kind) {
				if _, err := w.audiences.MarkSent(ctx, recipient.ID, string(kind)); err != nil {
					return fmt.Errorf("mark sent: %w", err)
				}
				_ = w.campaigns.IncrementFailed(ctx, c.ID)
				_ = w.stats.IncrementHourly(ctx, c.TenantID, w.now(), repository.HourlyDelta{Sent: 1, Failed: 1})
				w.metrics.MessagesTotal.WithLabelValues(c.TenantID, string(kind)).Inc()

				if kind == telegram.KindUserBlocked && tenant.AutoBlacklistEnabled {
					_ = w.blacklist.Add(ctx, &models.BlacklistEntry{
						TenantID:   c.TenantID,
						TelegramID: recipient.TelegramID,
						Source:     models.BlacklistSourceAutoBlock,
						Reason:     "recipient blocked sender",
					})
				}
				index++
				i++
				SleepDelay(ctx, w.pacing.NextDelay(ctx, c, tenant, w.now()))
				continue
			}

			// Transient: count against the sender and the campaign.
			_ = w.accounts.ApplyTransientFailure(ctx, sender.ID, 2, sendErr.Error())
			sender.ConsecutiveErrors++
			_ = w.campaigns.IncrementFailed(ctx, c.ID)
			_ = w.stats.IncrementHourly(ctx, c.TenantID, w.now(), repository.HourlyDelta{Sent: 1, Failed: 1})
			w.metrics.MessagesTotal.WithLabelValues(c.TenantID, "error").Inc()
			w.logError(ctx, c, sender.ID.Hex(), sendErr)

			if sender.ConsecutiveErrors >= w.cfg.ErrorPauseThreshold {
				return w.pauseCampaign(ctx, c, fmt.Sprintf(
					"Too many consecutive errors on account %s", logger.MaskPhone(sender.Phone)))
			}

			index++
			i++
			SleepDelay(ctx, w.pacing.NextDelay(ctx, c, tenant, w.now()))
		}
	}

	w.persistRotation(ctx, c, pool, index)
	return nil
}

// suppressed filters recipients the campaign must not contact:
// tenant blacklist and the cross-campaign mailing cache. Suppressed
// recipients are marked so they never come back in a batch.
func (w *CampaignWorker) suppressed(ctx context.Context, c *models.Campaign, recipient *models.AudienceMember) (bool, error) {
	blocked, err := w.blacklist.IsBlacklisted(ctx, c.TenantID, recipient.TelegramID)
	if err != nil {
		return false, fmt.Errorf("blacklist check: %w", err)
	}
	if blocked {
		if _, err := w.audiences.MarkSent(ctx, recipient.ID, "blacklisted"); err != nil {
			return false, fmt.Errorf("mark blacklisted: %w", err)
		}
		return true, nil
	}

	seen, err := w.mailCache.Seen(ctx, c.TenantID, recipient.TelegramID)
	if err != nil {
		// Cache trouble must not stall mailing; treat as unseen.
		w.log.Warn("Mailing cache check failed", logger.Field{Key: "error", Value: err.Error()})
		return false, nil
	}
	if seen {
		if _, err := w.audiences.MarkSent(ctx, recipient.ID, "mailing_cache"); err != nil {
			return false, fmt.Errorf("mark cached: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// personalize upgrades the rendered text through the AI service when the
// campaign requests it. Failures silently keep the rendered floor.
func (w *CampaignWorker) personalize(ctx context.Context, c *models.Campaign, text string, recipient *models.AudienceMember) string {
	if !c.UseSmartPersonal || w.ai == nil || !w.ai.Configured() {
		return text
	}
	improved, err := w.ai.PersonalizeMessage(ctx, text, recipient.FirstName, recipient.Username)
	if err != nil || improved == "" {
		return text
	}
	return improved
}

func (w *CampaignWorker) applyFeedback(ctx context.Context, c *models.Campaign, current float64, outcome Outcome) float64 {
	if !c.UseAdaptiveDelays {
		return current
	}
	next := w.pacing.Feedback(current, outcome)
	if next != current {
		_ = w.campaigns.Update(ctx, c.ID, models.CampaignUpdate{AdaptiveMultiplier: &next})
		c.AdaptiveMultiplier = next
	}
	return next
}

func (w *CampaignWorker) persistRotation(ctx context.Context, c *models.Campaign, pool []*models.Account, index int) {
	update := models.CampaignUpdate{NextAccountIndex: &index}
	if len(pool) > 0 {
		current := pool[index%len(pool)].ID
		update.CurrentAccountID = &current
	}
	if err := w.campaigns.Update(ctx, c.ID, update); err != nil {
		w.log.Warn("Rotation persist failed",
			logger.Field{Key: "campaign_id", Value: c.ID.Hex()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

func (w *CampaignWorker) startCampaign(ctx context.Context, c *models.Campaign) error {
	source, err := w.audiences.GetSource(ctx, c.SourceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return w.failCampaign(ctx, c, "Audience source not found")
		}
		return fmt.Errorf("get audience source: %w", err)
	}

	total := source.TotalCount
	if err := w.campaigns.Update(ctx, c.ID, models.CampaignUpdate{TotalCount: &total}); err != nil {
		return fmt.Errorf("set total count: %w", err)
	}
	c.TotalCount = total

	ok, err := w.campaigns.TransitionStatus(ctx, c.ID, models.CampaignStatusPending, models.CampaignStatusRunning, "")
	if err != nil {
		return err
	}
	if !ok {
		return nil // someone else moved it
	}
	c.Status = models.CampaignStatusRunning

	w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf(
		"🚀 <b>Campaign started</b>\n\nRecipients: <b>%d</b>\nAccounts: %d",
		total, len(c.AccountIDs)))
	w.events.Publish(EventCampaignStarted, c.TenantID, map[string]interface{}{
		"campaign_id": c.ID.Hex(),
		"total":       total,
	})
	return nil
}

func (w *CampaignWorker) completeCampaign(ctx context.Context, c *models.Campaign) error {
	remaining, err := w.audiences.CountUnsent(ctx, c.SourceID)
	if err != nil {
		return fmt.Errorf("count unsent: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	ok, err := w.campaigns.TransitionStatus(ctx, c.ID, models.CampaignStatusRunning, models.CampaignStatusCompleted, "")
	if err != nil || !ok {
		return err
	}

	w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf(
		"✅ <b>Campaign completed</b>\n\nSent: <b>%d</b>\nFailed: %d",
		c.SentCount, c.FailedCount))
	w.events.Publish(EventCampaignCompleted, c.TenantID, map[string]interface{}{
		"campaign_id": c.ID.Hex(),
		"sent":        c.SentCount,
		"failed":      c.FailedCount,
	})
	return nil
}

func (w *CampaignWorker) pauseCampaign(ctx context.Context, c *models.Campaign, reason string) error {
	ok, err := w.campaigns.TransitionStatus(ctx, c.ID, models.CampaignStatusRunning, models.CampaignStatusPaused, reason)
	if err != nil {
		return err
	}
	if ok {
		w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf(
			"⏸ <b>Campaign paused</b>\n\n%s", reason))
		w.events.Publish(EventCampaignPaused, c.TenantID, map[string]interface{}{
			"campaign_id": c.ID.Hex(),
			"reason":      reason,
		})
	}
	return nil
}

func (w *CampaignWorker) failCampaign(ctx context.Context, c *models.Campaign, reason string) error {
	from := c.Status
	if from != models.CampaignStatusPending && from != models.CampaignStatusRunning {
		return nil
	}
	_, err := w.campaigns.TransitionStatus(ctx, c.ID, from, models.CampaignStatusError, reason)
	if err != nil {
		return err
	}
	w.notifier.Notify(ctx, c.TenantID, fmt.Sprintf("❌ <b>Campaign error</b>\n\n%s", reason))
	return nil
}

func (w *CampaignWorker) resolvePool(ctx context.Context, c *models.Campaign) ([]*models.Account, error) {
	filter := models.AccountFilter{TenantID: c.TenantID}
	if len(c.AccountIDs) > 0 {
		filter.IDs = c.AccountIDs
	} else if c.AccountFolderID != "" {
		filter.FolderID = c.AccountFolderID
	}
	return w.accounts.List(ctx, filter)
}

func (w *CampaignWorker) logError(ctx context.Context, c *models.Campaign, accountID string, err error) {
	log := &models.ErrorLog{
		TenantID: c.TenantID,
		Worker:   w.Name(),
		TaskID:   c.ID.Hex(),
		Kind:     string(telegram.KindOf(err)),
		Message:  err.Error(),
	}
	if accountID != "" {
		if oid, convErr := primitive.ObjectIDFromHex(accountID); convErr == nil {
			log.AccountID = oid
		}
	}
	if logErr := w.stats.LogError(ctx, log); logErr != nil {
		w.log.Warn("Error log write failed", logger.Field{Key: "error", Value: logErr.Error()})
	}
}

func removeAccount(pool []*models.Account, id primitive.ObjectID) []*models.Account {
	out := pool[:0]
	for _, a := range pool {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
