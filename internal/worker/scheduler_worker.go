package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/timeutil"
	"github.com/wintera/fleet/pkg/logger"
)

// SchedulerWorker materializes due scheduled rows into live work: a
// scheduled mailing becomes a campaign, a recurring task re-arms by its
// repeat mode. It also owns the tenant-local midnight reset of daily
// account counters, driven as a calendar job.
type SchedulerWorker struct {
	schedules repository.ScheduleRepository
	campaigns repository.CampaignRepository
	accounts  repository.AccountRepository
	settings  repository.SettingsRepository

	gate     *PanicGate
	heatmap  *Heatmap
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time
}

type SchedulerWorkerDeps struct {
	Schedules repository.ScheduleRepository
	Campaigns repository.CampaignRepository
	Accounts  repository.AccountRepository
	Settings  repository.SettingsRepository
	Gate      *PanicGate
	Heatmap   *Heatmap
	Notifier  notify.Notifier
	Log       logger.Logger
}

func NewSchedulerWorker(deps SchedulerWorkerDeps) *SchedulerWorker {
	return &SchedulerWorker{
		schedules: deps.Schedules,
		campaigns: deps.Campaigns,
		accounts:  deps.Accounts,
		settings:  deps.Settings,
		gate:      deps.Gate,
		heatmap:   deps.Heatmap,
		notifier:  deps.Notifier,
		log:       deps.Log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *SchedulerWorker) Name() string { return "scheduler" }

func (w *SchedulerWorker) Process(ctx context.Context) error {
	if err := w.processMailings(ctx); err != nil {
		return err
	}
	return w.processTasks(ctx)
}

func (w *SchedulerWorker) processMailings(ctx context.Context) error {
	due, err := w.schedules.DueMailings(ctx, w.now())
	if err != nil {
		return fmt.Errorf("due mailings: %w", err)
	}

	for _, mailing := range due {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, mailing.TenantID) {
			continue
		}

		if err := w.launchMailing(ctx, mailing); err != nil && ctx.Err() == nil {
			w.log.Error("Scheduled mailing launch failed",
				logger.Field{Key: "mailing_id", Value: mailing.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			_ = w.schedules.CompleteMailing(ctx, mailing.ID, models.ScheduleStatusError, err.Error())
		}
	}
	return nil
}

// launchMailing converts a due scheduled mailing into a pending
// campaign over the tenant's active accounts.
func (w *SchedulerWorker) launchMailing(ctx context.Context, mailing *models.ScheduledMailing) error {
	tenant, err := w.settings.GetOrDefault(ctx, mailing.TenantID)
	if err != nil {
		return fmt.Errorf("tenant settings: %w", err)
	}

	filter := models.AccountFilter{
		TenantID: mailing.TenantID,
		Status:   models.AccountStatusActive,
	}
	if mailing.AccountFolderID != "" {
		filter.FolderID = mailing.AccountFolderID
	}
	accounts, err := w.accounts.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return w.schedules.CompleteMailing(ctx, mailing.ID, models.ScheduleStatusError, "No active accounts")
	}

	campaign := &models.Campaign{
		TenantID:          mailing.TenantID,
		SourceID:          mailing.SourceID,
		TemplateID:        mailing.TemplateID,
		AccountFolderID:   mailing.AccountFolderID,
		Status:            models.CampaignStatusPending,
		UseWarmStart:      mailing.UseWarmStart,
		UseTypingSim:      true,
		UseAdaptiveDelays: true,
		Settings: models.CampaignSettings{
			DelayMin:    tenant.DelayMin,
			DelayMax:    tenant.DelayMax,
			ReportEvery: 50,
		},
	}
	for _, a := range accounts {
		campaign.AccountIDs = append(campaign.AccountIDs, a.ID)
	}

	if err := w.campaigns.Create(ctx, campaign); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	switch mailing.RepeatMode {
	case models.RepeatDaily, models.RepeatWeekly:
		next := timeutil.NextPeriod(mailing.ScheduledAt, string(mailing.RepeatMode))
		if err := w.schedules.RearmMailing(ctx, mailing.ID, next); err != nil {
			return err
		}
	default:
		if err := w.schedules.CompleteMailing(ctx, mailing.ID, models.ScheduleStatusLaunched, ""); err != nil {
			return err
		}
	}

	w.notifier.Notify(ctx, mailing.TenantID, fmt.Sprintf(
		"📅 <b>Scheduled mailing launched</b>\n\n👤 Accounts: %d", len(accounts)))

	fields := []logger.Field{
		{Key: "mailing_id", Value: mailing.ID.Hex()},
		{Key: "campaign_id", Value: campaign.ID.Hex()},
	}
	// With a populated heatmap, surface the historically best send hour;
	// an empty heatmap stays silent and configured delays rule.
	if w.heatmap != nil {
		if hour, ok := w.heatmap.OptimalSendHour(ctx, mailing.TenantID); ok {
			fields = append(fields, logger.Field{Key: "optimal_send_hour_utc", Value: hour})
		}
	}
	w.log.Info("Scheduled mailing launched", fields...)
	return nil
}

func (w *SchedulerWorker) processTasks(ctx context.Context) error {
	due, err := w.schedules.DueTasks(ctx, w.now())
	if err != nil {
		return fmt.Errorf("due tasks: %w", err)
	}

	for _, task := range due {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, task.TenantID) {
			continue
		}

		w.log.Info("Scheduled task fired",
			logger.Field{Key: "task_id", Value: task.ID.Hex()},
			logger.Field{Key: "type", Value: task.TaskType})
		w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
			"⏰ <b>Scheduled %s task fired</b>", task.TaskType))

		switch task.RepeatMode {
		case models.RepeatDaily, models.RepeatWeekly:
			next := timeutil.NextPeriod(task.ScheduledAt, string(task.RepeatMode))
			if err := w.schedules.RearmTask(ctx, task.ID, next, w.now()); err != nil && ctx.Err() == nil {
				w.log.Error("Task rearm failed",
					logger.Field{Key: "task_id", Value: task.ID.Hex()},
					logger.Field{Key: "error", Value: err.Error()})
			}
		default:
			if err := w.schedules.CompleteTask(ctx, task.ID, models.ScheduleStatusCompleted, ""); err != nil && ctx.Err() == nil {
				w.log.Error("Task completion failed",
					logger.Field{Key: "task_id", Value: task.ID.Hex()},
					logger.Field{Key: "error", Value: err.Error()})
			}
		}
	}
	return nil
}

// DailyReset zeroes daily counters for every tenant whose local
// calendar day has rolled over since the last reset. Registered as a
// minute-granularity calendar job.
func (w *SchedulerWorker) DailyReset(ctx context.Context) {
	tenants, err := w.accounts.DistinctTenants(ctx)
	if err != nil {
		w.log.Error("Daily reset tenant scan failed",
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	for _, tenantID := range tenants {
		tenant, err := w.settings.GetOrDefault(ctx, tenantID)
		if err != nil {
			continue
		}
		today := w.now().In(timeutil.Location(tenant.Timezone)).Format("2006-01-02")
		if tenant.LastDailyReset == today {
			continue
		}

		reset, err := w.accounts.ResetDailyCounters(ctx, tenantID)
		if err != nil {
			w.log.Error("Daily counter reset failed",
				logger.Field{Key: "tenant_id", Value: tenantID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		if err := w.settings.SetLastDailyReset(ctx, tenantID, today); err != nil {
			w.log.Error("Daily reset stamp failed",
				logger.Field{Key: "tenant_id", Value: tenantID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		w.log.Info("Daily counters reset",
			logger.Field{Key: "tenant_id", Value: tenantID},
			logger.Field{Key: "accounts", Value: reset})
	}
}
