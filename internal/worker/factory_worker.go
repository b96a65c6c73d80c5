package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/sms"
	"github.com/wintera/fleet/pkg/logger"
)

// FactoryWorker provisions accounts: one rented number, one Telegram
// authorization, one account row per task per tick.
type FactoryWorker struct {
	factory  repository.FactoryRepository
	accounts repository.AccountRepository
	warmups  repository.WarmupRepository
	settings repository.SettingsRepository

	vendor   *sms.Client
	auth     Authenticator
	gate     *PanicGate
	notifier notify.Notifier
	events   *Events
	metrics  *Metrics
	smsCfg   config.SMSConfig
	cfg      config.FactoryConfig
	log      logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

type FactoryWorkerDeps struct {
	Factory  repository.FactoryRepository
	Accounts repository.AccountRepository
	Warmups  repository.WarmupRepository
	Settings repository.SettingsRepository
	Vendor   *sms.Client
	Auth     Authenticator
	Gate     *PanicGate
	Notifier notify.Notifier
	Events   *Events
	Metrics  *Metrics
	SMSCfg   config.SMSConfig
	Config   config.FactoryConfig
	Log      logger.Logger
}

func NewFactoryWorker(deps FactoryWorkerDeps) *FactoryWorker {
	return &FactoryWorker{
		factory:  deps.Factory,
		accounts: deps.Accounts,
		warmups:  deps.Warmups,
		settings: deps.Settings,
		vendor:   deps.Vendor,
		auth:     deps.Auth,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		events:   deps.Events,
		metrics:  deps.Metrics,
		smsCfg:   deps.SMSCfg,
		cfg:      deps.Config,
		log:      deps.Log,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *FactoryWorker) Name() string { return "factory" }

func (w *FactoryWorker) Process(ctx context.Context) error {
	// An unconfigured or unreachable vendor skips the tick for every
	// task rather than burning them into error state.
	if !w.vendor.Configured() {
		return nil
	}

	tasks, err := w.factory.ListRunnable(ctx)
	if err != nil {
		return fmt.Errorf("list factory tasks: %w", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, task.TenantID) {
			continue
		}

		if err := w.processTask(ctx, task); err != nil && ctx.Err() == nil {
			w.log.Error("Factory task failed",
				logger.Field{Key: "task_id", Value: task.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			_ = w.factory.RecordFailed(ctx, task.ID, err.Error())
		}
	}
	return nil
}

func (w *FactoryWorker) processTask(ctx context.Context, task *models.FactoryTask) error {
	if task.Done() {
		return w.finishTask(ctx, task)
	}
	if task.Status == models.FactoryStatusPending {
		if err := w.factory.SetStatus(ctx, task.ID, models.FactoryStatusInProgress, ""); err != nil {
			return err
		}
	}

	balance, err := w.vendor.Balance(ctx)
	if err != nil {
		// Vendor trouble: skip this tick, the task stays runnable.
		w.log.Warn("SMS vendor unavailable", logger.Field{Key: "error", Value: err.Error()})
		return nil
	}
	if balance < w.smsCfg.MinBalance {
		if err := w.factory.SetStatus(ctx, task.ID, models.FactoryStatusPaused,
			fmt.Sprintf("Balance too low: %.2f", balance)); err != nil {
			return err
		}
		w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
			"⚠️ <b>Factory paused</b>\n\nSMS vendor balance too low: %.2f", balance))
		return nil
	}

	w.log.Info("Factory creating account",
		logger.Field{Key: "task_id", Value: task.ID.Hex()},
		logger.Field{Key: "progress", Value: fmt.Sprintf("%d/%d", task.CreatedCount+1, task.Count)})

	phone, err := w.createAccount(ctx, task)
	if err != nil {
		w.metrics.AccountsCreated.WithLabelValues("failed").Inc()
		if err := w.factory.RecordFailed(ctx, task.ID, err.Error()); err != nil {
			return err
		}
		task.FailedCount++
	} else {
		w.metrics.AccountsCreated.WithLabelValues("created").Inc()
		if err := w.factory.RecordCreated(ctx, task.ID); err != nil {
			return err
		}
		task.CreatedCount++
		w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
			"✅ <b>Account created</b>\n\n📱 %s\n📊 Progress: %d/%d",
			logger.MaskPhone(phone), task.CreatedCount, task.Count))
		w.events.Publish(EventAccountCreated, task.TenantID, map[string]interface{}{
			"task_id": task.ID.Hex(),
			"phone":   logger.MaskPhone(phone),
		})
	}

	if task.Done() {
		return w.finishTask(ctx, task)
	}
	return nil
}

func (w *FactoryWorker) finishTask(ctx context.Context, task *models.FactoryTask) error {
	if task.Status == models.FactoryStatusCompleted {
		return nil
	}
	if err := w.factory.SetStatus(ctx, task.ID, models.FactoryStatusCompleted, ""); err != nil {
		return err
	}
	w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
		"🏭 <b>Factory finished</b>\n\n✅ Created: %d\n❌ Failed: %d",
		task.CreatedCount, task.FailedCount))
	return nil
}

// createAccount runs the full per-account flow. The rented number is
// released back to the vendor on every failure path after renting.
func (w *FactoryWorker) createAccount(ctx context.Context, task *models.FactoryTask) (string, error) {
	country := task.Country
	if country == "" {
		country = w.cfg.Country
	}

	rental, err := w.vendor.RentNumber(ctx, w.cfg.Service, country)
	if err != nil {
		return "", fmt.Errorf("rent number: %w", err)
	}

	account := &models.Account{
		TenantID:     task.TenantID,
		Phone:        rental.Number,
		Status:       models.AccountStatusPending,
		Role:         w.selectRole(task.RoleDistribution),
		Source:       "auto_factory",
		WarmupStatus: models.WarmupStatusNone,
	}
	if err := w.accounts.Create(ctx, account); err != nil {
		_ = w.vendor.Cancel(ctx, rental.ActivationID)
		return rental.Number, fmt.Errorf("create account row: %w", err)
	}

	fail := func(reason string, cause error) (string, error) {
		status := models.AccountStatusError
		msg := reason
		if cause != nil {
			msg = fmt.Sprintf("%s: %s", reason, cause)
		}
		_ = w.accounts.Update(ctx, account.ID, models.AccountUpdate{Status: &status, LastError: &msg})
		_ = w.vendor.Cancel(ctx, rental.ActivationID)
		return rental.Number, errors.New(msg)
	}

	codeHash, err := w.auth.StartAuth(ctx, account.ID.Hex(), rental.Number, "")
	if err != nil {
		return fail("telegram auth request failed", err)
	}

	code, err := w.vendor.PollCode(ctx, rental.ActivationID, w.smsCfg.CodeTimeout)
	if err != nil {
		return fail("sms code", err)
	}

	if err := w.auth.CompleteAuth(ctx, account.ID.Hex(), rental.Number, code, codeHash, ""); err != nil {
		return fail("sign in failed", err)
	}

	if err := w.vendor.Confirm(ctx, rental.ActivationID); err != nil {
		w.log.Warn("Vendor confirm failed", logger.Field{Key: "error", Value: err.Error()})
	}

	active := models.AccountStatusActive
	update := models.AccountUpdate{Status: &active}
	if task.AutoWarmup {
		inProgress := models.WarmupStatusInProgress
		update.WarmupStatus = &inProgress
	}
	if err := w.accounts.Update(ctx, account.ID, update); err != nil {
		return rental.Number, fmt.Errorf("activate account: %w", err)
	}

	if task.AutoWarmup {
		days := task.WarmupDays
		if days <= 0 {
			days = w.defaultWarmupDays(ctx, task.TenantID)
		}
		if err := w.warmups.Create(ctx, &models.WarmupProgress{
			AccountID: account.ID,
			TenantID:  task.TenantID,
			Type:      models.WarmupTypeStandard,
			TotalDays: days,
		}); err != nil {
			w.log.Warn("Warmup progress create failed",
				logger.Field{Key: "account_id", Value: account.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	w.log.Info("Factory account authorized",
		logger.Field{Key: "phone", Value: logger.MaskPhone(rental.Number)})
	return rental.Number, nil
}

func (w *FactoryWorker) defaultWarmupDays(ctx context.Context, tenantID string) int {
	tenant, err := w.settings.GetOrDefault(ctx, tenantID)
	if err != nil || tenant.Factory.DefaultWarmupDays <= 0 {
		return 5
	}
	return tenant.Factory.DefaultWarmupDays
}

// selectRole draws from the cumulative role distribution. Keys are
// walked in sorted order so the draw is well-defined; an unmatched draw
// (distribution summing below 1.0) defaults to observer.
func (w *FactoryWorker) selectRole(distribution map[string]float64) models.AccountRole {
	if len(distribution) == 0 {
		return models.RoleObserver
	}

	keys := make([]string, 0, len(distribution))
	for k := range distribution {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.mu.Lock()
	u := w.rnd.Float64()
	w.mu.Unlock()

	cumulative := 0.0
	for _, k := range keys {
		cumulative += distribution[k]
		if u <= cumulative {
			return models.AccountRole(k)
		}
	}
	return models.RoleObserver
}
