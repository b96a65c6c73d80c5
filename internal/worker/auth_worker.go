package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/pkg/logger"
)

// AuthWorker progresses interactive authorization of manually added
// accounts: pending tasks get a code request, tasks whose code arrived
// get signed in (with the 2FA branch).
type AuthWorker struct {
	tasks    repository.AuthTaskRepository
	accounts repository.AccountRepository

	auth     Authenticator
	gate     *PanicGate
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time
}

type AuthWorkerDeps struct {
	Tasks    repository.AuthTaskRepository
	Accounts repository.AccountRepository
	Auth     Authenticator
	Gate     *PanicGate
	Notifier notify.Notifier
	Log      logger.Logger
}

func NewAuthWorker(deps AuthWorkerDeps) *AuthWorker {
	return &AuthWorker{
		tasks:    deps.Tasks,
		accounts: deps.Accounts,
		auth:     deps.Auth,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		log:      deps.Log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *AuthWorker) Name() string { return "auth" }

func (w *AuthWorker) Process(ctx context.Context) error {
	tasks, err := w.tasks.ListActionable(ctx)
	if err != nil {
		return fmt.Errorf("list auth tasks: %w", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, task.TenantID) {
			continue
		}

		var procErr error
		switch task.Status {
		case models.AuthStatusPending:
			procErr = w.sendCode(ctx, task)
		case models.AuthStatusCodeReceived:
			procErr = w.completeAuth(ctx, task)
		}
		if procErr != nil && ctx.Err() == nil {
			w.log.Error("Auth task failed",
				logger.Field{Key: "task_id", Value: task.ID.Hex()},
				logger.Field{Key: "error", Value: procErr.Error()})
			_ = w.tasks.SetStatus(ctx, task.ID, models.AuthStatusError, procErr.Error())
		}
	}
	return nil
}

func (w *AuthWorker) accountKey(task *models.AuthTask) string {
	// Tasks for brand-new phones have no account row yet; the task id
	// keys the session blob until one exists.
	if !task.AccountID.IsZero() {
		return task.AccountID.Hex()
	}
	return task.ID.Hex()
}

func (w *AuthWorker) sendCode(ctx context.Context, task *models.AuthTask) error {
	w.log.Info("Sending auth code",
		logger.Field{Key: "phone", Value: logger.MaskPhone(task.Phone)})

	codeHash, err := w.auth.StartAuth(ctx, w.accountKey(task), task.Phone, task.Proxy)
	if err != nil {
		if kind := telegram.KindOf(err); kind == telegram.KindFloodWait {
			seconds, _ := telegram.FloodWaitSeconds(err)
			return w.tasks.SetStatus(ctx, task.ID, models.AuthStatusFloodWait,
				fmt.Sprintf("FloodWait: %ds", seconds))
		}
		return err
	}
	return w.tasks.StoreCodeHash(ctx, task.ID, codeHash)
}

func (w *AuthWorker) completeAuth(ctx context.Context, task *models.AuthTask) error {
	if task.Code == "" {
		return nil // waiting for the UI to deliver the code
	}
	if task.PhoneCodeHash == "" {
		return w.tasks.SetStatus(ctx, task.ID, models.AuthStatusError, "Missing phone_code_hash")
	}

	err := w.auth.CompleteAuth(ctx, w.accountKey(task), task.Phone, task.Code, task.PhoneCodeHash, task.Password)
	if err != nil {
		switch telegram.KindOf(err) {
		case telegram.KindPasswordNeeded:
			return w.tasks.SetStatus(ctx, task.ID, models.AuthStatus2FARequired, "")
		case telegram.KindCodeExpired:
			return w.tasks.SetStatus(ctx, task.ID, models.AuthStatusError, "Code expired")
		case telegram.KindInvalidCode:
			return w.tasks.SetStatus(ctx, task.ID, models.AuthStatusError, "Invalid code")
		case telegram.KindInvalidPassword:
			return w.tasks.SetStatus(ctx, task.ID, models.AuthStatusError, "Invalid 2FA password")
		}
		return err
	}

	if !task.AccountID.IsZero() {
		active := models.AccountStatusActive
		if err := w.accounts.Update(ctx, task.AccountID, models.AccountUpdate{Status: &active}); err != nil {
			w.log.Warn("Account activation failed",
				logger.Field{Key: "account_id", Value: task.AccountID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	if err := w.tasks.SetStatus(ctx, task.ID, models.AuthStatusCompleted, ""); err != nil {
		return err
	}

	w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
		"🔑 <b>Account authorized</b>\n\n📱 %s", logger.MaskPhone(task.Phone)))
	return nil
}
