package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/pkg/logger"
)

// parsePageSize is the participants page the Telegram API serves.
const parsePageSize = 200

// ParsingWorker collects channel members into audience sources that
// campaigns later consume.
type ParsingWorker struct {
	parsing   repository.ParsingRepository
	audiences repository.AudienceRepository
	accounts  repository.AccountRepository

	gateway  TelegramGateway
	selector *Selector
	gate     *PanicGate
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration)
}

type ParsingWorkerDeps struct {
	Parsing   repository.ParsingRepository
	Audiences repository.AudienceRepository
	Accounts  repository.AccountRepository
	Gateway   TelegramGateway
	Selector  *Selector
	Gate      *PanicGate
	Notifier  notify.Notifier
	Log       logger.Logger
}

func NewParsingWorker(deps ParsingWorkerDeps) *ParsingWorker {
	return &ParsingWorker{
		parsing:   deps.Parsing,
		audiences: deps.Audiences,
		accounts:  deps.Accounts,
		gateway:   deps.Gateway,
		selector:  deps.Selector,
		gate:      deps.Gate,
		notifier:  deps.Notifier,
		log:       deps.Log,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     SleepDelay,
	}
}

func (w *ParsingWorker) Name() string { return "parsing" }

func (w *ParsingWorker) Process(ctx context.Context) error {
	tasks, err := w.parsing.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list parsing tasks: %w", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, task.TenantID) {
			continue
		}

		if err := w.processTask(ctx, task); err != nil && ctx.Err() == nil {
			w.log.Error("Parsing task failed",
				logger.Field{Key: "task_id", Value: task.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			_ = w.parsing.SetStatus(ctx, task.ID, models.ParsingStatusError, err.Error())
		}
	}
	return nil
}

func (w *ParsingWorker) processTask(ctx context.Context, task *models.ParsingTask) error {
	channel := ExtractUsername(task.SourceLink)
	if channel == "" {
		return w.parsing.SetStatus(ctx, task.ID, models.ParsingStatusError, "Invalid source link")
	}

	parser, err := w.pickParser(ctx, task)
	if err != nil {
		return err
	}
	if parser == nil {
		return w.parsing.SetStatus(ctx, task.ID, models.ParsingStatusError, "No active accounts")
	}

	if err := w.parsing.SetStatus(ctx, task.ID, models.ParsingStatusInProgress, ""); err != nil {
		return err
	}
	w.log.Info("Parsing channel",
		logger.Field{Key: "task_id", Value: task.ID.Hex()},
		logger.Field{Key: "channel", Value: channel})

	limit := task.Limit
	if limit <= 0 {
		limit = 1000
	}

	var members []*models.AudienceMember
	offset := 0
	for offset < limit {
		page := parsePageSize
		if remaining := limit - offset; remaining < page {
			page = remaining
		}

		users, total, err := w.gateway.GetChannelParticipants(ctx, accountRef(parser), channel, page, offset)
		if err != nil {
			if kind := telegram.KindOf(err); kind == telegram.KindFloodWait {
				seconds, _ := telegram.FloodWaitSeconds(err)
				_ = w.accounts.SetFloodWait(ctx, parser.ID, w.now().Add(time.Duration(seconds)*time.Second))
			}
			return fmt.Errorf("fetch participants: %w", err)
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			if u.IsBot {
				continue
			}
			members = append(members, &models.AudienceMember{
				TelegramID: u.TelegramID,
				AccessHash: u.AccessHash,
				Username:   u.Username,
				FirstName:  u.FirstName,
				LastName:   u.LastName,
				IsPremium:  u.IsPremium,
			})
		}

		offset += len(users)
		if offset >= total {
			break
		}
		w.sleep(ctx, 2*time.Second)
	}

	sourceID := task.SourceID
	if sourceID.IsZero() {
		source := &models.AudienceSource{
			TenantID: task.TenantID,
			Name:     channel,
			Origin:   task.SourceLink,
		}
		if err := w.parsing.CreateSource(ctx, source); err != nil {
			return err
		}
		sourceID = source.ID
	}

	added, err := w.audiences.AddMembers(ctx, sourceID, members)
	if err != nil {
		return fmt.Errorf("store members: %w", err)
	}

	if err := w.parsing.SetResult(ctx, task.ID, sourceID, added); err != nil {
		return err
	}
	w.notifier.Notify(ctx, task.TenantID, fmt.Sprintf(
		"📥 <b>Parsing finished</b>\n\n📢 @%s\n👥 Collected: %d", channel, added))
	return nil
}

func (w *ParsingWorker) pickParser(ctx context.Context, task *models.ParsingTask) (*models.Account, error) {
	if !task.AccountID.IsZero() {
		account, err := w.accounts.GetByID(ctx, task.AccountID)
		if err != nil {
			return nil, err
		}
		return account, nil
	}

	pool, err := w.accounts.List(ctx, models.AccountFilter{
		TenantID: task.TenantID,
		Status:   models.AccountStatusActive,
	})
	if err != nil {
		return nil, err
	}
	return w.selector.Pick(ctx, pool, w.now(), nil), nil
}

// ExtractUsername pulls the channel username out of a t.me link or a
// bare @name.
func ExtractUsername(link string) string {
	link = strings.TrimSpace(link)
	link = strings.TrimPrefix(link, "https://")
	link = strings.TrimPrefix(link, "http://")
	link = strings.TrimPrefix(link, "t.me/")
	link = strings.TrimPrefix(link, "telegram.me/")
	link = strings.TrimPrefix(link, "@")
	if idx := strings.IndexAny(link, "/?"); idx >= 0 {
		link = link[:idx]
	}
	if link == "" || strings.ContainsAny(link, " +") {
		return ""
	}
	return link
}
