package worker

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wintera/fleet/internal/assets"
	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/timeutil"
	"github.com/wintera/fleet/pkg/logger"
)

// WarmupWorker advances each in-progress warmup by one calendar day:
// joining safe channels early, browsing and reacting later, with the
// reaction probability rising by stage.
type WarmupWorker struct {
	warmups  repository.WarmupRepository
	accounts repository.AccountRepository
	settings repository.SettingsRepository
	profiles repository.ProfileRepository

	gateway   TelegramGateway
	gate      *PanicGate
	ai        AIService
	notifier  notify.Notifier
	events    *Events
	metrics   *Metrics
	templates *assets.Templates
	cfg       config.WarmupConfig
	log       logger.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration)

	mu  sync.Mutex
	rnd *rand.Rand
}

type WarmupWorkerDeps struct {
	Warmups   repository.WarmupRepository
	Accounts  repository.AccountRepository
	Settings  repository.SettingsRepository
	Profiles  repository.ProfileRepository
	Gateway   TelegramGateway
	Gate      *PanicGate
	AI        AIService
	Notifier  notify.Notifier
	Events    *Events
	Metrics   *Metrics
	Templates *assets.Templates
	Config    config.WarmupConfig
	Log       logger.Logger
}

func NewWarmupWorker(deps WarmupWorkerDeps) *WarmupWorker {
	return &WarmupWorker{
		warmups:   deps.Warmups,
		accounts:  deps.Accounts,
		settings:  deps.Settings,
		profiles:  deps.Profiles,
		gateway:   deps.Gateway,
		gate:      deps.Gate,
		ai:        deps.AI,
		notifier:  deps.Notifier,
		events:    deps.Events,
		metrics:   deps.Metrics,
		templates: deps.Templates,
		cfg:       deps.Config,
		log:       deps.Log,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     SleepDelay,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *WarmupWorker) Name() string { return "warmup" }

func (w *WarmupWorker) Process(ctx context.Context) error {
	programs, err := w.warmups.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("list warmups: %w", err)
	}

	for _, p := range programs {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, p.TenantID) {
			continue
		}

		if err := w.advance(ctx, p); err != nil && ctx.Err() == nil {
			w.log.Error("Warmup advance failed",
				logger.Field{Key: "account_id", Value: p.AccountID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (w *WarmupWorker) advance(ctx context.Context, p *models.WarmupProgress) error {
	tenant, err := w.settings.GetOrDefault(ctx, p.TenantID)
	if err != nil {
		return fmt.Errorf("tenant settings: %w", err)
	}

	// One advance per tenant-local calendar day.
	if p.LastActionAt != nil && timeutil.SameTenantDay(*p.LastActionAt, w.now(), tenant.Timezone) {
		return nil
	}

	account, err := w.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.Status != models.AccountStatusActive && account.Status != models.AccountStatusPending {
		return nil
	}

	w.log.Info("Warmup day",
		logger.Field{Key: "phone", Value: logger.MaskPhone(account.Phone)},
		logger.Field{Key: "day", Value: fmt.Sprintf("%d/%d", p.CurrentDay, p.TotalDays)})

	var stage string
	if p.Type == models.WarmupTypeWarmAccount {
		stage = w.warmAccountDay(ctx, account, p.CurrentDay)
	} else {
		stage = w.standardDay(ctx, account, p.CurrentDay)
	}
	w.metrics.WarmupDays.WithLabelValues(stage).Inc()

	completed := p.CurrentDay >= p.TotalDays
	action := models.WarmupAction{
		Day:       p.CurrentDay,
		Action:    stage,
		Timestamp: w.now(),
	}
	if err := w.warmups.Advance(ctx, p.ID, action, completed); err != nil {
		return fmt.Errorf("persist advance: %w", err)
	}

	w.events.Publish(EventWarmupAdvanced, p.TenantID, map[string]interface{}{
		"account_id": p.AccountID.Hex(),
		"day":        p.CurrentDay,
		"completed":  completed,
	})

	if completed {
		return w.finish(ctx, p, account)
	}
	return nil
}

func (w *WarmupWorker) finish(ctx context.Context, p *models.WarmupProgress, account *models.Account) error {
	status := models.WarmupStatusCompleted
	update := models.AccountUpdate{WarmupStatus: &status}

	folder := p.TargetFolderID
	if folder == "" && p.Type == models.WarmupTypeWarmAccount {
		folder = w.cfg.WarmFolder
	}
	if folder != "" {
		update.FolderID = &folder
	}

	if err := w.accounts.Update(ctx, account.ID, update); err != nil {
		return fmt.Errorf("mark warmup complete: %w", err)
	}

	w.notifier.Notify(ctx, p.TenantID, fmt.Sprintf(
		"🌡 <b>Warmup completed</b>\n\n📱 %s\n✅ %d days done",
		logger.MaskPhone(account.Phone), p.TotalDays))
	return nil
}

// standardDay runs the stage for the regular multi-day program:
// days 1-2 join channels, days 3-5 browse with rare reactions, days 6+
// browse more with frequent reactions.
func (w *WarmupWorker) standardDay(ctx context.Context, account *models.Account, day int) string {
	switch {
	case day <= 2:
		w.joinChannels(ctx, account, 3, 30, 120)
		return "join_channels"
	case day <= 5:
		w.browseAndReact(ctx, account, 5, 2, 0.3, w.templates.ReactionSet("default"), 60, 300)
		return "browse_light"
	default:
		w.browseAndReact(ctx, account, 10, 4, 0.5, w.templates.ReactionSet("extended"), 30, 180)
		return "browse_active"
	}
}

// warmAccountDay runs the compressed 2-day warm-account cycle. Day 1
// starts by giving the account its persona.
func (w *WarmupWorker) warmAccountDay(ctx context.Context, account *models.Account, day int) string {
	if day == 1 {
		w.ensureProfile(ctx, account)
		w.joinChannels(ctx, account, 4, 60, 180)
		w.browseAndReact(ctx, account, 5, 2, 0.5, w.templates.ReactionSet("default"), 30, 90)
		return "warm_join"
	}
	for i := 0; i < 2; i++ {
		w.browseAndReact(ctx, account, 8, 3, 0.7, w.templates.ReactionSet("extended"), 20, 60)
		w.sleep(ctx, time.Duration(120+w.rnd.Intn(180))*time.Second)
	}
	return "warm_react"
}

// ensureProfile gives a warm account its persona exactly once: AI
// generation when configured, the stock persona otherwise, persisted to
// the store and applied to the live Telegram profile. Apply failures
// are logged and retried on the next warm-account run via applied_at.
func (w *WarmupWorker) ensureProfile(ctx context.Context, account *models.Account) {
	existing, err := w.profiles.GetByAccount(ctx, account.ID)
	if err != nil {
		w.log.Warn("Profile lookup failed",
			logger.Field{Key: "account_id", Value: account.ID.Hex()},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if existing != nil && existing.AppliedAt != nil {
		return
	}

	profile := existing
	if profile == nil {
		profile = models.DefaultAccountProfile(account.ID, account.TenantID, account.Role)
		if w.ai != nil && w.ai.Configured() {
			generated, err := w.ai.GenerateProfile(ctx, string(account.Role), profile.Interests, profile.SpeechStyle)
			if err == nil && generated != nil {
				profile.Persona = generated.Name
				profile.Bio = generated.Bio
				if len(generated.Interests) > 0 {
					profile.Interests = generated.Interests
				}
			}
		}
		if err := w.profiles.Upsert(ctx, profile); err != nil {
			w.log.Warn("Profile persist failed",
				logger.Field{Key: "account_id", Value: account.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			return
		}
	}

	firstName, lastName := splitPersona(profile.Persona)
	bio := truncate(profile.Bio, 70)
	if err := w.gateway.UpdateProfile(ctx, accountRef(account), firstName, lastName, bio); err != nil {
		w.log.Warn("Profile apply failed",
			logger.Field{Key: "account_id", Value: account.ID.Hex()},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if err := w.profiles.MarkApplied(ctx, account.ID); err != nil {
		w.log.Warn("Profile apply stamp failed",
			logger.Field{Key: "account_id", Value: account.ID.Hex()},
			logger.Field{Key: "error", Value: err.Error()})
	}

	w.log.Info("Persona applied",
		logger.Field{Key: "phone", Value: logger.MaskPhone(account.Phone)},
		logger.Field{Key: "persona", Value: profile.Persona})
}

// splitPersona breaks "Имя Фамилия" into profile name fields.
func splitPersona(persona string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(persona), " ", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "User", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (w *WarmupWorker) joinChannels(ctx context.Context, account *models.Account, count, sleepLo, sleepHi int) {
	channels := w.sampleChannels(count)
	for _, channel := range channels {
		if ctx.Err() != nil {
			return
		}
		if err := w.gateway.JoinChannel(ctx, accountRef(account), channel); err != nil {
			w.log.Warn("Warmup join failed",
				logger.Field{Key: "channel", Value: channel},
				logger.Field{Key: "error", Value: err.Error()})
		}
		w.sleep(ctx, time.Duration(sleepLo+w.rnd.Intn(sleepHi-sleepLo+1))*time.Second)
	}
}

func (w *WarmupWorker) browseAndReact(ctx context.Context, account *models.Account, fetch, sample int, probability float64, emoji []string, sleepLo, sleepHi int) {
	channel := w.sampleChannels(1)[0]
	posts, err := w.gateway.GetChannelPosts(ctx, accountRef(account), channel, fetch)
	if err != nil || len(posts) == 0 {
		return
	}

	w.mu.Lock()
	w.rnd.Shuffle(len(posts), func(i, j int) { posts[i], posts[j] = posts[j], posts[i] })
	w.mu.Unlock()
	if sample < len(posts) {
		posts = posts[:sample]
	}

	for _, post := range posts {
		if ctx.Err() != nil {
			return
		}
		if w.roll() < probability {
			e := emoji[w.rnd.Intn(len(emoji))]
			if err := w.gateway.SendReaction(ctx, accountRef(account), channel, post.ID, e); err != nil {
				w.log.Debug("Warmup reaction failed", logger.Field{Key: "error", Value: err.Error()})
			}
		}
		w.sleep(ctx, time.Duration(sleepLo+w.rnd.Intn(sleepHi-sleepLo+1))*time.Second)
	}
}

func (w *WarmupWorker) sampleChannels(n int) []string {
	channels := w.templates.WarmupChannels
	if n >= len(channels) {
		out := make([]string, len(channels))
		copy(out, channels)
		return out
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	picked := w.rnd.Perm(len(channels))[:n]
	out := make([]string, 0, n)
	for _, idx := range picked {
		out = append(out, channels[idx])
	}
	return out
}

func (w *WarmupWorker) roll() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rnd.Float64()
}
