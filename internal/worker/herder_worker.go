package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/wintera/fleet/internal/assets"
	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/internal/timeutil"
	"github.com/wintera/fleet/pkg/logger"
)

// strategyProfile is the closed table behind the five herder
// strategies: how a post is picked, whether the strategy comments, and
// its daily action ceiling.
type strategyProfile struct {
	selectPost     func(posts []models.ChannelPost, rnd *rand.Rand) *models.ChannelPost
	canComment     bool
	maxDailyFactor float64
}

var strategyProfiles = map[models.HerderStrategy]strategyProfile{
	models.StrategyTrendsetter: {selectPost: newestPost, canComment: true, maxDailyFactor: 1.0},
	models.StrategyExpert:      {selectPost: fewestRepliesPost, canComment: true, maxDailyFactor: 0.8},
	models.StrategySupport:     {selectPost: mostViewedPost, canComment: true, maxDailyFactor: 1.0},
	models.StrategyObserver:    {selectPost: randomPost, canComment: false, maxDailyFactor: 0.5},
	models.StrategyCommunity:   {selectPost: randomPost, canComment: true, maxDailyFactor: 1.0},
}

func newestPost(posts []models.ChannelPost, _ *rand.Rand) *models.ChannelPost {
	if len(posts) == 0 {
		return nil
	}
	best := posts[0]
	for _, p := range posts[1:] {
		if p.Date.After(best.Date) {
			best = p
		}
	}
	return &best
}

func fewestRepliesPost(posts []models.ChannelPost, _ *rand.Rand) *models.ChannelPost {
	if len(posts) == 0 {
		return nil
	}
	sorted := make([]models.ChannelPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Replies < sorted[j].Replies })
	return &sorted[0]
}

func mostViewedPost(posts []models.ChannelPost, _ *rand.Rand) *models.ChannelPost {
	if len(posts) == 0 {
		return nil
	}
	sorted := make([]models.ChannelPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })
	return &sorted[0]
}

func randomPost(posts []models.ChannelPost, rnd *rand.Rand) *models.ChannelPost {
	if len(posts) == 0 {
		return nil
	}
	return &posts[rnd.Intn(len(posts))]
}

// HerderWorker performs at most one post-engagement per active
// assignment per tick, spreading actions across the assignment's
// accounts under per-day caps.
type HerderWorker struct {
	assignments repository.HerderRepository
	accounts    repository.AccountRepository
	settings    repository.SettingsRepository

	gateway   TelegramGateway
	selector  *Selector
	gate      *PanicGate
	ai        AIService
	events    *Events
	metrics   *Metrics
	templates *assets.Templates
	cfg       config.HerderConfig
	log       logger.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration)

	rnd *rand.Rand
}

type HerderWorkerDeps struct {
	Assignments repository.HerderRepository
	Accounts    repository.AccountRepository
	Settings    repository.SettingsRepository
	Gateway     TelegramGateway
	Selector    *Selector
	Gate        *PanicGate
	AI          AIService
	Events      *Events
	Metrics     *Metrics
	Templates   *assets.Templates
	Config      config.HerderConfig
	Log         logger.Logger
}

func NewHerderWorker(deps HerderWorkerDeps) *HerderWorker {
	return &HerderWorker{
		assignments: deps.Assignments,
		accounts:    deps.Accounts,
		settings:    deps.Settings,
		gateway:     deps.Gateway,
		selector:    deps.Selector,
		gate:        deps.Gate,
		ai:          deps.AI,
		events:      deps.Events,
		metrics:     deps.Metrics,
		templates:   deps.Templates,
		cfg:         deps.Config,
		log:         deps.Log,
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       SleepDelay,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *HerderWorker) Name() string { return "herder" }

func (w *HerderWorker) Process(ctx context.Context) error {
	assignments, err := w.assignments.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}

	for _, a := range assignments {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, a.TenantID) {
			continue
		}

		// Auto-resume rides along in the same pass.
		if a.Status == models.HerderStatusPaused {
			if err := w.assignments.SetStatus(ctx, a.ID, models.HerderStatusActive, nil); err != nil {
				w.log.Warn("Assignment auto-resume failed",
					logger.Field{Key: "assignment_id", Value: a.ID.Hex()},
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			a.Status = models.HerderStatusActive
		}

		if err := w.processAssignment(ctx, a); err != nil && ctx.Err() == nil {
			w.log.Error("Herder assignment failed",
				logger.Field{Key: "assignment_id", Value: a.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

func (w *HerderWorker) processAssignment(ctx context.Context, a *models.HerderAssignment) error {
	tenant, err := w.settings.GetOrDefault(ctx, a.TenantID)
	if err != nil {
		return fmt.Errorf("tenant settings: %w", err)
	}

	profile, ok := strategyProfiles[a.Strategy]
	if !ok {
		profile = strategyProfiles[models.StrategyObserver]
	}

	// Per-assignment comment budget for today.
	dayStart := w.tenantDayStart(tenant.Timezone)
	commentsToday, err := w.assignments.CountCommentsToday(ctx, a.ID, dayStart)
	if err != nil {
		return fmt.Errorf("count comments: %w", err)
	}
	commentBudget := int64(a.Settings.MaxCommentsPerDay) * int64(len(a.AccountIDs))

	perAccountCap := int(float64(tenant.Herder.MaxActionsPerAccount) * profile.maxDailyFactor)
	if perAccountCap <= 0 {
		perAccountCap = w.cfg.MaxDailyActions
	}

	pool, err := w.accounts.List(ctx, models.AccountFilter{TenantID: a.TenantID, IDs: a.AccountIDs})
	if err != nil {
		return fmt.Errorf("load assignment accounts: %w", err)
	}

	// The per-day action quota is counted from the action log so it
	// survives restarts and rolls over at each tenant's own midnight.
	quota := func(acc *models.Account) bool {
		n, err := w.assignments.CountAccountActionsToday(ctx, acc.ID, dayStart)
		if err != nil {
			w.log.Warn("Daily action count failed",
				logger.Field{Key: "account_id", Value: acc.ID.Hex()},
				logger.Field{Key: "error", Value: err.Error()})
			return false
		}
		return n < int64(perAccountCap)
	}
	account := w.selector.Pick(ctx, pool, w.now(), quota)
	if account == nil {
		return nil
	}

	posts, err := w.gateway.GetChannelPosts(ctx, accountRef(account), a.ChannelUsername, w.cfg.PostFetchLimit)
	if err != nil {
		if kind := telegram.KindOf(err); kind == telegram.KindFloodWait {
			seconds, _ := telegram.FloodWaitSeconds(err)
			_ = w.accounts.SetFloodWait(ctx, account.ID, w.now().Add(time.Duration(seconds)*time.Second))
			return nil
		}
		return fmt.Errorf("fetch posts: %w", err)
	}
	post := profile.selectPost(posts, w.rnd)
	if post == nil {
		return nil
	}

	return w.executeChain(ctx, a, tenant, profile, account, post, commentsToday >= commentBudget)
}

// executeChain walks the assignment's action steps in order. Each step
// is a Bernoulli draw; a non-retryable failure aborts the chain.
func (w *HerderWorker) executeChain(ctx context.Context, a *models.HerderAssignment, tenant *models.TenantSettings, profile strategyProfile, account *models.Account, post *models.ChannelPost, commentsExhausted bool) error {
	for _, step := range a.ActionChain {
		if ctx.Err() != nil {
			return nil
		}
		if !w.gate.Allowed(ctx, a.TenantID) {
			return nil
		}
		if w.rnd.Float64() > step.Probability {
			continue
		}

		ok, abort := w.executeStep(ctx, a, profile, account, post, step, commentsExhausted)
		if ok {
			comments := 0
			if step.Kind == models.ActionComment {
				comments = 1
			}
			_ = w.assignments.IncrementActions(ctx, a.ID, 1, comments)
			w.events.Publish(EventHerderAction, a.TenantID, map[string]interface{}{
				"assignment_id": a.ID.Hex(),
				"kind":          string(step.Kind),
				"post_id":       post.ID,
			})
		}
		if abort {
			return nil
		}

		lo, hi := step.DelayAfterMin, step.DelayAfterMax
		if hi <= lo {
			lo, hi = 60, 300
		}
		w.sleep(ctx, time.Duration(lo+w.rnd.Intn(hi-lo+1))*time.Second)
	}
	return nil
}

// executeStep runs one action. Returns (succeeded, abortChain).
func (w *HerderWorker) executeStep(ctx context.Context, a *models.HerderAssignment, profile strategyProfile, account *models.Account, post *models.ChannelPost, step models.ActionStep, commentsExhausted bool) (bool, bool) {
	logAction := func(status, detail string) {
		_ = w.assignments.LogAction(ctx, &models.HerderActionLog{
			AssignmentID: a.ID,
			AccountID:    account.ID,
			Kind:         step.Kind,
			Status:       status,
			PostID:       post.ID,
			Detail:       detail,
		})
		w.metrics.HerderActions.WithLabelValues(string(step.Kind), status).Inc()
	}

	switch step.Kind {
	case models.ActionRead, models.ActionSave:
		// No API surface for these; logging is the observable effect.
		logAction("success", "")
		return true, false

	case models.ActionReact:
		emoji := w.pickEmoji(step.Emoji)
		err := w.gateway.SendReaction(ctx, accountRef(account), a.ChannelUsername, post.ID, emoji)
		if err != nil {
			return false, w.handleActionError(ctx, account, err, logAction)
		}
		logAction("success", emoji)
		return true, false

	case models.ActionComment:
		if !profile.canComment || commentsExhausted {
			return false, false
		}
		comment := w.generateComment(ctx, a, post)
		if comment == "" {
			return false, false
		}
		if w.containsBadPhrase(comment) {
			logAction("filtered", comment)
			return false, false
		}
		_, err := w.gateway.SendComment(ctx, accountRef(account), a.ChannelUsername, post.ID, comment)
		if err != nil {
			return false, w.handleActionError(ctx, account, err, logAction)
		}
		logAction("success", truncate(comment, 100))
		return true, false
	}
	return false, false
}

// handleActionError applies sender-side consequences and reports
// whether the chain should abort.
func (w *HerderWorker) handleActionError(ctx context.Context, account *models.Account, err error, logAction func(status, detail string)) bool {
	kind := telegram.KindOf(err)
	logAction("failed", string(kind))

	switch kind {
	case telegram.KindFloodWait:
		seconds, _ := telegram.FloodWaitSeconds(err)
		_ = w.accounts.SetFloodWait(ctx, account.ID, w.now().Add(time.Duration(seconds)*time.Second))
		return true
	case telegram.KindInvalidReaction:
		return false
	default:
		_ = w.accounts.ApplyTransientFailure(ctx, account.ID, 2, err.Error())
		return true
	}
}

func (w *HerderWorker) pickEmoji(set []string) string {
	if len(set) == 0 {
		set = w.templates.ReactionSet("default")
	}
	return set[w.rnd.Intn(len(set))]
}

// generateComment asks the AI service first and falls back to the
// strategy phrase bank on any failure or absence.
func (w *HerderWorker) generateComment(ctx context.Context, a *models.HerderAssignment, post *models.ChannelPost) string {
	if w.ai != nil && w.ai.Configured() {
		comment, err := w.ai.CommentFor(ctx, post.Text, string(a.Strategy), 200)
		if err == nil && comment != "" {
			return comment
		}
	}

	bank := w.templates.PhrasesFor(string(a.Strategy))
	if len(bank) == 0 {
		return ""
	}
	return bank[w.rnd.Intn(len(bank))]
}

func (w *HerderWorker) containsBadPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range w.templates.BadPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (w *HerderWorker) tenantDayStart(tz string) time.Time {
	loc := timeutil.Location(tz)
	local := w.now().In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return dayStart.UTC()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
