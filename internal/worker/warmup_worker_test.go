package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wintera/fleet/internal/ai"
	"github.com/wintera/fleet/internal/assets"
	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/pkg/logger"
	"github.com/wintera/fleet/pkg/messaging"
)

type warmupHarness struct {
	worker   *WarmupWorker
	warmups  *fakeWarmupRepo
	accounts *fakeAccountRepo
	profiles *fakeProfileRepo
	gateway  *fakeGateway
	notifier *fakeNotifier
	account  *models.Account
	program  *models.WarmupProgress
}

func newWarmupHarness(t *testing.T, currentDay, totalDays int, warmupType models.WarmupType) *warmupHarness {
	t.Helper()

	acc := account("t1", "+79260000001", 100)
	accountRepo := newFakeAccountRepo(acc)

	program := &models.WarmupProgress{
		ID:         primitive.NewObjectID(),
		AccountID:  acc.ID,
		TenantID:   "t1",
		Type:       warmupType,
		CurrentDay: currentDay,
		TotalDays:  totalDays,
		Status:     models.WarmupProgressInProgress,
	}
	warmupRepo := &fakeWarmupRepo{programs: []*models.WarmupProgress{program}}

	settingsRepo := newFakeSettingsRepo()
	settingsRepo.settings["t1"] = testTenantSettings("t1")

	gateway := newFakeGateway()
	gateway.posts = herderPosts()

	templates, err := assets.Load("")
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	log := logger.New("error", "text")

	profileRepo := newFakeProfileRepo()
	w := NewWarmupWorker(WarmupWorkerDeps{
		Warmups:   warmupRepo,
		Accounts:  accountRepo,
		Settings:  settingsRepo,
		Profiles:  profileRepo,
		Gateway:   gateway,
		Gate:      NewPanicGate(settingsRepo, log),
		AI:        &fakeAI{},
		Notifier:  notifier,
		Events:    NewEvents(messaging.NoopPublisher{}, log),
		Metrics:   NewMetrics(),
		Templates: templates,
		Config:    config.WarmupConfig{DefaultDays: 5, WarmAccountDays: 2, WarmFolder: "warm"},
		Log:       log,
	})
	w.sleep = func(context.Context, time.Duration) {}

	return &warmupHarness{
		worker:   w,
		warmups:  warmupRepo,
		accounts: accountRepo,
		profiles: profileRepo,
		gateway:  gateway,
		notifier: notifier,
		account:  acc,
		program:  program,
	}
}

// Scenario 6: the day advances exactly once per tenant-local day.
func TestWarmupWorker_OncePerDay(t *testing.T) {
	h := newWarmupHarness(t, 1, 5, models.WarmupTypeStandard)

	require.NoError(t, h.worker.Process(context.Background()))
	assert.Equal(t, 2, h.program.CurrentDay)
	require.NotNil(t, h.program.LastActionAt)
	joinsAfterFirst := len(h.gateway.joined)
	assert.Greater(t, joinsAfterFirst, 0, "day 1 joins channels")

	// Second run the same day is a no-op.
	require.NoError(t, h.worker.Process(context.Background()))
	assert.Equal(t, 2, h.program.CurrentDay)
	assert.Equal(t, joinsAfterFirst, len(h.gateway.joined))
	assert.Len(t, h.program.CompletedActions, 1)
}

func TestWarmupWorker_AdvancesAfterMidnight(t *testing.T) {
	h := newWarmupHarness(t, 2, 5, models.WarmupTypeStandard)

	require.NoError(t, h.worker.Process(context.Background()))
	require.Equal(t, 3, h.program.CurrentDay)

	// Pretend the last action was yesterday in tenant time.
	yesterday := time.Now().UTC().Add(-26 * time.Hour)
	h.program.LastActionAt = &yesterday

	require.NoError(t, h.worker.Process(context.Background()))
	assert.Equal(t, 4, h.program.CurrentDay)
}

func TestWarmupWorker_CompletesAndMovesFolder(t *testing.T) {
	h := newWarmupHarness(t, 2, 2, models.WarmupTypeWarmAccount)

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.WarmupProgressCompleted, h.program.Status)
	assert.Equal(t, models.WarmupStatusCompleted, h.account.WarmupStatus)
	assert.Equal(t, "warm", h.account.FolderID)
	assert.NotEmpty(t, h.notifier.messages)
}

func TestWarmupWorker_StandardCompletion(t *testing.T) {
	h := newWarmupHarness(t, 5, 5, models.WarmupTypeStandard)

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.WarmupProgressCompleted, h.program.Status)
	assert.Equal(t, models.WarmupStatusCompleted, h.account.WarmupStatus)
	// Standard warmups keep their folder.
	assert.Empty(t, h.account.FolderID)
}

// Warm accounts get a persona on day 1: generated when AI is up,
// the stock persona otherwise, then applied to the live profile.
func TestWarmupWorker_WarmAccountAppliesGeneratedPersona(t *testing.T) {
	h := newWarmupHarness(t, 1, 2, models.WarmupTypeWarmAccount)
	h.worker.ai = &fakeAI{configured: true, profile: &ai.Profile{
		Name:      "Анна Смирнова",
		Bio:       "Люблю технологии и путешествия",
		Interests: []string{"технологии", "путешествия"},
	}}

	require.NoError(t, h.worker.Process(context.Background()))

	stored := h.profiles.profiles[h.account.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "Анна Смирнова", stored.Persona)
	assert.NotNil(t, stored.AppliedAt)

	require.Len(t, h.gateway.profileUpdates, 1)
	assert.Equal(t, "Анна|Смирнова|Люблю технологии и путешествия", h.gateway.profileUpdates[0])
}

func TestWarmupWorker_WarmAccountFallsBackToStockPersona(t *testing.T) {
	h := newWarmupHarness(t, 1, 2, models.WarmupTypeWarmAccount)
	h.worker.ai = &fakeAI{configured: true, err: context.DeadlineExceeded}

	require.NoError(t, h.worker.Process(context.Background()))

	stored := h.profiles.profiles[h.account.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "Пользователь Telegram", stored.Persona)
	require.Len(t, h.gateway.profileUpdates, 1)
}

func TestWarmupWorker_PersonaAppliedOnce(t *testing.T) {
	h := newWarmupHarness(t, 1, 3, models.WarmupTypeWarmAccount)

	require.NoError(t, h.worker.Process(context.Background()))
	require.Len(t, h.gateway.profileUpdates, 1)

	// Re-run day 1 work directly: an applied profile is not re-applied.
	h.worker.ensureProfile(context.Background(), h.account)
	assert.Len(t, h.gateway.profileUpdates, 1)
}

func TestWarmupWorker_ProfileApplyFailureRetries(t *testing.T) {
	h := newWarmupHarness(t, 1, 2, models.WarmupTypeWarmAccount)
	h.gateway.profileErr = &telegram.Error{Kind: telegram.KindNetwork}

	require.NoError(t, h.worker.Process(context.Background()))

	stored := h.profiles.profiles[h.account.ID]
	require.NotNil(t, stored, "persona persisted even when apply fails")
	assert.Nil(t, stored.AppliedAt)

	// Next attempt succeeds and stamps the profile.
	h.gateway.profileErr = nil
	h.worker.ensureProfile(context.Background(), h.account)
	assert.NotNil(t, h.profiles.profiles[h.account.ID].AppliedAt)
}

func TestWarmupWorker_StandardWarmupSkipsPersona(t *testing.T) {
	h := newWarmupHarness(t, 1, 5, models.WarmupTypeStandard)

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Empty(t, h.gateway.profileUpdates)
	assert.Empty(t, h.profiles.profiles)
}

func TestWarmupWorker_SkipsInactiveAccount(t *testing.T) {
	h := newWarmupHarness(t, 1, 5, models.WarmupTypeStandard)
	h.account.Status = models.AccountStatusBlocked

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, 1, h.program.CurrentDay)
	assert.Nil(t, h.program.LastActionAt)
}

func TestWarmupWorker_PanicGateBlocks(t *testing.T) {
	h := newWarmupHarness(t, 1, 5, models.WarmupTypeStandard)
	settings := h.worker.settings.(*fakeSettingsRepo)
	settings.panics["t1"] = &models.PanicFlag{TenantID: "t1", IsPaused: true}

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, 1, h.program.CurrentDay)
	assert.Empty(t, h.gateway.joined)
}
