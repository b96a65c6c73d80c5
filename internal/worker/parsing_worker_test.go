package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/pkg/logger"
)

type fakeParsingRepo struct {
	tasks   []*models.ParsingTask
	sources []*models.AudienceSource
}

func (r *fakeParsingRepo) ListPending(_ context.Context) ([]*models.ParsingTask, error) {
	var out []*models.ParsingTask
	for _, t := range r.tasks {
		if t.Status == models.ParsingStatusPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeParsingRepo) SetStatus(_ context.Context, id primitive.ObjectID, status models.ParsingTaskStatus, errMsg string) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.Status = status
			t.Error = errMsg
		}
	}
	return nil
}

func (r *fakeParsingRepo) SetResult(_ context.Context, id primitive.ObjectID, sourceID primitive.ObjectID, parsed int) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.Status = models.ParsingStatusCompleted
			t.SourceID = sourceID
			t.ParsedCount = parsed
		}
	}
	return nil
}

func (r *fakeParsingRepo) CreateSource(_ context.Context, source *models.AudienceSource) error {
	source.ID = primitive.NewObjectID()
	r.sources = append(r.sources, source)
	return nil
}

func parsedUsers(n int) []telegram.ParsedUser {
	users := make([]telegram.ParsedUser, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, telegram.ParsedUser{
			TelegramID: int64(1000 + i),
			AccessHash: int64(i),
			Username:   "u",
		})
	}
	return users
}

type parsingHarness struct {
	worker    *ParsingWorker
	parsing   *fakeParsingRepo
	audiences *fakeAudienceRepo
	gateway   *fakeGateway
	task      *models.ParsingTask
}

func newParsingHarness(t *testing.T, task *models.ParsingTask) *parsingHarness {
	t.Helper()
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}

	accountRepo := newFakeAccountRepo(account("t1", "+79260000001", 100))
	parsingRepo := &fakeParsingRepo{tasks: []*models.ParsingTask{task}}
	audienceRepo := newFakeAudienceRepo(&models.AudienceSource{TenantID: "t1", Name: "seed"})
	settingsRepo := newFakeSettingsRepo()
	gateway := newFakeGateway()
	log := logger.New("error", "text")

	w := NewParsingWorker(ParsingWorkerDeps{
		Parsing:   parsingRepo,
		Audiences: audienceRepo,
		Accounts:  accountRepo,
		Gateway:   gateway,
		Selector:  NewSelector(accountRepo, log),
		Gate:      NewPanicGate(settingsRepo, log),
		Notifier:  &fakeNotifier{},
		Log:       log,
	})
	w.sleep = func(context.Context, time.Duration) {}

	return &parsingHarness{worker: w, parsing: parsingRepo, audiences: audienceRepo, gateway: gateway, task: task}
}

func TestParsingWorker_CollectsMembers(t *testing.T) {
	h := newParsingHarness(t, &models.ParsingTask{
		TenantID:   "t1",
		SourceLink: "https://t.me/somechannel",
		Limit:      500,
		Status:     models.ParsingStatusPending,
	})
	h.gateway.participants = parsedUsers(350)

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.ParsingStatusCompleted, h.task.Status)
	assert.Equal(t, 350, h.task.ParsedCount)
	require.Len(t, h.parsing.sources, 1)
	assert.Equal(t, "somechannel", h.parsing.sources[0].Name)
	assert.Equal(t, h.parsing.sources[0].ID, h.task.SourceID)
}

func TestParsingWorker_RespectsLimit(t *testing.T) {
	h := newParsingHarness(t, &models.ParsingTask{
		TenantID:   "t1",
		SourceLink: "@somechannel",
		Limit:      100,
		Status:     models.ParsingStatusPending,
	})
	h.gateway.participants = parsedUsers(1000)

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.ParsingStatusCompleted, h.task.Status)
	assert.Equal(t, 100, h.task.ParsedCount)
}

func TestParsingWorker_SkipsBots(t *testing.T) {
	h := newParsingHarness(t, &models.ParsingTask{
		TenantID:   "t1",
		SourceLink: "t.me/somechannel",
		Limit:      50,
		Status:     models.ParsingStatusPending,
	})
	users := parsedUsers(3)
	users[1].IsBot = true
	h.gateway.participants = users

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, 2, h.task.ParsedCount)
}

func TestParsingWorker_InvalidLink(t *testing.T) {
	h := newParsingHarness(t, &models.ParsingTask{
		TenantID:   "t1",
		SourceLink: "https://t.me/+privateInviteHash",
		Status:     models.ParsingStatusPending,
	})

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.ParsingStatusError, h.task.Status)
	assert.Equal(t, "Invalid source link", h.task.Error)
}

func TestParsingWorker_FetchErrorMarksTask(t *testing.T) {
	h := newParsingHarness(t, &models.ParsingTask{
		TenantID:   "t1",
		SourceLink: "t.me/somechannel",
		Status:     models.ParsingStatusPending,
	})
	h.gateway.participantsErr = &telegram.Error{Kind: telegram.KindWriteForbidden}

	require.NoError(t, h.worker.Process(context.Background()))

	assert.Equal(t, models.ParsingStatusError, h.task.Status)
}

func TestExtractUsername(t *testing.T) {
	cases := map[string]string{
		"https://t.me/durov":        "durov",
		"http://t.me/durov?start=1": "durov",
		"t.me/durov/123":            "durov",
		"@durov":                    "durov",
		"durov":                     "durov",
		"https://t.me/+abcdef":      "",
		"":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractUsername(in), in)
	}
}
