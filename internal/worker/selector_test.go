package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/pkg/logger"
)

func newSelectorUnderTest(accounts ...*models.Account) (*Selector, *fakeAccountRepo) {
	repo := newFakeAccountRepo(accounts...)
	return NewSelector(repo, logger.New("error", "text")), repo
}

func TestSelector_FiltersIneligible(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	active := account("t1", "+79260000001", 50)
	blocked := account("t1", "+79260000002", 50)
	blocked.Status = models.AccountStatusBlocked
	exhausted := account("t1", "+79260000003", 50)
	exhausted.DailySent = 50
	flooded := account("t1", "+79260000004", 50)
	flooded.Status = models.AccountStatusFloodWait
	flooded.FloodWaitUntil = &future

	s, _ := newSelectorUnderTest(active, blocked, exhausted, flooded)
	eligible := s.Eligible(context.Background(), []*models.Account{active, blocked, exhausted, flooded}, now, nil)

	require.Len(t, eligible, 1)
	assert.Equal(t, active.ID, eligible[0].ID)
}

func TestSelector_ReactivatesExpiredFloodWait(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	flooded := account("t1", "+79260000001", 50)
	flooded.Status = models.AccountStatusFloodWait
	flooded.FloodWaitUntil = &past
	flooded.ConsecutiveErrors = 3

	s, _ := newSelectorUnderTest(flooded)
	picked := s.Pick(context.Background(), []*models.Account{flooded}, now, nil)

	require.NotNil(t, picked)
	assert.Equal(t, models.AccountStatusActive, picked.Status)
	assert.Nil(t, picked.FloodWaitUntil)
	assert.Equal(t, 0, picked.ConsecutiveErrors)
}

func TestSelector_ScoringOrder(t *testing.T) {
	now := time.Now().UTC()

	// High remaining, perfect reliability: the natural winner.
	fresh := account("t1", "+79260000001", 100)
	// Same limit, but errors drag the score down.
	flaky := account("t1", "+79260000002", 100)
	flaky.ConsecutiveErrors = 5
	flaky.ReliabilityScore = 60
	// Small budget left.
	tired := account("t1", "+79260000003", 100)
	tired.DailySent = 95

	s, _ := newSelectorUnderTest(fresh, flaky, tired)
	eligible := s.Eligible(context.Background(), []*models.Account{flaky, tired, fresh}, now, nil)

	require.Len(t, eligible, 3)
	assert.Equal(t, fresh.ID, eligible[0].ID)
}

func TestSelector_TieBreaksByDailySentThenAge(t *testing.T) {
	now := time.Now().UTC()

	older := account("t1", "+79260000001", 50)
	older.CreatedAt = now.Add(-2 * time.Hour)
	newer := account("t1", "+79260000002", 50)
	newer.CreatedAt = now.Add(-time.Hour)

	s, _ := newSelectorUnderTest(older, newer)
	eligible := s.Eligible(context.Background(), []*models.Account{newer, older}, now, nil)

	require.Len(t, eligible, 2)
	assert.Equal(t, older.ID, eligible[0].ID)

	// A lower daily_sent beats age.
	older.DailySent = 10
	newer.DailySent = 5
	// Keep scores equal so the tie-break is exercised.
	older.DailyLimit = 60
	newer.DailyLimit = 55

	eligible = s.Eligible(context.Background(), []*models.Account{older, newer}, now, nil)
	require.Len(t, eligible, 2)
	assert.Equal(t, newer.ID, eligible[0].ID)
}

func TestSelector_QuotaCheck(t *testing.T) {
	now := time.Now().UTC()
	a := account("t1", "+79260000001", 50)
	b := account("t1", "+79260000002", 50)

	s, _ := newSelectorUnderTest(a, b)
	picked := s.Pick(context.Background(), []*models.Account{a, b}, now, func(acc *models.Account) bool {
		return acc.ID != a.ID // a is over its assignment quota
	})

	require.NotNil(t, picked)
	assert.Equal(t, b.ID, picked.ID)

	picked = s.Pick(context.Background(), []*models.Account{a, b}, now, func(*models.Account) bool { return false })
	assert.Nil(t, picked)
}

func TestSelector_EmptyPool(t *testing.T) {
	s, _ := newSelectorUnderTest()
	assert.Nil(t, s.Pick(context.Background(), nil, time.Now().UTC(), nil))
}
