package worker

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wintera/fleet/internal/models"
)

func roleDrawWorker(seed int64) *FactoryWorker {
	return &FactoryWorker{rnd: rand.New(rand.NewSource(seed))}
}

func TestSelectRole_EmptyDistributionDefaultsObserver(t *testing.T) {
	w := roleDrawWorker(1)
	assert.Equal(t, models.RoleObserver, w.selectRole(nil))
	assert.Equal(t, models.RoleObserver, w.selectRole(map[string]float64{}))
}

func TestSelectRole_CertainDraw(t *testing.T) {
	w := roleDrawWorker(1)
	role := w.selectRole(map[string]float64{"expert": 1.0})
	assert.Equal(t, models.AccountRole("expert"), role)
}

func TestSelectRole_UnmatchedDrawDefaultsObserver(t *testing.T) {
	// Distribution sums to 0.1; most draws fall outside and default.
	w := roleDrawWorker(42)
	defaults := 0
	for i := 0; i < 200; i++ {
		if w.selectRole(map[string]float64{"trendsetter": 0.1}) == models.RoleObserver {
			defaults++
		}
	}
	assert.Greater(t, defaults, 150)
}

func TestSelectRole_DistributionRoughlyRespected(t *testing.T) {
	w := roleDrawWorker(7)
	distribution := map[string]float64{
		"observer":    0.4,
		"expert":      0.3,
		"support":     0.2,
		"trendsetter": 0.1,
	}

	counts := map[models.AccountRole]int{}
	const n = 5000
	for i := 0; i < n; i++ {
		counts[w.selectRole(distribution)]++
	}

	assert.InDelta(t, 0.4, float64(counts[models.RoleObserver])/n, 0.05)
	assert.InDelta(t, 0.3, float64(counts[models.RoleExpert])/n, 0.05)
	assert.InDelta(t, 0.2, float64(counts[models.RoleSupport])/n, 0.05)
	assert.InDelta(t, 0.1, float64(counts[models.RoleTrendsetter])/n, 0.05)
}

func TestFactoryTask_Done(t *testing.T) {
	task := &models.FactoryTask{Count: 3, CreatedCount: 1, FailedCount: 1}
	assert.False(t, task.Done())
	task.FailedCount = 2
	assert.True(t, task.Done())
}
