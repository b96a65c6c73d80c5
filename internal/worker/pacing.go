package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/timeutil"
)

// Outcome classifies a send result for the pacing feedback loop.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFloodWait
	OutcomePeerFlood
	OutcomeFailure
)

const (
	adaptiveMin           = 1.0
	adaptiveMax           = 5.0
	adaptiveFloodStep     = 0.5
	adaptivePeerFloodStep = 0.2
	adaptiveSuccessStep   = 0.1
)

// Pacing computes inter-send delays for campaigns: base uniform delay
// scaled by warm-start, the campaign's adaptive multiplier, and the
// tenant's hour-of-day flood factor. It is the single owner of the
// adaptive multiplier update rule.
type Pacing struct {
	cfg   config.MailingConfig
	stats repository.StatsRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPacing(cfg config.MailingConfig, stats repository.StatsRepository) *Pacing {
	return &Pacing{
		cfg:   cfg,
		stats: stats,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pacing) uniform(min, max int) float64 {
	if max <= min {
		return float64(min)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(min) + p.rnd.Float64()*float64(max-min)
}

// NextDelay produces the sleep before the campaign's next send.
func (p *Pacing) NextDelay(ctx context.Context, c *models.Campaign, tenant *models.TenantSettings, now time.Time) time.Duration {
	delayMin, delayMax := c.Settings.DelayMin, c.Settings.DelayMax
	if delayMin == 0 && delayMax == 0 {
		delayMin, delayMax = tenant.DelayMin, tenant.DelayMax
	}

	seconds := p.uniform(delayMin, delayMax)

	if c.UseWarmStart && c.SentCount < p.cfg.WarmStartCount {
		seconds *= p.cfg.WarmStartMultiplier
	}
	if c.UseAdaptiveDelays && c.AdaptiveMultiplier > 1.0 {
		seconds *= c.AdaptiveMultiplier
	}
	seconds *= p.HourFactor(ctx, tenant.TenantID, now)

	delay := time.Duration(seconds * float64(time.Second))
	if delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}
	return delay
}

// HourFactor scales delays by the tenant's historic flood rate in the
// current hour bucket. An empty or unknown bucket is neutral.
func (p *Pacing) HourFactor(ctx context.Context, tenantID string, now time.Time) float64 {
	if p.stats == nil {
		return 1.0
	}
	now = now.UTC()
	bucket, err := p.stats.HourBucket(ctx, tenantID, int(now.Weekday()), now.Hour())
	if err != nil || bucket == nil || bucket.Sent == 0 {
		return 1.0
	}

	rate := bucket.FloodRate()
	switch {
	case rate > 0.10:
		return 2.0
	case rate > 0.05:
		return 1.5
	case rate < 0.01:
		return 0.8
	default:
		return 1.0
	}
}

// Feedback folds one send outcome into the campaign's adaptive
// multiplier and returns the new value, clamped to [1.0, 5.0]. Callers
// persist it on the campaign row; nothing else mutates the field.
func (p *Pacing) Feedback(current float64, outcome Outcome) float64 {
	if current < adaptiveMin {
		current = adaptiveMin
	}
	switch outcome {
	case OutcomeSuccess:
		current -= adaptiveSuccessStep
	case OutcomeFloodWait:
		current += adaptiveFloodStep
	case OutcomePeerFlood:
		current += adaptivePeerFloodStep
	}
	if current < adaptiveMin {
		current = adaptiveMin
	}
	if current > adaptiveMax {
		current = adaptiveMax
	}
	return current
}

// TypingDelay draws the typing-simulation window. Independent of the
// inter-send delay.
func (p *Pacing) TypingDelay() time.Duration {
	return time.Duration(p.uniform(p.cfg.TypingDelayMin, p.cfg.TypingDelayMax) * float64(time.Second))
}

// MaySend is the campaign-level predicate: status, quiet hours. Account
// availability and the panic gate are the caller's checks.
func MaySend(c *models.Campaign, tenant *models.TenantSettings, now time.Time) bool {
	if c.Status != models.CampaignStatusRunning {
		return false
	}
	return !timeutil.InQuietHours(now, tenant.Timezone, tenant.QuietHoursStart, tenant.QuietHoursEnd)
}

// SleepDelay drops the goroutine for d, honoring cancellation.
func SleepDelay(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
