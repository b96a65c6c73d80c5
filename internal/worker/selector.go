package worker

import (
	"context"
	"sort"
	"time"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/pkg/logger"
)

// QuotaCheck lets a caller impose an extra per-account quota (the
// herder's per-day actions). Nil means no extra constraint.
type QuotaCheck func(a *models.Account) bool

// Selector picks the best eligible sender out of a candidate set.
type Selector struct {
	accounts repository.AccountRepository
	log      logger.Logger
}

func NewSelector(accounts repository.AccountRepository, log logger.Logger) *Selector {
	return &Selector{accounts: accounts, log: log}
}

// Eligible returns the candidates that pass: active status, no live flood
// wait (expired waits are atomically reactivated), daily budget left,
// and the optional quota. The returned slice is ordered best-first by
// score, tie-broken by lowest daily_sent then earliest created.
func (s *Selector) Eligible(ctx context.Context, candidates []*models.Account, now time.Time, quota QuotaCheck) []*models.Account {
	eligible := make([]*models.Account, 0, len(candidates))

	for _, a := range candidates {
		switch a.Status {
		case models.AccountStatusActive:
			// fall through to the remaining checks
		case models.AccountStatusFloodWait, models.AccountStatusPausedRisk:
			if a.FloodWaitUntil == nil || a.FloodWaitUntil.After(now) {
				continue
			}
			ok, err := s.accounts.ReactivateIfExpired(ctx, a.ID, now)
			if err != nil {
				s.log.Warn("Flood-wait reactivation failed",
					logger.Field{Key: "account_id", Value: a.ID.Hex()},
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			if !ok {
				continue
			}
			a.Status = models.AccountStatusActive
			a.FloodWaitUntil = nil
			a.ConsecutiveErrors = 0
		default:
			continue
		}

		if a.DailyRemaining() <= 0 {
			continue
		}
		if quota != nil && !quota(a) {
			continue
		}
		eligible = append(eligible, a)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := eligible[i].SelectorScore(), eligible[j].SelectorScore()
		if si != sj {
			return si > sj
		}
		if eligible[i].DailySent != eligible[j].DailySent {
			return eligible[i].DailySent < eligible[j].DailySent
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	return eligible
}

// Pick returns the single best eligible account, or nil.
func (s *Selector) Pick(ctx context.Context, candidates []*models.Account, now time.Time, quota QuotaCheck) *models.Account {
	eligible := s.Eligible(ctx, candidates, now, quota)
	if len(eligible) == 0 {
		return nil
	}
	return eligible[0]
}
