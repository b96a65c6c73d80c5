package worker

import (
	"context"
	"time"

	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/pkg/logger"
)

// PanicGate answers "may this tenant act right now". Every worker asks
// it before picking up a tenant's row; the campaign worker asks again
// before each recipient and the herder before each chain step. A flag
// with an elapsed auto_resume_at clears itself on first check.
type PanicGate struct {
	settings repository.SettingsRepository
	log      logger.Logger
}

func NewPanicGate(settings repository.SettingsRepository, log logger.Logger) *PanicGate {
	return &PanicGate{settings: settings, log: log}
}

// Allowed reports whether the tenant may act. Store errors fail closed:
// a tenant whose flag cannot be read does not act this tick.
func (g *PanicGate) Allowed(ctx context.Context, tenantID string) bool {
	flag, err := g.settings.GetPanicFlag(ctx, tenantID)
	if err != nil {
		g.log.Warn("Panic flag read failed, treating tenant as paused",
			logger.Field{Key: "tenant_id", Value: tenantID},
			logger.Field{Key: "error", Value: err.Error()})
		return false
	}
	if flag == nil || !flag.IsPaused {
		return true
	}

	if flag.AutoResumeAt != nil && !flag.AutoResumeAt.After(time.Now().UTC()) {
		if err := g.settings.ClearPanicFlag(ctx, tenantID); err != nil {
			g.log.Warn("Panic flag auto-resume failed",
				logger.Field{Key: "tenant_id", Value: tenantID},
				logger.Field{Key: "error", Value: err.Error()})
			return false
		}
		g.log.Info("Panic flag auto-resumed", logger.Field{Key: "tenant_id", Value: tenantID})
		return true
	}
	return false
}
