package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/pkg/logger"
)

func TestPanicGate_AllowedByDefault(t *testing.T) {
	settings := newFakeSettingsRepo()
	gate := NewPanicGate(settings, logger.New("error", "text"))

	assert.True(t, gate.Allowed(context.Background(), "t1"))
}

func TestPanicGate_BlocksWhenPaused(t *testing.T) {
	settings := newFakeSettingsRepo()
	settings.panics["t1"] = &models.PanicFlag{TenantID: "t1", IsPaused: true, Reason: "manual stop"}
	gate := NewPanicGate(settings, logger.New("error", "text"))

	assert.False(t, gate.Allowed(context.Background(), "t1"))
	assert.True(t, gate.Allowed(context.Background(), "t2"), "other tenants unaffected")
}

func TestPanicGate_AutoResume(t *testing.T) {
	settings := newFakeSettingsRepo()
	past := time.Now().UTC().Add(-time.Minute)
	settings.panics["t1"] = &models.PanicFlag{TenantID: "t1", IsPaused: true, AutoResumeAt: &past}
	gate := NewPanicGate(settings, logger.New("error", "text"))

	assert.True(t, gate.Allowed(context.Background(), "t1"))
	assert.False(t, settings.panics["t1"].IsPaused, "flag cleared in the store")
}

func TestPanicGate_FutureAutoResumeStillBlocks(t *testing.T) {
	settings := newFakeSettingsRepo()
	future := time.Now().UTC().Add(time.Hour)
	settings.panics["t1"] = &models.PanicFlag{TenantID: "t1", IsPaused: true, AutoResumeAt: &future}
	gate := NewPanicGate(settings, logger.New("error", "text"))

	assert.False(t, gate.Allowed(context.Background(), "t1"))
	assert.True(t, settings.panics["t1"].IsPaused)
}
