package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintera/fleet/internal/models"
)

func TestOptimalHour_EmptyHeatmapIsNoSignal(t *testing.T) {
	_, ok := optimalHour(nil)
	assert.False(t, ok)

	// Buckets with zero sends carry no signal either.
	_, ok = optimalHour([]*models.HourlyStats{{Hour: 10, Sent: 0}})
	assert.False(t, ok)
}

func TestOptimalHour_PicksBestSuccessRate(t *testing.T) {
	buckets := []*models.HourlyStats{
		{Hour: 9, Sent: 100, Success: 60},
		{Hour: 14, Sent: 100, Success: 90},
		{Hour: 20, Sent: 100, Success: 75},
	}

	hour, ok := optimalHour(buckets)
	require.True(t, ok)
	assert.Equal(t, 14, hour)
}

func TestOptimalHour_WeightsByVolume(t *testing.T) {
	// Hour 9 across two weekdays: a tiny perfect bucket must not beat a
	// large mediocre one at another hour when averaged per hour.
	buckets := []*models.HourlyStats{
		{DayOfWeek: 1, Hour: 9, Sent: 2, Success: 2},
		{DayOfWeek: 2, Hour: 9, Sent: 200, Success: 100},
		{DayOfWeek: 1, Hour: 15, Sent: 100, Success: 70},
	}

	hour, ok := optimalHour(buckets)
	require.True(t, ok)
	assert.Equal(t, 15, hour)
}

func TestPersonalize_RenderTemplate(t *testing.T) {
	m := &models.AudienceMember{FirstName: "Anna", LastName: "K", Username: "anna_k"}
	out := RenderTemplate("Hi {first_name} {last_name} (@{username}), {name}!", m)
	assert.Equal(t, "Hi Anna K (@anna_k), Anna!", out)

	// {name} falls back to username when the first name is empty.
	noName := &models.AudienceMember{Username: "ghost"}
	assert.Equal(t, "Hello ghost", RenderTemplate("Hello {name}", noName))

	// Missing values render as empty strings, never as placeholders.
	empty := &models.AudienceMember{}
	assert.Equal(t, "Hi  ", RenderTemplate("Hi {first_name} {last_name}", empty))
}
