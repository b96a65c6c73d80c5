package worker

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/repository"
)

// Heatmap aggregates a tenant's hourly buckets into send-quality
// signals. With no populated buckets every answer is "no signal" and
// callers fall back to configured delays.
type Heatmap struct {
	stats repository.StatsRepository
}

func NewHeatmap(stats repository.StatsRepository) *Heatmap {
	return &Heatmap{stats: stats}
}

// OptimalSendHour returns the hour (0-23, UTC) with the best weighted
// success rate across weekdays, or false when the heatmap is empty.
func (h *Heatmap) OptimalSendHour(ctx context.Context, tenantID string) (int, bool) {
	buckets, err := h.stats.TenantHeatmap(ctx, tenantID)
	if err != nil {
		return 0, false
	}
	return optimalHour(buckets)
}

func optimalHour(buckets []*models.HourlyStats) (int, bool) {
	rates := make(map[int][]float64)
	weights := make(map[int][]float64)
	for _, b := range buckets {
		if b.Sent == 0 {
			continue
		}
		rates[b.Hour] = append(rates[b.Hour], float64(b.Success)/float64(b.Sent))
		weights[b.Hour] = append(weights[b.Hour], float64(b.Sent))
	}
	if len(rates) == 0 {
		return 0, false
	}

	bestHour, bestRate := 0, -1.0
	for hour, hourRates := range rates {
		mean := stat.Mean(hourRates, weights[hour])
		if mean > bestRate || (mean == bestRate && hour < bestHour) {
			bestHour, bestRate = hour, mean
		}
	}
	return bestHour, true
}

// FloodPressure is the tenant's overall flood-wait rate across the
// heatmap. Zero when no data exists.
func (h *Heatmap) FloodPressure(ctx context.Context, tenantID string) float64 {
	buckets, err := h.stats.TenantHeatmap(ctx, tenantID)
	if err != nil || len(buckets) == 0 {
		return 0
	}

	var sent, floods float64
	for _, b := range buckets {
		sent += float64(b.Sent)
		floods += float64(b.FloodWaits)
	}
	if sent == 0 {
		return 0
	}
	return floods / sent
}
