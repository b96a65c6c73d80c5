package worker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MessagesTotal    *prometheus.CounterVec
	FloodWaitsTotal  *prometheus.CounterVec
	HerderActions    *prometheus.CounterVec
	WarmupDays       *prometheus.CounterVec
	AccountsCreated  *prometheus.CounterVec
	TickDuration     *prometheus.HistogramVec
	CampaignsActive  prometheus.Gauge
	AccountsEligible *prometheus.GaugeVec
	ErrorsTotal      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide metrics set. promauto registers
// against the default registry, so construction happens exactly once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			MessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_messages_total",
					Help: "Outbound campaign messages by terminal status",
				},
				[]string{"tenant", "status"},
			),
			FloodWaitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_flood_waits_total",
					Help: "Flood waits hit by sender accounts",
				},
				[]string{"tenant"},
			),
			HerderActions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_herder_actions_total",
					Help: "Herder actions executed",
				},
				[]string{"kind", "status"},
			),
			WarmupDays: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_warmup_days_total",
					Help: "Warmup day stages executed",
				},
				[]string{"stage"},
			),
			AccountsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_factory_accounts_total",
					Help: "Factory account creations by result",
				},
				[]string{"result"},
			),
			TickDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "fleet_worker_tick_seconds",
					Help:    "Worker tick duration",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
				},
				[]string{"worker"},
			),
			CampaignsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "fleet_campaigns_active",
					Help: "Campaigns currently pending or running",
				},
			),
			AccountsEligible: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "fleet_accounts_eligible",
					Help: "Eligible sender accounts seen in the last selection",
				},
				[]string{"tenant"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "fleet_worker_errors_total",
					Help: "Non-trivial worker errors by kind",
				},
				[]string{"worker", "kind"},
			),
		}
	})
	return metrics
}
