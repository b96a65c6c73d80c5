package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/wintera/fleet/pkg/logger"
	"github.com/wintera/fleet/pkg/messaging"
)

// Event routing keys on the fleet.events exchange.
const (
	EventCampaignStarted   = "fleet.campaign.started"
	EventCampaignCompleted = "fleet.campaign.completed"
	EventCampaignPaused    = "fleet.campaign.paused"
	EventAccountFloodWait  = "fleet.account.flood_wait"
	EventAccountCreated    = "fleet.factory.account_created"
	EventHerderAction      = "fleet.herder.action"
	EventWarmupAdvanced    = "fleet.warmup.advanced"
	EventContentPublished  = "fleet.content.published"
)

// Event is the envelope published for every worker-visible moment.
type Event struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Events wraps the publisher with fire-and-forget semantics: a broker
// failure is logged, never propagated into a worker tick.
type Events struct {
	publisher messaging.Publisher
	log       logger.Logger
}

func NewEvents(publisher messaging.Publisher, log logger.Logger) *Events {
	return &Events{publisher: publisher, log: log}
}

func (e *Events) Publish(routingKey, tenantID string, payload map[string]interface{}) {
	event := Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      routingKey,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	if err := e.publisher.PublishEvent(routingKey, event); err != nil {
		e.log.Warn("Event publish failed",
			logger.Field{Key: "routing_key", Value: routingKey},
			logger.Field{Key: "error", Value: err.Error()})
	}
}
