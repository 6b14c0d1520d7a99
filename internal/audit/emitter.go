package audit

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stayware/identity-context-service/infra/pubsub"
	"github.com/stayware/identity-context-service/infra/pubsub/factory"
	"github.com/stayware/identity-context-service/internal/model"
)

// Exchange for platform audit events.
const Exchange = "stayware"

// Emitter publishes audit events. Fire-and-forget by contract:
// a broker failure is logged, never surfaced to the caller.
type Emitter struct {
	logger *slog.Logger
	pub    message.Publisher
}

func NewEmitter(logger *slog.Logger, broker pubsub.Provider) (*Emitter, error) {

	if broker == nil {
		// broker-less runs (tests, dev) just log
		return &Emitter{logger: logger}, nil
	}

	pub, err := broker.GetFactory().BuildPublisher(
		&factory.PublisherConfig{
			Exchange: factory.ExchangeConfig{
				Name:    Exchange,
				Type:    "topic",
				Durable: true,
			},
		},
	)

	if err != nil {
		return nil, err
	}

	return &Emitter{
		logger: logger,
		pub:    pub,
	}, nil
}

// Event payload.
type Event struct {
	EntityType  string         `json:"entity_type"`
	EntityId    string         `json:"entity_id"`
	Action      string         `json:"action"`
	WorkspaceId string         `json:"workspace_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// Emit an audit event. Never blocks the caller on broker trouble.
func (c *Emitter) Emit(entityType, entityId, action, workspaceId string, metadata map[string]any) {

	event := Event{
		EntityType:  entityType,
		EntityId:    entityId,
		Action:      action,
		WorkspaceId: workspaceId,
		Metadata:    metadata,
		Timestamp:   model.LocalTime.Now().UnixMilli(),
	}

	if c.pub == nil {
		c.logger.Debug("audit: event (no broker)",
			"entity", entityType, "action", action, "id", entityId,
		)
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("audit: marshal failed", "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event", "audit")
	msg.Metadata.Set("objclass", entityType)
	msg.Metadata.Set(entityType, entityId)
	msg.Metadata.Set("timestamp", time.UnixMilli(event.Timestamp).UTC().Format(time.RFC3339))

	// audit.<entity>.<action>
	topic := "audit." + entityType + "." + action
	if err = c.pub.Publish(topic, msg); err != nil {
		c.logger.Warn("audit: publish failed",
			"topic", topic, "error", err,
		)
	}
}
