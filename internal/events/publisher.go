package events

import (
	"context"
	"encoding/json"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/payflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

// DomainEvent is the envelope every payment lifecycle event is published in.
type DomainEvent struct {
	Type          enums.PaymentEventType `json:"type"`
	Payload       map[string]any         `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	OriginService string                 `json:"origin_service"`
}

// TopicPublisher is the Pub/Sub publish seam, narrowed so tests can stub it.
type TopicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult
}

// PublishResult resolves the server-assigned message ID or the publish error.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpTopicPublisher struct {
	publisher *gcppubsub.Publisher
}

// NewGCPTopicPublisher adapts a Pub/Sub v2 publisher onto the TopicPublisher seam.
func NewGCPTopicPublisher(publisher *gcppubsub.Publisher) TopicPublisher {
	if publisher == nil {
		return nil
	}
	return &gcpTopicPublisher{publisher: publisher}
}

func (p *gcpTopicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult {
	return p.publisher.Publish(ctx, msg)
}

// Publisher serializes domain events and pushes them to the payments topic.
// Publish failures are typed CodePublish; callers decide whether they are
// fatal (for payment flows they never are).
type Publisher struct {
	topic         TopicPublisher
	logg          *logger.Logger
	originService string
	timeout       time.Duration
}

// PublisherParams wires the event publisher.
type PublisherParams struct {
	Topic          TopicPublisher
	Logger         *logger.Logger
	OriginService  string
	PublishTimeout time.Duration
}

// NewPublisher builds the domain event publisher.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Topic == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "topic publisher is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{
		topic:         params.Topic,
		logg:          params.Logger,
		originService: params.OriginService,
		timeout:       timeout,
	}, nil
}

// Publish stamps and emits a single domain event, blocking until the broker
// acknowledges it or the publish timeout elapses.
func (p *Publisher) Publish(ctx context.Context, eventType enums.PaymentEventType, payload map[string]any) error {
	event := DomainEvent{
		Type:          eventType,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		OriginService: p.originService,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePublish, err, "encoding domain event")
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":     string(eventType),
			"origin_service": p.originService,
		},
	}
	if paymentID, ok := payload["payment_id"].(string); ok && paymentID != "" {
		msg.Attributes["payment_id"] = paymentID
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messageID, err := p.topic.Publish(publishCtx, msg).Get(publishCtx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePublish, err, "publishing domain event")
	}

	logCtx := p.logg.WithFields(ctx, map[string]any{
		"event_type": string(eventType),
		"message_id": messageID,
	})
	p.logg.Info(logCtx, "domain event published")
	return nil
}
