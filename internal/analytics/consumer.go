package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/payflow-backend/internal/events"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
)

const consumerName = "analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service streams payment lifecycle events from Pub/Sub into BigQuery.
// Redis idempotency keyed on the broker message ID absorbs redeliveries.
type Service struct {
	subscription *gcppubsub.Subscriber
	client       tableInserter
	table        string
	manager      idempotencyChecker
	logg         *logger.Logger
}

// ServiceParams wire the analytics consumer.
type ServiceParams struct {
	Subscription *gcppubsub.Subscriber
	Client       tableInserter
	Table        string
	Manager      idempotencyChecker
	Logger       *logger.Logger
}

// NewService builds the analytics consumer.
func NewService(params ServiceParams) (*Service, error) {
	if params.Subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if params.Client == nil {
		return nil, errors.New("bigquery client is required")
	}
	if strings.TrimSpace(params.Table) == "" {
		return nil, errors.New("bigquery table name is required")
	}
	if params.Manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: params.Subscription,
		client:       params.Client,
		table:        strings.TrimSpace(params.Table),
		manager:      params.Manager,
		logg:         params.Logger,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes payment events until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})

	var event events.DomainEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed messages will never decode; ack them out of the queue.
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable payment event")
		return processResult{}
	}

	// Pub/Sub message IDs are stable across redeliveries; fold them into a
	// UUID so the shared idempotency manager can key on them.
	eventID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(msg.ID))

	already, err := s.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	row, err := buildRow(msg.ID, event, msg.Data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping invalid payment event")
		return processResult{}
	}

	if err := s.client.InsertRows(logCtx, s.table, []any{row}); err != nil {
		s.logg.Error(logCtx, "failed to insert payment event row", err)
		_ = s.manager.Delete(logCtx, consumerName, eventID)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "payment event ingested")
	return processResult{}
}

type paymentEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	OriginService   string             `bigquery:"origin_service"`
	PaymentID       *string            `bigquery:"payment_id"`
	OrderID         *string            `bigquery:"order_id"`
	UserID          *string            `bigquery:"user_id"`
	Status          *string            `bigquery:"status"`
	AmountCents     *int64             `bigquery:"amount_cents"`
	Currency        *string            `bigquery:"currency"`
	GatewayIntentID *string            `bigquery:"gateway_intent_id"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}

func buildRow(messageID string, event events.DomainEvent, raw []byte) (*paymentEventRow, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("event type missing")
	}

	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	payloadJSON := cbigquery.NullJSON{}
	if len(raw) > 0 {
		payloadJSON.Valid = true
		payloadJSON.JSONVal = string(raw)
	}

	return &paymentEventRow{
		EventID:         messageID,
		EventType:       string(event.Type),
		OccurredAt:      occurredAt,
		OriginService:   event.OriginService,
		PaymentID:       stringField(event.Payload, "payment_id"),
		OrderID:         stringField(event.Payload, "order_id"),
		UserID:          stringField(event.Payload, "user_id"),
		Status:          stringField(event.Payload, "status"),
		AmountCents:     int64Field(event.Payload, "amount"),
		Currency:        stringField(event.Payload, "currency"),
		GatewayIntentID: stringField(event.Payload, "gateway_intent_id"),
		Payload:         payloadJSON,
	}, nil
}

func stringField(payload map[string]any, key string) *string {
	if payload == nil {
		return nil
	}
	if raw, ok := payload[key]; ok {
		if str, ok := raw.(string); ok {
			trimmed := strings.TrimSpace(str)
			if trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}

func int64Field(payload map[string]any, key string) *int64 {
	if payload == nil {
		return nil
	}
	switch raw := payload[key].(type) {
	case float64:
		value := int64(raw)
		return &value
	case int64:
		value := raw
		return &value
	case json.Number:
		if value, err := raw.Int64(); err == nil {
			return &value
		}
	}
	return nil
}
