package domain

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a message stored in the same transaction as the aggregate
// change it describes and published to Kafka afterwards.
type OutboxEvent struct {
	ID            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	// Headers carries the trace context of the transaction that stored the event.
	Headers     map[string]string `db:"headers"`
	CreatedAt   time.Time         `db:"created_at"`
	PublishedAt *time.Time        `db:"published_at"`
	Attempts    int64             `db:"attempts"`
	LastError   *string           `db:"last_error"`
	Topic       string            `db:"topic"`
}

// Envelope is the message body published for every outbox event.
type Envelope struct {
	EventID   int64           `json:"event_id"`
	EventType string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEvent(aggregateType, aggregateID, eventType, topic string, payload any) (*OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Topic:         topic,
	}, nil
}
