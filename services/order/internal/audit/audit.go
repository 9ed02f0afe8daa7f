// Package audit records which catalog stock changes a request applied and how
// the request ended. Stock decrements are not rolled back when a later step
// fails, so these entries are the trail for manual reconciliation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sakashimaa/order-orchestrator/pkg/kafka"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeFailed  Outcome = "failed"
)

type Entry struct {
	RequestID  string                  `json:"requestId"`
	Operation  string                  `json:"operation"`
	Outcome    Outcome                 `json:"outcome"`
	UserID     int64                   `json:"userId,omitempty"`
	UserEmail  string                  `json:"userEmail,omitempty"`
	OrderID    int64                   `json:"orderId,omitempty"`
	Decrements []domain.StockDecrement `json:"decrements"`
	ErrorKind  domain.Kind             `json:"errorKind,omitempty"`
	Detail     string                  `json:"detail,omitempty"`
	TraceID    string                  `json:"traceId,omitempty"`
	SpanID     string                  `json:"spanId,omitempty"`
	At         time.Time               `json:"at"`
}

// NewEntry stamps an entry with the request id and trace of ctx.
func NewEntry(ctx context.Context, operation string, outcome Outcome) Entry {
	entry := Entry{
		RequestID: mylogger.RequestID(ctx),
		Operation: operation,
		Outcome:   outcome,
		At:        time.Now().UTC(),
	}

	if spanCtx := trace.SpanFromContext(ctx).SpanContext(); spanCtx.IsValid() {
		entry.TraceID = spanCtx.TraceID().String()
		entry.SpanID = spanCtx.SpanID().String()
	}

	return entry
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type logRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) Recorder {
	return &logRecorder{logger: logger.Named("audit")}
}

func (r *logRecorder) Record(ctx context.Context, entry Entry) error {
	log := mylogger.Info
	if entry.Outcome == OutcomeFailed {
		log = mylogger.Warn
	}

	log(
		ctx,
		r.logger,
		"Order audit",
		zap.String("operation", entry.Operation),
		zap.String("outcome", string(entry.Outcome)),
		zap.Int64("user_id", entry.UserID),
		zap.Int64("order_id", entry.OrderID),
		zap.Any("decrements", entry.Decrements),
		zap.String("error_kind", string(entry.ErrorKind)),
		zap.String("detail", entry.Detail),
	)

	return nil
}

type kafkaRecorder struct {
	producer kafka.Producer
	topic    string
}

// NewKafkaRecorder publishes entries to topic keyed by request id.
func NewKafkaRecorder(producer kafka.Producer, topic string) Recorder {
	return &kafkaRecorder{producer: producer, topic: topic}
}

func (r *kafkaRecorder) Record(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return r.producer.ProduceMessage(ctx, r.topic, entry.RequestID, payload)
}

type multi []Recorder

// Multi writes every entry to all recorders and joins their errors.
func Multi(recorders ...Recorder) Recorder {
	return multi(recorders)
}

func (m multi) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
