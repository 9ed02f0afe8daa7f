package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProducer struct {
	topic   string
	key     string
	payload []byte
	err     error
}

func (p *fakeProducer) ProduceMessage(_ context.Context, topic, key string, payload []byte) error {
	p.topic, p.key, p.payload = topic, key, payload
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

func TestNewEntry_UsesRequestID(t *testing.T) {
	ctx := mylogger.WithRequestID(context.Background(), "req-1")

	entry := NewEntry(ctx, "create_order", OutcomeCreated)

	require.Equal(t, "req-1", entry.RequestID)
	require.Equal(t, OutcomeCreated, entry.Outcome)
	require.False(t, entry.At.IsZero())
}

func TestKafkaRecorder_KeysByRequestID(t *testing.T) {
	producer := &fakeProducer{}
	recorder := NewKafkaRecorder(producer, "order_audit")

	entry := NewEntry(mylogger.WithRequestID(context.Background(), "req-2"), "create_order", OutcomeFailed)
	entry.ErrorKind = domain.KindInsufficientStock
	entry.Decrements = []domain.StockDecrement{{ProductID: 1, Quantity: 2, Before: 5, After: 3}}

	require.NoError(t, recorder.Record(context.Background(), entry))
	require.Equal(t, "order_audit", producer.topic)
	require.Equal(t, "req-2", producer.key)

	var decoded Entry
	require.NoError(t, json.Unmarshal(producer.payload, &decoded))
	require.Equal(t, entry.Decrements, decoded.Decrements)
	require.Equal(t, domain.KindInsufficientStock, decoded.ErrorKind)
}

func TestLogRecorder_FailedIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder := NewLogRecorder(zap.New(core))

	entry := NewEntry(context.Background(), "create_order", OutcomeFailed)
	require.NoError(t, recorder.Record(context.Background(), entry))

	require.Equal(t, 1, logs.Len())
	require.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestMulti_WritesAllAndJoinsErrors(t *testing.T) {
	failing := &fakeProducer{err: errors.New("broker down")}
	ok := &fakeProducer{}

	recorder := Multi(NewKafkaRecorder(failing, "a"), NewKafkaRecorder(ok, "b"))

	err := recorder.Record(context.Background(), NewEntry(context.Background(), "create_order", OutcomeCreated))

	require.ErrorContains(t, err, "broker down")
	require.Equal(t, "b", ok.topic)
}
