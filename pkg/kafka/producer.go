package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sakashimaa/order-orchestrator/pkg/config"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

type Producer interface {
	ProduceMessage(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

type producer struct {
	syncProducer sarama.SyncProducer
	logger       *zap.Logger
}

func NewProducer(cfg config.Kafka, logger *zap.Logger) (Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.ClientID
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = cfg.MaxRetries
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating producer: %w", err)
	}

	return NewProducerFromSync(p, logger), nil
}

// NewProducerFromSync wraps an existing sarama producer.
func NewProducerFromSync(p sarama.SyncProducer, logger *zap.Logger) Producer {
	return &producer{syncProducer: p, logger: logger}
}

// ProduceMessage sends payload keyed by key, so every message of one
// aggregate lands on the same partition. The trace context of ctx travels in
// the message headers.
func (p *producer) ProduceMessage(ctx context.Context, topic, key string, payload []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier)+1)
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	if requestID := mylogger.RequestID(ctx); requestID != "" {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("x-request-id"),
			Value: []byte(requestID),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.syncProducer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("error sending message to %s: %w", topic, err)
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Message sent",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return nil
}

func (p *producer) Close() error {
	return p.syncProducer.Close()
}
