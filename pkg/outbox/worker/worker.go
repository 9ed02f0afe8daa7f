package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
}

type Publisher interface {
	ProduceMessage(ctx context.Context, topic, key string, payload []byte) error
}

type Option func(*OutboxProcessor)

func WithBatchSize(n int) Option {
	return func(p *OutboxProcessor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *OutboxProcessor) {
		if d > 0 {
			p.interval = d
		}
	}
}

type OutboxProcessor struct {
	pool      *pgxpool.Pool
	repo      OutboxRepository
	publisher Publisher
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo OutboxRepository,
	publisher Publisher,
	logger *zap.Logger,
	opts ...Option,
) *OutboxProcessor {
	p := &OutboxProcessor{
		pool:      pool,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		batchSize: 50,
		interval:  500 * time.Millisecond,
		tracer:    otel.Tracer("outbox_worker"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start polls the outbox until ctx is done.
func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		p.logger,
		"Starting outbox processor",
		zap.Int("batch_size", p.batchSize),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(
				ctx,
				p.logger,
				"Outbox processor stopping",
			)

			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			mylogger.Error(
				ctx,
				p.logger,
				"Outbox worker failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				return published, dbErr
			}

			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.ID); err != nil {
			return published, err
		}

		published++
	}

	span.SetAttributes(attribute.Int("published", published))

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *domain.OutboxEvent) error {
	eventCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(event.Headers))
	eventCtx, span := p.tracer.Start(
		eventCtx,
		"OutboxProcessor.publish",
		trace.WithLinks(trace.LinkFromContext(ctx)),
	)
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", event.ID),
		attribute.String("topic", event.Topic),
	)

	body, err := json.Marshal(domain.Envelope{
		EventID:   event.ID,
		EventType: event.EventType,
		Payload:   event.Payload,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := p.publisher.ProduceMessage(eventCtx, event.Topic, event.AggregateID, body); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}
