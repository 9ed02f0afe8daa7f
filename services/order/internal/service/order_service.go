package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/order-orchestrator/pkg/outbox/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/audit"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/client"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	opCreateOrder     = "create_order"
	opListOrders      = "list_orders"
	opGetOrder        = "get_order"
	opCorrectOriginal = "correct_original_request"

	EventOrderCreated = "OrderCreated"
)

type OrderService interface {
	CreateOrder(ctx context.Context, cred domain.Credential, req domain.CreateOrderRequest) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, cred domain.Credential) ([]domain.EnrichedOrder, error)
	GetOrder(ctx context.Context, cred domain.Credential, orderID int64) (*domain.Order, error)
	CorrectOriginalRequest(ctx context.Context, cred domain.Credential, orderID int64, raw json.RawMessage) error
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type OutboxWriter interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *outboxDomain.OutboxEvent) error
}

type Metrics interface {
	OrderCreated()
	OrderFailed(operation, kind string)
}

type Deps struct {
	DB         TxBeginner
	Orders     repository.OrderRepository
	Outbox     OutboxWriter
	Identity   client.IdentityClient
	Catalog    client.CatalogClient
	Guard      InventoryGuard
	Audit      audit.Recorder
	Metrics    Metrics
	Logger     *zap.Logger
	OrderTopic string
}

type orderService struct {
	db         TxBeginner
	orders     repository.OrderRepository
	outbox     OutboxWriter
	identity   client.IdentityClient
	catalog    client.CatalogClient
	guard      InventoryGuard
	audit      audit.Recorder
	metrics    Metrics
	logger     *zap.Logger
	orderTopic string
	tracer     trace.Tracer
}

func NewOrderService(deps Deps) OrderService {
	s := &orderService{
		db:         deps.DB,
		orders:     deps.Orders,
		outbox:     deps.Outbox,
		identity:   deps.Identity,
		catalog:    deps.Catalog,
		guard:      deps.Guard,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		orderTopic: deps.OrderTopic,
		tracer:     otel.Tracer("order_service"),
	}

	if s.guard == nil {
		s.guard = NewInventoryGuard(deps.Catalog, deps.Logger)
	}
	if s.audit == nil {
		s.audit = audit.NewLogRecorder(deps.Logger)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.orderTopic == "" {
		s.orderTopic = "order_events"
	}

	return s
}

// CreateOrder resolves the caller, reserves stock line by line in the given
// order and persists the order. Stock already decremented for earlier lines
// stays decremented when a later step fails; the audit entry lists it.
func (s *orderService) CreateOrder(ctx context.Context, cred domain.Credential, req domain.CreateOrderRequest) (*domain.Order, error) {
	ctx = ensureRequestID(ctx)

	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", mylogger.RequestID(ctx)),
		attribute.Int("lines_count", len(req.Lines)),
	)

	entry := audit.NewEntry(ctx, opCreateOrder, audit.OutcomeFailed)

	if err := validateLines(req.Lines); err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, err, entry)
	}

	originalRequest, err := originalRequestJSON(req)
	if err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, err, entry)
	}

	if err := s.ensureUnusedRequestID(ctx); err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, err, entry)
	}

	identity, err := s.resolveIdentity(ctx, cred)
	if err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, err, entry)
	}

	entry.UserID = identity.ID
	entry.UserEmail = identity.Email
	span.SetAttributes(attribute.Int64("user_id", identity.ID))

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		decrement, err := s.guard.Reserve(ctx, line)
		if err != nil {
			return nil, s.fail(ctx, span, opCreateOrder, err, entry)
		}

		entry.Decrements = append(entry.Decrements, decrement)
		lines = append(lines, domain.OrderLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, domain.NewError(domain.KindCanceled, "request canceled before persisting", err), entry)
	}

	order := &domain.Order{
		RequestID:           mylogger.RequestID(ctx),
		UserID:              identity.ID,
		UserEmail:           identity.Email,
		OriginalRequestJSON: originalRequest,
		Status:              domain.OrderStatusOrdered,
		Lines:               lines,
	}

	if err := s.persist(ctx, order); err != nil {
		return nil, s.fail(ctx, span, opCreateOrder, err, entry)
	}

	entry.Outcome = audit.OutcomeCreated
	entry.OrderID = order.ID
	s.record(ctx, entry)
	s.metrics.OrderCreated()

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int("lines_count", len(order.Lines)),
	)

	return order, nil
}

// ListOrdersForUser loads the caller's orders and names their products with a
// single catalog call.
func (s *orderService) ListOrdersForUser(ctx context.Context, cred domain.Credential) ([]domain.EnrichedOrder, error) {
	ctx = ensureRequestID(ctx)

	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersForUser")
	defer span.End()

	identity, err := s.resolveIdentity(ctx, cred)
	if err != nil {
		return nil, s.fail(ctx, span, opListOrders, err, audit.Entry{})
	}

	orders, err := s.orders.FindAllByUserID(ctx, identity.ID)
	if err != nil {
		return nil, s.fail(ctx, span, opListOrders, domain.NewError(domain.KindPersistenceFailure, "failed to load orders", err), audit.Entry{})
	}

	productIDs := domain.DistinctProductIDs(orders)
	span.SetAttributes(
		attribute.Int("orders_count", len(orders)),
		attribute.Int("products_count", len(productIDs)),
	)

	names := make(map[int64]string, len(productIDs))
	if len(productIDs) > 0 {
		products, err := s.catalog.FindProducts(ctx, productIDs)
		if err != nil {
			return nil, s.fail(ctx, span, opListOrders, catalogError(ctx, err, 0), audit.Entry{})
		}

		for _, p := range products {
			names[p.ID] = p.Name
		}
	}

	result := make([]domain.EnrichedOrder, 0, len(orders))
	for i := range orders {
		result = append(result, orders[i].Enrich(names))
	}

	return result, nil
}

func (s *orderService) GetOrder(ctx context.Context, cred domain.Credential, orderID int64) (*domain.Order, error) {
	ctx = ensureRequestID(ctx)

	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	order, err := s.ownedOrder(ctx, cred, orderID)
	if err != nil {
		return nil, s.fail(ctx, span, opGetOrder, err, audit.Entry{})
	}

	return order, nil
}

// CorrectOriginalRequest replaces the stored request snapshot of an order. It
// is the only operation that changes originalRequestJson.
func (s *orderService) CorrectOriginalRequest(ctx context.Context, cred domain.Credential, orderID int64, raw json.RawMessage) error {
	ctx = ensureRequestID(ctx)

	ctx, span := s.tracer.Start(ctx, "OrderService.CorrectOriginalRequest")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	if !json.Valid(raw) {
		return s.fail(ctx, span, opCorrectOriginal, domain.NewError(domain.KindInvalidRequest, "original request must be valid JSON", nil), audit.Entry{})
	}

	if _, err := s.ownedOrder(ctx, cred, orderID); err != nil {
		return s.fail(ctx, span, opCorrectOriginal, err, audit.Entry{})
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return s.orders.UpdateOriginalRequest(ctx, tx, orderID, string(raw))
	})
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return s.fail(ctx, span, opCorrectOriginal, orderNotFound(orderID), audit.Entry{})
		}

		return s.fail(ctx, span, opCorrectOriginal, domain.NewError(domain.KindPersistenceFailure, "failed to update order", err), audit.Entry{})
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Original request corrected",
		zap.Int64("order_id", orderID),
	)

	return nil
}

func (s *orderService) ownedOrder(ctx context.Context, cred domain.Credential, orderID int64) (*domain.Order, error) {
	identity, err := s.resolveIdentity(ctx, cred)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, orderNotFound(orderID)
		}

		return nil, domain.NewError(domain.KindPersistenceFailure, "failed to load order", err)
	}

	// Someone else's order is reported as missing.
	if order.UserID != identity.ID {
		return nil, orderNotFound(orderID)
	}

	return order, nil
}

func (s *orderService) resolveIdentity(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	if cred.Email == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "credential has no subject", nil)
	}

	identity, err := s.identity.FindByEmail(ctx, cred.Email)
	if err != nil {
		return nil, identityError(ctx, err)
	}

	return identity, nil
}

func (s *orderService) persist(ctx context.Context, order *domain.Order) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.orders.CreateOrder(ctx, tx, order); err != nil {
			return err
		}

		event, err := outboxDomain.NewEvent(
			"Order",
			strconv.FormatInt(order.ID, 10),
			EventOrderCreated,
			s.orderTopic,
			domain.NewOrderCreatedEvent(order),
		)
		if err != nil {
			return fmt.Errorf("failed to build outbox event: %w", err)
		}

		return s.outbox.SaveOutboxEvent(ctx, tx, event)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrDuplicateRequest) {
		return domain.NewError(domain.KindDuplicateRequest, "request id already used by another order", err)
	}

	return domain.NewError(domain.KindPersistenceFailure, "failed to persist order", err)
}

// ensureUnusedRequestID rejects a request id that already produced an order
// before any stock is touched. The unique index still catches concurrent
// duplicates at insert time.
func (s *orderService) ensureUnusedRequestID(ctx context.Context) error {
	requestID := mylogger.RequestID(ctx)

	exists, err := s.orders.ExistsByRequestID(ctx, requestID)
	if err != nil {
		return domain.NewError(domain.KindPersistenceFailure, "failed to check request id", err)
	}
	if exists {
		return domain.NewError(domain.KindDuplicateRequest, fmt.Sprintf("request id %s already used by another order", requestID), nil)
	}

	return nil
}

func (s *orderService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(shutdownCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				shutdownCtx,
				s.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// fail stamps err with the request id, records it and returns it. An audit
// entry is written only when stock was already decremented.
func (s *orderService) fail(ctx context.Context, span trace.Span, operation string, err error, entry audit.Entry) error {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		domainErr = domain.NewError(domain.KindPersistenceFailure, "unexpected failure", err)
	}
	domainErr.RequestID = mylogger.RequestID(ctx)

	span.RecordError(domainErr)
	span.SetStatus(codes.Error, string(domainErr.Kind))
	s.metrics.OrderFailed(operation, string(domainErr.Kind))

	log := mylogger.Warn
	if domainErr.Kind == domain.KindPersistenceFailure || domainErr.Kind == domain.KindProtocolViolation {
		log = mylogger.Error
	}

	log(
		ctx,
		s.logger,
		"Order operation failed",
		zap.String("operation", operation),
		zap.String("kind", string(domainErr.Kind)),
		zap.Bool("retryable", domainErr.Retryable()),
		zap.Int("decrements_applied", len(entry.Decrements)),
		zap.Error(domainErr),
	)

	if len(entry.Decrements) > 0 {
		entry.ErrorKind = domainErr.Kind
		entry.Detail = domainErr.Error()
		s.record(ctx, entry)
	}

	return domainErr
}

func (s *orderService) record(ctx context.Context, entry audit.Entry) {
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to write audit entry",
			zap.String("outcome", string(entry.Outcome)),
			zap.Error(err),
		)
	}
}

func validateLines(lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return domain.NewError(domain.KindInvalidRequest, "order has no lines", nil)
	}

	for i, line := range lines {
		if line.ProductID <= 0 {
			return domain.NewError(domain.KindInvalidRequest, fmt.Sprintf("line %d: product id must be positive", i), nil)
		}
		if line.Quantity <= 0 {
			return domain.NewError(domain.KindInvalidRequest, fmt.Sprintf("line %d: quantity must be positive", i), nil)
		}
	}

	return nil
}

func originalRequestJSON(req domain.CreateOrderRequest) (string, error) {
	if len(req.OriginalRequest) > 0 {
		if !json.Valid(req.OriginalRequest) {
			return "", domain.NewError(domain.KindInvalidRequest, "original request is not valid JSON", nil)
		}

		return string(req.OriginalRequest), nil
	}

	raw, err := json.Marshal(req.Lines)
	if err != nil {
		return "", domain.NewError(domain.KindInvalidRequest, "failed to encode request", err)
	}

	return string(raw), nil
}

func ensureRequestID(ctx context.Context) context.Context {
	if mylogger.RequestID(ctx) != "" {
		return ctx
	}

	return mylogger.WithRequestID(ctx, uuid.NewString())
}

func orderNotFound(orderID int64) *domain.Error {
	return domain.NewError(domain.KindOrderNotFound, fmt.Sprintf("order %d not found", orderID), nil)
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated()              {}
func (noopMetrics) OrderFailed(string, string) {}
