package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	FindAllByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
	FindByID(ctx context.Context, orderID int64) (*domain.Order, error)
	ExistsByRequestID(ctx context.Context, requestID string) (bool, error)
	UpdateOriginalRequest(ctx context.Context, tx pgx.Tx, orderID int64, originalRequestJSON string) error
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

// CreateOrder inserts the order and its lines. Lines keep the position they
// were submitted in.
func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.String("request_id", order.RequestID),
		attribute.Int("lines_count", len(order.Lines)),
	)

	queryOrder := `
		INSERT INTO orders (request_id, user_id, user_email, original_request_json, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.RequestID,
		order.UserID,
		order.UserEmail,
		order.OriginalRequestJSON,
		string(order.Status),
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order with this request id already exists",
				zap.String("request_id", order.RequestID),
			)

			return ErrDuplicateRequest
		}

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, line := range order.Lines {
		batch.Queue(`
			INSERT INTO order_lines (order_id, position, product_id, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, order.ID, i, line.ProductID, line.Quantity).QueryRow(func(row pgx.Row) error {
			order.Lines[i].OrderID = order.ID
			return row.Scan(&order.Lines[i].ID)
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order lines",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order lines: %w", err)
	}

	return nil
}

// FindAllByUserID returns the user's orders oldest first, each with its
// lines in submission order.
func (r *orderRepo) FindAllByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindAllByUserID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		SELECT o.id, o.request_id, o.user_id, o.user_email, o.original_request_json, o.status,
		       o.created_at, o.updated_at, l.id, l.product_id, l.quantity
		FROM orders o
		LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.id ASC, l.position ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query orders",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to scan orders",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, err
	}

	span.SetAttributes(attribute.Int("orders_count", len(orders)))

	return orders, nil
}

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		SELECT o.id, o.request_id, o.user_id, o.user_email, o.original_request_json, o.status,
		       o.created_at, o.updated_at, l.id, l.product_id, l.quantity
		FROM orders o
		LEFT JOIN order_lines l ON l.order_id = o.id
		WHERE o.id = $1
		ORDER BY l.position ASC
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}

	return &orders[0], nil
}

func (r *orderRepo) ExistsByRequestID(ctx context.Context, requestID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ExistsByRequestID")
	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", requestID),
	)

	query := `SELECT EXISTS (SELECT 1 FROM orders WHERE request_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, requestID).Scan(&exists); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to look up request id",
			zap.String("request_id", requestID),
			zap.Error(err),
		)

		return false, fmt.Errorf("failed to look up request id: %w", err)
	}

	return exists, nil
}

func (r *orderRepo) UpdateOriginalRequest(ctx context.Context, tx pgx.Tx, orderID int64, originalRequestJSON string) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateOriginalRequest")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		UPDATE orders
		SET original_request_json = $1, updated_at = NOW()
		WHERE id = $2;
	`

	commandTag, err := tx.Exec(ctx, query, originalRequestJSON, orderID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Warn(
			ctx,
			r.logger,
			"Order not found",
			zap.Int64("order_id", orderID),
		)

		return ErrOrderNotFound
	}

	return nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			order     domain.Order
			status    string
			lineID    *int64
			productID *int64
			quantity  *int32
		)

		if err := rows.Scan(
			&order.ID,
			&order.RequestID,
			&order.UserID,
			&order.UserEmail,
			&order.OriginalRequestJSON,
			&status,
			&order.CreatedAt,
			&order.UpdatedAt,
			&lineID,
			&productID,
			&quantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		if n := len(orders); n == 0 || orders[n-1].ID != order.ID {
			order.Status = domain.OrderStatus(status)
			orders = append(orders, order)
		}

		if lineID != nil {
			last := &orders[len(orders)-1]
			last.Lines = append(last.Lines, domain.OrderLine{
				ID:        *lineID,
				OrderID:   order.ID,
				ProductID: *productID,
				Quantity:  *quantity,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
