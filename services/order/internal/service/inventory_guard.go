package service

import (
	"context"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/client"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InventoryGuard reserves stock for one order line with a fetch, a check and
// a decrement. The two catalog calls are not atomic: a concurrent writer may
// change the stock between them.
type InventoryGuard interface {
	Reserve(ctx context.Context, line domain.OrderLine) (domain.StockDecrement, error)
}

type inventoryGuard struct {
	catalog client.CatalogClient
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewInventoryGuard(catalog client.CatalogClient, logger *zap.Logger) InventoryGuard {
	return &inventoryGuard{
		catalog: catalog,
		logger:  logger,
		tracer:  otel.Tracer("inventory_guard"),
	}
}

// Reserve returns a *domain.Error on failure. The decrement is issued only
// when the fetched stock covers the line.
func (g *inventoryGuard) Reserve(ctx context.Context, line domain.OrderLine) (domain.StockDecrement, error) {
	ctx, span := g.tracer.Start(ctx, "InventoryGuard.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", line.ProductID),
		attribute.Int("quantity", int(line.Quantity)),
	)

	requested := int64(line.Quantity)

	if err := ctx.Err(); err != nil {
		return domain.StockDecrement{}, catalogError(ctx, err, line.ProductID)
	}

	product, err := g.catalog.FindProduct(ctx, line.ProductID)
	if err != nil {
		span.RecordError(err)
		return domain.StockDecrement{}, catalogError(ctx, err, line.ProductID)
	}

	if product.StockQuantity < requested {
		mylogger.Info(
			ctx,
			g.logger,
			"Insufficient stock",
			zap.Int64("product_id", line.ProductID),
			zap.Int64("stock", product.StockQuantity),
			zap.Int64("requested", requested),
		)

		return domain.StockDecrement{}, domain.InsufficientStock(line.ProductID, product.StockQuantity, requested)
	}

	if err := ctx.Err(); err != nil {
		return domain.StockDecrement{}, catalogError(ctx, err, line.ProductID)
	}

	after := product.StockQuantity - requested
	if err := g.catalog.UpdateStockQuantity(ctx, line.ProductID, after); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			g.logger,
			"Failed to decrement stock",
			zap.Int64("product_id", line.ProductID),
			zap.Error(err),
		)

		return domain.StockDecrement{}, catalogError(ctx, err, line.ProductID)
	}

	return domain.StockDecrement{
		ProductID: line.ProductID,
		Quantity:  requested,
		Before:    product.StockQuantity,
		After:     after,
	}, nil
}
