package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
	"github.com/sakashimaa/order-orchestrator/pkg/remote"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

const CatalogService = "catalog"

type CatalogClient interface {
	FindProduct(ctx context.Context, productID int64) (*domain.ProductSnapshot, error)
	// FindProducts fetches many products in one call. Unknown ids are simply
	// absent from the result.
	FindProducts(ctx context.Context, productIDs []int64) ([]domain.ProductSnapshot, error)
	UpdateStockQuantity(ctx context.Context, productID, stockQuantity int64) error
}

type catalogClient struct {
	remote  *remote.Client
	breaker *breaker.Breaker
}

func NewCatalogClient(rc *remote.Client, cb *breaker.Breaker) CatalogClient {
	return &catalogClient{remote: rc, breaker: cb}
}

func (c *catalogClient) FindProduct(ctx context.Context, productID int64) (*domain.ProductSnapshot, error) {
	endpoint := remote.Endpoint{
		Name:   "FindProduct",
		Method: http.MethodGet,
		Path:   "/product/{id}",
		Params: map[string]string{"id": strconv.FormatInt(productID, 10)},
	}

	env, err := breaker.Run(ctx, c.breaker, func(ctx context.Context) (*remote.Envelope[productDTO], error) {
		return remote.Call[remote.NoBody, productDTO](ctx, c.remote, endpoint, remote.NoBody{})
	})
	if err != nil {
		return nil, err
	}

	if env.Result.ID != productID {
		return nil, &remote.ProtocolError{
			Service:  CatalogService,
			Endpoint: endpoint.Name,
			Reason:   fmt.Sprintf("asked for product %d, got %d", productID, env.Result.ID),
		}
	}

	snapshot := env.Result.toDomain()
	return &snapshot, nil
}

func (c *catalogClient) FindProducts(ctx context.Context, productIDs []int64) ([]domain.ProductSnapshot, error) {
	endpoint := remote.Endpoint{
		Name:   "FindProducts",
		Method: http.MethodPost,
		Path:   "/product/products",
	}

	env, err := breaker.Run(ctx, c.breaker, func(ctx context.Context) (*remote.Envelope[[]productDTO], error) {
		return remote.Call[[]int64, []productDTO](ctx, c.remote, endpoint, productIDs)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.ProductSnapshot, 0, len(env.Result))
	for _, p := range env.Result {
		products = append(products, p.toDomain())
	}

	return products, nil
}

func (c *catalogClient) UpdateStockQuantity(ctx context.Context, productID, stockQuantity int64) error {
	endpoint := remote.Endpoint{
		Name:             "UpdateStockQuantity",
		Method:           http.MethodPut,
		Path:             "/product/updateQuantity",
		AllowEmptyResult: true,
	}

	body := updateQuantityDTO{ID: productID, StockQuantity: stockQuantity}

	_, err := breaker.Run(ctx, c.breaker, func(ctx context.Context) (*remote.Envelope[emptyResult], error) {
		return remote.Call[updateQuantityDTO, emptyResult](ctx, c.remote, endpoint, body)
	})

	return err
}
