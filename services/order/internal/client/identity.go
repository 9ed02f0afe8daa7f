package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
	"github.com/sakashimaa/order-orchestrator/pkg/remote"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

const IdentityService = "identity"

type IdentityClient interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

type identityClient struct {
	remote  *remote.Client
	breaker *breaker.Breaker
}

func NewIdentityClient(rc *remote.Client, cb *breaker.Breaker) IdentityClient {
	return &identityClient{remote: rc, breaker: cb}
}

// FindByEmail resolves the user behind a credential. Errors are remote
// errors, breaker.ErrOpen or the context error; mapping them to domain
// errors is left to the caller.
func (c *identityClient) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	endpoint := remote.Endpoint{
		Name:   "FindByEmail",
		Method: http.MethodGet,
		Path:   "/user/findByEmail",
		Params: map[string]string{"email": email},
	}

	env, err := breaker.Run(ctx, c.breaker, func(ctx context.Context) (*remote.Envelope[userDTO], error) {
		return remote.Call[remote.NoBody, userDTO](ctx, c.remote, endpoint, remote.NoBody{})
	})
	if err != nil {
		return nil, err
	}

	if env.Result.ID == 0 {
		return nil, &remote.ProtocolError{
			Service:  IdentityService,
			Endpoint: endpoint.Name,
			Reason:   fmt.Sprintf("user for %q has no id", email),
		}
	}

	return env.Result.toDomain(), nil
}
