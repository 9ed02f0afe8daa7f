package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
	"github.com/sakashimaa/order-orchestrator/pkg/remote"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

// classifyRemote turns an identity or catalog client error into an
// orchestration error. unavailable is the kind used when the dependency is
// down; notFound builds the error for a 404. Only the caller's own ctx makes
// a failure CANCELED: a per-call timeout inside the remote client is an
// unavailable dependency.
func classifyRemote(ctx context.Context, err error, unavailable domain.Kind, notFound func(error) *domain.Error) *domain.Error {
	var statusErr *remote.StatusError

	switch {
	case ctx.Err() != nil:
		return domain.NewError(domain.KindCanceled, "request canceled", err)
	case errors.Is(err, breaker.ErrOpen):
		return domain.NewError(unavailable, "dependency is unavailable, retry later", err)
	case remote.IsTransient(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.NewError(unavailable, "dependency failed, retry later", err)
	case remote.IsProtocol(err):
		return domain.NewError(domain.KindProtocolViolation, "malformed response from dependency", err)
	case remote.IsNotFound(err):
		return notFound(err)
	case errors.As(err, &statusErr):
		return domain.NewError(domain.KindRemoteRejected, statusErr.Message, err)
	default:
		return domain.NewError(domain.KindProtocolViolation, "unexpected dependency error", err)
	}
}

func identityError(ctx context.Context, err error) *domain.Error {
	return classifyRemote(ctx, err, domain.KindIdentityUnavailable, func(err error) *domain.Error {
		return domain.NewError(domain.KindIdentityNotFound, "no user for credential", err)
	})
}

func catalogError(ctx context.Context, err error, productID int64) *domain.Error {
	domainErr := classifyRemote(ctx, err, domain.KindCatalogUnavailable, func(err error) *domain.Error {
		return domain.ProductNotFound(productID, err)
	})
	if domainErr.ProductID == 0 {
		domainErr.ProductID = productID
	}

	return domainErr
}
