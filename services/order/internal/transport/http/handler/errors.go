package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

// StatusClientClosedRequest is reported when the caller went away mid-request.
const StatusClientClosedRequest = 499

func mapErrorStatus(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return fiber.StatusBadRequest
	case domain.KindIdentityNotFound, domain.KindProductNotFound, domain.KindOrderNotFound:
		return fiber.StatusNotFound
	case domain.KindInsufficientStock, domain.KindDuplicateRequest:
		return fiber.StatusConflict
	case domain.KindRemoteRejected:
		return fiber.StatusUnprocessableEntity
	case domain.KindIdentityUnavailable, domain.KindCatalogUnavailable:
		return fiber.StatusServiceUnavailable
	case domain.KindProtocolViolation:
		return fiber.StatusBadGateway
	case domain.KindCanceled:
		return StatusClientClosedRequest
	default:
		return fiber.StatusInternalServerError
	}
}

type ErrorResponse struct {
	Kind      domain.Kind `json:"kind"`
	Detail    string      `json:"detail"`
	ProductID int64       `json:"productId,omitempty"`
	Retryable bool        `json:"retryable"`
	RequestID string      `json:"requestId,omitempty"`
}

func writeError(c *fiber.Ctx, err error) error {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Kind:   domain.KindPersistenceFailure,
			Detail: "internal error",
		})
	}

	if domainErr.Kind.Retryable() {
		c.Set(fiber.HeaderRetryAfter, "1")
	}

	return c.Status(mapErrorStatus(domainErr.Kind)).JSON(ErrorResponse{
		Kind:      domainErr.Kind,
		Detail:    domainErr.Detail,
		ProductID: domainErr.ProductID,
		Retryable: domainErr.Retryable(),
		RequestID: domainErr.RequestID,
	})
}
