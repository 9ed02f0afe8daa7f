package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/order-orchestrator/pkg/idempotency"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"github.com/sakashimaa/order-orchestrator/pkg/utils"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/service"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/transport/http/middleware"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type IdempotencyStore interface {
	Key(scope, key string) string
	Claim(ctx context.Context, key string) (idempotency.Claim, error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

type lineRequest struct {
	ProductID       int64 `json:"productId" validate:"gt=0"`
	ProductQuantity int32 `json:"productQuantity" validate:"gt=0"`
}

type createOrderRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type OrderHandler struct {
	svc      service.OrderService
	idem     IdempotencyStore
	logger   *zap.Logger
	validate *validator.Validate
}

// NewOrderHandler builds the order endpoints. idem may be nil, in which case
// the Idempotency-Key header is ignored.
func NewOrderHandler(svc service.OrderService, idem IdempotencyStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		idem:     idem,
		logger:   logger,
		validate: validator.New(),
	}
}

// Create accepts either a bare array of lines or {"lines": [...]}.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cred, ok := middleware.Credential(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed credential"})
	}

	body := bytes.TrimSpace(c.Body())

	var input createOrderRequest
	var err error
	if bytes.HasPrefix(body, []byte("[")) {
		err = json.Unmarshal(body, &input.Lines)
	} else {
		err = json.Unmarshal(body, &input)
	}
	if err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"Failed to parse body in create",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	idemKey := ""
	if key := c.Get(HeaderIdempotencyKey); key != "" && h.idem != nil {
		idemKey = h.idem.Key(cred.Email, key)

		claim, err := h.idem.Claim(ctx, idemKey)
		switch {
		case err != nil:
			mylogger.Warn(
				ctx,
				h.logger,
				"Idempotency store unavailable, proceeding without it",
				zap.Error(err),
			)
			idemKey = ""
		case claim.OrderID != 0:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"kind":    domain.KindDuplicateRequest,
				"detail":  "request already processed",
				"orderId": claim.OrderID,
			})
		case !claim.Acquired:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"kind":   domain.KindDuplicateRequest,
				"detail": "request with this key is in progress",
			})
		}
	}

	req := domain.CreateOrderRequest{
		Lines:           make([]domain.OrderLine, 0, len(input.Lines)),
		OriginalRequest: json.RawMessage(append([]byte(nil), body...)),
	}
	for _, line := range input.Lines {
		req.Lines = append(req.Lines, domain.OrderLine{ProductID: line.ProductID, Quantity: line.ProductQuantity})
	}

	order, err := h.svc.CreateOrder(ctx, cred, req)
	if err != nil {
		// No order exists for this key, so a later attempt with it is a new try.
		if idemKey != "" {
			h.releaseKey(ctx, idemKey)
		}

		return writeError(c, err)
	}

	if idemKey != "" {
		if err := h.idem.Complete(context.WithoutCancel(ctx), idemKey, order.ID); err != nil {
			mylogger.Warn(ctx, h.logger, "Failed to complete idempotency key", zap.Error(err))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) ListMine(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed credential"})
	}

	orders, err := h.svc.ListOrdersForUser(c.UserContext(), cred)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(orders)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed credential"})
	}

	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := h.svc.GetOrder(c.UserContext(), cred, orderID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(order)
}

func (h *OrderHandler) CorrectOriginalRequest(c *fiber.Ctx) error {
	cred, ok := middleware.Credential(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed credential"})
	}

	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	raw := json.RawMessage(append([]byte(nil), c.Body()...))
	if err := h.svc.CorrectOriginalRequest(c.UserContext(), cred, orderID, raw); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *OrderHandler) releaseKey(ctx context.Context, key string) {
	if err := h.idem.Release(context.WithoutCancel(ctx), key); err != nil {
		mylogger.Warn(ctx, h.logger, "Failed to release idempotency key", zap.Error(err))
	}
}
