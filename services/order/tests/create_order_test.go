package tests

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/order-orchestrator/pkg/outbox/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	s.Upstream.setProduct(10, "Keyboard", 5)
	s.Upstream.setProduct(20, "Mouse", 3)
	s.startOutbox()

	ctx := mylogger.WithRequestID(s.Ctx, "req-success")
	order, err := s.OrderService.CreateOrder(ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{
			{ProductID: 20, Quantity: 1},
			{ProductID: 10, Quantity: 2},
		},
		OriginalRequest: json.RawMessage(`[{"productId":20,"productQuantity":1},{"productId":10,"productQuantity":2}]`),
	})
	s.Require().NoError(err)
	s.Require().NotZero(order.ID)

	s.Equal(int64(3), s.Upstream.stock(10))
	s.Equal(int64(2), s.Upstream.stock(20))

	stored, err := s.OrderRepo.FindByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal("req-success", stored.RequestID)
	s.Equal(int64(1), stored.UserID)
	s.Equal("alice@example.com", stored.UserEmail)
	s.Equal(domain.OrderStatusOrdered, stored.Status)
	s.JSONEq(`[{"productId":20,"productQuantity":1},{"productId":10,"productQuantity":2}]`, stored.OriginalRequestJSON)
	s.Require().Len(stored.Lines, 2)
	s.Equal(int64(20), stored.Lines[0].ProductID)
	s.Equal(int64(10), stored.Lines[1].ProductID)

	var outboxID int64
	err = s.DbPool.QueryRow(s.Ctx, `SELECT id FROM outbox WHERE aggregate_id = $1`, strconv.FormatInt(order.ID, 10)).
		Scan(&outboxID)
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time
		err := s.DbPool.QueryRow(s.Ctx, `SELECT published_at FROM outbox WHERE id = $1`, outboxID).
			Scan(&publishedAt)
		return err == nil && publishedAt != nil
	}, 5*time.Second, 100*time.Millisecond, "outbox event was never published")

	published := s.Producer.byTopic(orderTopic)
	s.Require().Len(published, 1)
	s.Equal(strconv.FormatInt(order.ID, 10), published[0].key)

	var envelope outboxDomain.Envelope
	s.Require().NoError(json.Unmarshal(published[0].payload, &envelope))
	s.Equal("OrderCreated", envelope.EventType)

	var event domain.OrderCreatedEvent
	s.Require().NoError(json.Unmarshal(envelope.Payload, &event))
	s.Equal(order.ID, event.OrderID)
	s.Equal("req-success", event.RequestID)
	s.Len(event.Lines, 2)

	audits := s.Producer.byTopic(auditTopic)
	s.Require().Len(audits, 1)
	s.Equal("req-success", audits[0].key)
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStockKeepsEarlierDecrements() {
	s.Upstream.setProduct(10, "Keyboard", 5)
	s.Upstream.setProduct(20, "Mouse", 1)

	ctx := mylogger.WithRequestID(s.Ctx, "req-short")
	_, err := s.OrderService.CreateOrder(ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{
			{ProductID: 10, Quantity: 2},
			{ProductID: 20, Quantity: 4},
		},
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	var domainErr *domain.Error
	s.Require().ErrorAs(err, &domainErr)
	s.Equal(int64(20), domainErr.ProductID)
	s.False(domainErr.Retryable())

	s.Equal(int64(3), s.Upstream.stock(10), "earlier decrement is not rolled back")
	s.Equal(int64(1), s.Upstream.stock(20))
	s.Zero(s.countOrders())

	audits := s.Producer.byTopic(auditTopic)
	s.Require().Len(audits, 1)
	s.Contains(string(audits[0].payload), `"errorKind":"INSUFFICIENT_STOCK"`)
}

func (s *IntegrationTestSuite) TestCreateOrder_UnknownUser() {
	s.Upstream.setProduct(10, "Keyboard", 5)

	_, err := s.OrderService.CreateOrder(s.Ctx, domain.Credential{Email: "mallory@example.com"}, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{{ProductID: 10, Quantity: 1}},
	})
	s.Require().ErrorIs(err, domain.ErrIdentityNotFound)

	s.Equal(int64(5), s.Upstream.stock(10))
	s.Zero(s.countOrders())
	s.Empty(s.Producer.byTopic(auditTopic))
}

func (s *IntegrationTestSuite) TestCreateOrder_DuplicateRequestID() {
	s.Upstream.setProduct(10, "Keyboard", 5)

	ctx := mylogger.WithRequestID(s.Ctx, "req-dup")
	req := domain.CreateOrderRequest{Lines: []domain.OrderLine{{ProductID: 10, Quantity: 1}}}

	_, err := s.OrderService.CreateOrder(ctx, alice, req)
	s.Require().NoError(err)

	_, err = s.OrderService.CreateOrder(ctx, alice, req)
	s.Require().ErrorIs(err, domain.ErrDuplicateRequest)
	s.Equal(1, s.countOrders())
	s.Equal(int64(4), s.Upstream.stock(10), "rejected duplicate must not decrement again")
	s.Len(s.Producer.byTopic(auditTopic), 1, "only the first creation is audited")
}

func (s *IntegrationTestSuite) TestCorrectOriginalRequest() {
	s.Upstream.setProduct(10, "Keyboard", 5)

	order, err := s.OrderService.CreateOrder(s.Ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{{ProductID: 10, Quantity: 1}},
	})
	s.Require().NoError(err)

	err = s.OrderService.CorrectOriginalRequest(s.Ctx, alice, order.ID, json.RawMessage(`{"note":"fixed"}`))
	s.Require().NoError(err)

	stored, err := s.OrderRepo.FindByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.JSONEq(`{"note":"fixed"}`, stored.OriginalRequestJSON)

	bob := domain.Credential{Email: "bob@example.com"}
	err = s.OrderService.CorrectOriginalRequest(s.Ctx, bob, order.ID, json.RawMessage(`{}`))
	s.Require().ErrorIs(err, domain.ErrOrderNotFound)
}
