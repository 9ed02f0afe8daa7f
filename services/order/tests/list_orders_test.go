package tests

import (
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
)

func (s *IntegrationTestSuite) TestListOrdersForUser_InsertionOrderAndPlaceholder() {
	s.Upstream.setProduct(10, "Keyboard", 10)
	s.Upstream.setProduct(20, "Mouse", 10)
	s.Upstream.setProduct(30, "Monitor", 10)

	first, err := s.OrderService.CreateOrder(s.Ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{{ProductID: 30, Quantity: 1}, {ProductID: 10, Quantity: 2}},
	})
	s.Require().NoError(err)

	_, err = s.OrderService.CreateOrder(s.Ctx, domain.Credential{Email: "bob@example.com"}, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{{ProductID: 10, Quantity: 1}},
	})
	s.Require().NoError(err)

	second, err := s.OrderService.CreateOrder(s.Ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{{ProductID: 20, Quantity: 1}, {ProductID: 30, Quantity: 1}},
	})
	s.Require().NoError(err)

	s.Upstream.deleteProduct(20)
	batchesBefore := s.Upstream.batches()

	orders, err := s.OrderService.ListOrdersForUser(s.Ctx, alice)
	s.Require().NoError(err)
	s.Equal(1, s.Upstream.batches()-batchesBefore)

	s.Require().Len(orders, 2)
	s.Equal(first.ID, orders[0].ID)
	s.Equal(second.ID, orders[1].ID)

	s.Require().Len(orders[0].Lines, 2)
	s.Equal("Monitor", orders[0].Lines[0].ProductName)
	s.Equal("Keyboard", orders[0].Lines[1].ProductName)
	s.Equal(int32(2), orders[0].Lines[1].Quantity)

	s.Require().Len(orders[1].Lines, 2)
	s.Equal(domain.PlaceholderProductName(20), orders[1].Lines[0].ProductName)
	s.Equal("Monitor", orders[1].Lines[1].ProductName)
}

func (s *IntegrationTestSuite) TestListOrdersForUser_NoOrdersSkipsCatalog() {
	orders, err := s.OrderService.ListOrdersForUser(s.Ctx, alice)
	s.Require().NoError(err)
	s.Empty(orders)
	s.Zero(s.Upstream.batches())
}

func (s *IntegrationTestSuite) TestFindAllByUserID_PreservesLineOrder() {
	s.Upstream.setProduct(1, "A", 10)
	s.Upstream.setProduct(2, "B", 10)
	s.Upstream.setProduct(3, "C", 10)

	_, err := s.OrderService.CreateOrder(s.Ctx, alice, domain.CreateOrderRequest{
		Lines: []domain.OrderLine{
			{ProductID: 3, Quantity: 1},
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	s.Require().NoError(err)

	orders, err := s.OrderRepo.FindAllByUserID(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(orders, 1)

	var ids []int64
	for _, line := range orders[0].Lines {
		ids = append(ids, line.ProductID)
	}
	s.Equal([]int64{3, 1, 2}, ids)
}
