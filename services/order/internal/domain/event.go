package domain

type OrderCreatedEvent struct {
	OrderID   int64            `json:"order_id"`
	RequestID string           `json:"request_id"`
	UserID    int64            `json:"user_id"`
	UserEmail string           `json:"user_email"`
	Lines     []OrderEventLine `json:"lines"`
}

type OrderEventLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

func NewOrderCreatedEvent(order *Order) *OrderCreatedEvent {
	lines := make([]OrderEventLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderEventLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	return &OrderCreatedEvent{
		OrderID:   order.ID,
		RequestID: order.RequestID,
		UserID:    order.UserID,
		UserEmail: order.UserEmail,
		Lines:     lines,
	}
}
