package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusOrdered OrderStatus = "ORDERED"
)

type Order struct {
	ID                  int64       `db:"id" json:"id"`
	RequestID           string      `db:"request_id" json:"requestId"`
	UserID              int64       `db:"user_id" json:"userId"`
	UserEmail           string      `db:"user_email" json:"userEmail"`
	OriginalRequestJSON string      `db:"original_request_json" json:"originalRequestJson"`
	Status              OrderStatus `db:"status" json:"status"`
	Lines               []OrderLine `db:"lines" json:"lines"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type OrderLine struct {
	ID        int64 `db:"id" json:"-"`
	OrderID   int64 `db:"order_id" json:"-"`
	ProductID int64 `db:"product_id" json:"productId"`
	Quantity  int32 `db:"quantity" json:"quantity"`
}

type CreateOrderRequest struct {
	Lines []OrderLine
	// OriginalRequest is the inbound payload kept verbatim on the order.
	// When empty, the lines are serialized instead.
	OriginalRequest json.RawMessage
}

type EnrichedOrder struct {
	ID        int64          `json:"id"`
	UserEmail string         `json:"userEmail"`
	Status    OrderStatus    `json:"orderStatus"`
	Lines     []EnrichedLine `json:"orderDetails"`
	CreatedAt time.Time      `json:"createdAt"`
}

type EnrichedLine struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int32  `json:"count"`
}

// PlaceholderProductName is shown for products the catalog no longer knows.
func PlaceholderProductName(productID int64) string {
	return fmt.Sprintf("unknown product #%d", productID)
}

// Enrich renders the order for display, naming each line from names.
func (o *Order) Enrich(names map[int64]string) EnrichedOrder {
	lines := make([]EnrichedLine, 0, len(o.Lines))
	for _, line := range o.Lines {
		name, ok := names[line.ProductID]
		if !ok {
			name = PlaceholderProductName(line.ProductID)
		}

		lines = append(lines, EnrichedLine{
			ProductID:   line.ProductID,
			ProductName: name,
			Quantity:    line.Quantity,
		})
	}

	return EnrichedOrder{
		ID:        o.ID,
		UserEmail: o.UserEmail,
		Status:    o.Status,
		Lines:     lines,
		CreatedAt: o.CreatedAt,
	}
}

// DistinctProductIDs returns every product referenced by orders, in the order
// they first appear.
func DistinctProductIDs(orders []Order) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64

	for _, order := range orders {
		for _, line := range order.Lines {
			if _, ok := seen[line.ProductID]; ok {
				continue
			}
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	return ids
}
