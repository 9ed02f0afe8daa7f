package domain

// ProductSnapshot is catalog state as observed by one remote call. It is never
// persisted and must not be trusted after any later remote call.
type ProductSnapshot struct {
	ID            int64
	Name          string
	Category      string
	Price         int64
	StockQuantity int64
	ImagePath     string
}

// StockDecrement records one stock change applied to the catalog.
type StockDecrement struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Before    int64 `json:"before"`
	After     int64 `json:"after"`
}
