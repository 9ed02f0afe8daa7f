package service

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/order-orchestrator/pkg/breaker"
	"github.com/sakashimaa/order-orchestrator/pkg/remote"
	outboxDomain "github.com/sakashimaa/order-orchestrator/pkg/outbox/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/audit"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/domain"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/repository"
)

type fakeIdentity struct {
	users map[string]domain.Identity
	err   error
	calls int
}

func (f *fakeIdentity) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	user, ok := f.users[email]
	if !ok {
		return nil, &remote.StatusError{Service: "identity", Endpoint: "FindByEmail", Code: 404, Message: "user not found"}
	}

	return &user, nil
}

type catalogCall struct {
	op        string
	productID int64
	quantity  int64
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.ProductSnapshot
	calls    []catalogCall
	batches  [][]int64
	// failUpdate makes UpdateStockQuantity fail for this product.
	failUpdate map[int64]error
	findErr    error
	batchErr   error
	// afterFind runs after each successful FindProduct.
	afterFind func()
}

func newFakeCatalog(products ...domain.ProductSnapshot) *fakeCatalog {
	c := &fakeCatalog{products: make(map[int64]*domain.ProductSnapshot), failUpdate: make(map[int64]error)}
	for i := range products {
		p := products[i]
		c.products[p.ID] = &p
	}

	return c
}

func (c *fakeCatalog) FindProduct(_ context.Context, productID int64) (*domain.ProductSnapshot, error) {
	c.mu.Lock()
	c.calls = append(c.calls, catalogCall{op: "find", productID: productID})
	if c.findErr != nil {
		c.mu.Unlock()
		return nil, c.findErr
	}

	p, ok := c.products[productID]
	if !ok {
		c.mu.Unlock()
		return nil, &remote.StatusError{Service: "catalog", Endpoint: "FindProduct", Code: 404, Message: "product not found"}
	}
	snapshot := *p
	afterFind := c.afterFind
	c.mu.Unlock()

	if afterFind != nil {
		afterFind()
	}

	return &snapshot, nil
}

func (c *fakeCatalog) FindProducts(_ context.Context, productIDs []int64) ([]domain.ProductSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.batches = append(c.batches, append([]int64(nil), productIDs...))
	if c.batchErr != nil {
		return nil, c.batchErr
	}

	var result []domain.ProductSnapshot
	for _, id := range productIDs {
		if p, ok := c.products[id]; ok {
			result = append(result, *p)
		}
	}

	return result, nil
}

func (c *fakeCatalog) UpdateStockQuantity(_ context.Context, productID, stockQuantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, catalogCall{op: "update", productID: productID, quantity: stockQuantity})
	if err := c.failUpdate[productID]; err != nil {
		return err
	}

	c.products[productID].StockQuantity = stockQuantity
	return nil
}

func (c *fakeCatalog) stock(productID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.products[productID].StockQuantity
}

func (c *fakeCatalog) callOps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ops := make([]string, 0, len(c.calls))
	for _, call := range c.calls {
		ops = append(ops, call.op)
	}

	return ops
}

type fakeTx struct {
	pgx.Tx
	db        *fakeDB
	committed bool
	closed    bool
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}
	if tx.db.commitErr != nil {
		tx.closed = true
		return tx.db.commitErr
	}

	tx.committed = true
	tx.closed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.closed {
		return pgx.ErrTxClosed
	}

	tx.closed = true
	return nil
}

type fakeDB struct {
	beginErr  error
	commitErr error
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}

	return &fakeTx{db: db}, nil
}

type storedOrder struct {
	order domain.Order
	tx    *fakeTx
}

type fakeOrders struct {
	mu        sync.Mutex
	nextID    int64
	orders    []storedOrder
	createErr error
	updateErr error
	existsErr error
}

func (r *fakeOrders) CreateOrder(_ context.Context, tx pgx.Tx, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}

	r.nextID++
	order.ID = r.nextID
	r.orders = append(r.orders, storedOrder{order: *order, tx: tx.(*fakeTx)})

	return nil
}

func (r *fakeOrders) committed() []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Order
	for _, s := range r.orders {
		if s.tx == nil || s.tx.committed {
			result = append(result, s.order)
		}
	}

	return result
}

func (r *fakeOrders) seed(order domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	r.orders = append(r.orders, storedOrder{order: order})
}

func (r *fakeOrders) FindAllByUserID(_ context.Context, userID int64) ([]domain.Order, error) {
	var result []domain.Order
	for _, o := range r.committed() {
		if o.UserID == userID {
			result = append(result, o)
		}
	}

	return result, nil
}

func (r *fakeOrders) FindByID(_ context.Context, orderID int64) (*domain.Order, error) {
	for _, o := range r.committed() {
		if o.ID == orderID {
			return &o, nil
		}
	}

	return nil, repository.ErrOrderNotFound
}

func (r *fakeOrders) ExistsByRequestID(_ context.Context, requestID string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}

	for _, o := range r.committed() {
		if o.RequestID == requestID {
			return true, nil
		}
	}

	return false, nil
}

func (r *fakeOrders) UpdateOriginalRequest(_ context.Context, _ pgx.Tx, orderID int64, originalRequestJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}

	for i := range r.orders {
		if r.orders[i].order.ID == orderID {
			r.orders[i].order.OriginalRequestJSON = originalRequestJSON
			return nil
		}
	}

	return repository.ErrOrderNotFound
}

type fakeOutbox struct {
	events []*outboxDomain.OutboxEvent
	err    error
}

func (o *fakeOutbox) SaveOutboxEvent(_ context.Context, _ pgx.Tx, event *outboxDomain.OutboxEvent) error {
	if o.err != nil {
		return o.err
	}

	o.events = append(o.events, event)
	return nil
}

type fakeAudit struct {
	entries []audit.Entry
}

func (a *fakeAudit) Record(_ context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type fakeMetrics struct {
	created  int
	failures map[string]int
}

func (m *fakeMetrics) OrderCreated() { m.created++ }

func (m *fakeMetrics) OrderFailed(operation, kind string) {
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[operation+"/"+kind]++
}

var (
	errBrokerDown  = errors.New("broker down")
	errOpenBreaker = breaker.ErrOpen
)
