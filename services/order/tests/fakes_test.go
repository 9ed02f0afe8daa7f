package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
)

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
}

type recordingProducer struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *recordingProducer) ProduceMessage(_ context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, publishedMessage{topic: topic, key: key, payload: payload})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) byTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []publishedMessage
	for _, m := range p.messages {
		if m.topic == topic {
			result = append(result, m)
		}
	}

	return result
}

type product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	StockQuantity int64  `json:"stockQuantity"`
}

// upstream plays both the identity and the catalog service.
type upstream struct {
	mu         sync.Mutex
	users      map[string]int64
	products   map[int64]*product
	batchCalls int
}

func newUpstream() *upstream {
	return &upstream{
		users:    map[string]int64{"alice@example.com": 1, "bob@example.com": 2},
		products: map[int64]*product{},
	}
}

func (u *upstream) setProduct(id int64, name string, stock int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.products[id] = &product{ID: id, Name: name, StockQuantity: stock}
}

func (u *upstream) deleteProduct(id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.products, id)
}

func (u *upstream) stock(id int64) int64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.products[id].StockQuantity
}

func (u *upstream) batches() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.batchCalls
}

func respond(w http.ResponseWriter, code int, message string, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode":    code,
		"statusMessage": message,
		"result":        result,
	})
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /user/findByEmail", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		id, ok := u.users[r.URL.Query().Get("email")]
		u.mu.Unlock()

		if !ok {
			respond(w, http.StatusNotFound, "user not found", nil)
			return
		}
		respond(w, http.StatusOK, "ok", map[string]any{"id": id, "email": r.URL.Query().Get("email"), "role": "USER"})
	})

	mux.HandleFunc("GET /product/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

		u.mu.Lock()
		p, ok := u.products[id]
		var snapshot product
		if ok {
			snapshot = *p
		}
		u.mu.Unlock()

		if !ok {
			respond(w, http.StatusNotFound, "product not found", nil)
			return
		}
		respond(w, http.StatusOK, "ok", snapshot)
	})

	mux.HandleFunc("POST /product/products", func(w http.ResponseWriter, r *http.Request) {
		var ids []int64
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			respond(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		u.mu.Lock()
		u.batchCalls++
		result := []product{}
		for _, id := range ids {
			if p, ok := u.products[id]; ok {
				result = append(result, *p)
			}
		}
		u.mu.Unlock()

		respond(w, http.StatusOK, "ok", result)
	})

	mux.HandleFunc("PUT /product/updateQuantity", func(w http.ResponseWriter, r *http.Request) {
		var body product
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		u.mu.Lock()
		defer u.mu.Unlock()

		p, ok := u.products[body.ID]
		if !ok {
			respond(w, http.StatusNotFound, "product not found", nil)
			return
		}
		p.StockQuantity = body.StockQuantity
		respond(w, http.StatusOK, "updated", nil)
	})

	return mux
}
