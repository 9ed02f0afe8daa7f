// Package idempotency remembers client supplied Idempotency-Key values so a
// retried order submission is not executed twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// Claim reports the state of a key after an attempt to take it.
type Claim struct {
	// Acquired is true when the caller now owns the key.
	Acquired bool
	// OrderID is set when a previous request with the same key already
	// completed.
	OrderID int64
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(scope, key string) string {
	return fmt.Sprintf("idem:order:%s:%s", scope, key)
}

// Claim takes key unless another request already holds or completed it.
func (s *Store) Claim(ctx context.Context, key string) (Claim, error) {
	ok, err := s.rdb.SetNX(ctx, key, pending, s.ttl).Result()
	if err != nil {
		return Claim{}, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if ok {
		return Claim{Acquired: true}, nil
	}

	value, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Released between SetNX and Get; let the client retry.
		return Claim{}, nil
	}
	if err != nil {
		return Claim{}, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	if value == pending {
		return Claim{}, nil
	}

	orderID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return Claim{}, fmt.Errorf("corrupt idempotency value %q: %w", value, err)
	}

	return Claim{OrderID: orderID}, nil
}

// Complete records the order created under key, keeping its expiry.
func (s *Store) Complete(ctx context.Context, key string, orderID int64) error {
	err := s.rdb.SetArgs(ctx, key, strconv.FormatInt(orderID, 10), redis.SetArgs{KeepTTL: true}).Err()
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	return nil
}

// Release frees key so the same request can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}

	return nil
}
