package repository

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateRequest = errors.New("order with this request id already exists")
)
