package storage

import "errors"

var (
	ErrNotFound     = errors.New("appointment not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
