// Package storage defines the local key/value store that sheets and backups live in
package storage

import (
	"context"
	"time"
)

// Entry is one stored value
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// KV stores opaque values by key
type KV interface {
	// Get returns the value for key or a NotFound error
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key or returns a NotFound error
	Delete(ctx context.Context, key string) error

	// List returns every entry whose key starts with prefix, ordered by key
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
}
