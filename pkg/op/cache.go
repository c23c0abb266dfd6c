package op

import (
	"context"
	"time"
)

// Cache is the Distributed Cache capability of spec.md §9: "any backend
// (in-memory, external kv) satisfies it." It stores short-lived binary
// blobs for authorization codes and continuation entries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Remove(ctx context.Context, key string) error
}
