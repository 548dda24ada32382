package ports

import (
	"context"
	"time"
)

// Cache is a small key-value capability used for per-source bookkeeping
// (for example the last ingested content hash). Adapters may ignore ttl.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
