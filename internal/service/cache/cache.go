package cache

import (
	"context"
	"time"
)

// ResponseCache stores rendered HTTP payloads keyed by the request shape.
// Backends treat the payload as opaque bytes; a miss is (nil, false, nil).
type ResponseCache interface {
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
