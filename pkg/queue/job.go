package queue

import (
	"context"
	"sync"
)

// Result carries one key's outcome from a Collect run.
type Result[V any] struct {
	Value V
	Err   error
}

// Collect fans fn out over keys on the pool and gathers a per-key
// result-or-error map. It joins before returning; a failure stays
// isolated to its key, so callers decide which errors abort and which
// degrade. If the pool is stopped mid-run, remaining tasks execute on
// the calling goroutine so no key is silently lost.
func Collect[K comparable, V any](ctx context.Context, p *Pool, keys []K, fn func(context.Context, K) (V, error)) map[K]Result[V] {
	results := make(map[K]Result[V], len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range keys {
		key := key
		if err := ctx.Err(); err != nil {
			mu.Lock()
			var zero V
			results[key] = Result[V]{Value: zero, Err: err}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		run := func() {
			defer wg.Done()
			value, err := fn(ctx, key)
			mu.Lock()
			results[key] = Result[V]{Value: value, Err: err}
			mu.Unlock()
		}
		if !p.Submit(ctx, run) {
			run()
		}
	}

	wg.Wait()
	return results
}
