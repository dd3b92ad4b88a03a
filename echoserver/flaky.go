package echoserver

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// flakyKeyHeader selects the counter used by /flaky/{n}.
const flakyKeyHeader = "X-Flaky-Key"

// counter counts calls per key.
type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counts: make(map[string]int64)}
}

func (c *memoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

// redisCounter shares counts between server instances. Keys expire after
// an hour without calls.
type redisCounter struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newRedisCounter(client redis.UniversalClient) *redisCounter {
	return &redisCounter{client: client, prefix: "echoserver:flaky:", ttl: time.Hour}
}

func (c *redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	k := c.prefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
