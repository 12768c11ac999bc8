// Package redis caches recent candles and the latest quotes so UI-side
// consumers can read market state without touching the engine process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fxassist/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Candle lists are trimmed to ring size; quote keys expire on a quiet
	// feed instead of serving stale prices forever.
	candleListMaxLen = 512
	quoteTTL         = 30 * time.Minute

	breakerFailures = 5
	breakerCooldown = 10 * time.Second
)

// CacheConfig configures the Redis cache.
type CacheConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache writes candle rings and latest quotes to Redis. Writes go through
// a breaker so an unreachable server fails fast instead of stalling the
// quote loop on connect timeouts.
type Cache struct {
	client  *goredis.Client
	breaker *Breaker

	// OnWrite is called after each write with its latency (optional).
	OnWrite func(took time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates a Cache and pings the server.
func New(cfg CacheConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	c := &Cache{client: client, breaker: NewBreaker(breakerFailures, breakerCooldown)}
	c.breaker.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] breaker %s -> %s", from, to)
	}
	return c, nil
}

func candleKey(symbol model.Symbol, tf model.Timeframe) string {
	return "candles:" + string(symbol) + ":" + tf.Label()
}

func quoteKey(symbol model.Symbol) string {
	return "quote:" + string(symbol)
}

// Append pushes one finalized candle onto the series list, trimming to the
// ring size.
func (c *Cache) Append(ctx context.Context, symbol model.Symbol, tf model.Timeframe, candle model.Candle) error {
	data, err := json.Marshal(candle)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.breaker.Do(func() error {
		pipe := c.client.TxPipeline()
		key := candleKey(symbol, tf)
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, candleListMaxLen-1)
		_, err := pipe.Exec(ctx)
		return err
	})
	if c.OnWrite != nil {
		c.OnWrite(time.Since(start))
	}
	return err
}

// Load returns up to n most recent candles for (symbol, tf), oldest first.
func (c *Cache) Load(ctx context.Context, symbol model.Symbol, tf model.Timeframe, n int) ([]model.Candle, error) {
	vals, err := c.client.LRange(ctx, candleKey(symbol, tf), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Candle, 0, len(vals))
	// List is newest-first; walk backwards for oldest-first output.
	for i := len(vals) - 1; i >= 0; i-- {
		var candle model.Candle
		if err := json.Unmarshal([]byte(vals[i]), &candle); err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

// SetQuote caches the latest quote for a symbol.
func (c *Cache) SetQuote(ctx context.Context, q model.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.breaker.Do(func() error {
		return c.client.Set(ctx, quoteKey(q.Symbol), data, quoteTTL).Err()
	})
	if c.OnWrite != nil {
		c.OnWrite(time.Since(start))
	}
	return err
}

// Quote reads the cached latest quote, false when absent or expired.
func (c *Cache) Quote(ctx context.Context, symbol model.Symbol) (model.Quote, bool, error) {
	data, err := c.client.Get(ctx, quoteKey(symbol)).Bytes()
	if err == goredis.Nil {
		return model.Quote{}, false, nil
	}
	if err != nil {
		return model.Quote{}, false, err
	}
	var q model.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return model.Quote{}, false, err
	}
	return q, true, nil
}

// RunQuotes consumes a fan-out subscription and mirrors quotes into Redis.
// Blocks until ctx is cancelled or the channel closes.
func (c *Cache) RunQuotes(ctx context.Context, quotes <-chan model.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quotes:
			if !ok {
				return
			}
			if err := c.SetQuote(ctx, q); err != nil && err != ErrBreakerOpen {
				log.Printf("[redis] quote write error: %v", err)
			}
		}
	}
}

// Close releases the client.
func (c *Cache) Close() error { return c.client.Close() }
