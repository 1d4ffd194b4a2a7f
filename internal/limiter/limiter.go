// Package limiter bounds concurrent tool operations in process and,
// with Redis configured, rate limits clients across instances.
package limiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Limiter struct {
	rdb         *redis.Client
	perMinute   int
	maxInflight int
	now         func() time.Time

	mu  sync.Mutex
	sem map[string]chan struct{}
}

type Options struct {
	RedisURL      string
	MaxInflight   int
	RatePerMinute int
}

// New builds a limiter. Redis is contacted only when both RedisURL and
// RatePerMinute are set.
func New(opts Options) (*Limiter, error) {
	l := newLimiter(opts)
	if opts.RedisURL == "" || opts.RatePerMinute <= 0 {
		return l, nil
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	l.rdb = c
	return l, nil
}

func newLimiter(opts Options) *Limiter {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 2
	}
	return &Limiter{
		perMinute:   opts.RatePerMinute,
		maxInflight: opts.MaxInflight,
		now:         time.Now,
		sem:         map[string]chan struct{}{},
	}
}

// Allow tries to reserve an in-process slot for tool.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (l *Limiter) Allow(tool string) (func(), bool) {
	key := strings.ToLower(tool)
	l.mu.Lock()
	ch, ok := l.sem[key]
	if !ok {
		ch = make(chan struct{}, l.maxInflight)
		l.sem[key] = ch
	}
	l.mu.Unlock()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, true
	default:
		return func() {}, false
	}
}

func (l *Limiter) rateKey(client string, t time.Time) string {
	return fmt.Sprintf("rl:%s:%d", strings.ToLower(client), t.Unix()/60)
}

// AllowClient counts a request for client in the current minute window and
// reports whether it is within the limit. Without Redis every request passes.
func (l *Limiter) AllowClient(ctx context.Context, client string) (bool, error) {
	if l.rdb == nil || l.perMinute <= 0 {
		return true, nil
	}
	k := l.rateKey(client, l.now())
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= int64(l.perMinute), nil
}

// Ping checks the Redis connection when one is configured.
func (l *Limiter) Ping(ctx context.Context) error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *Limiter) Close() error {
	if l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
