package ratelimit

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "runnerd:rl:"

// RedisLimiter shares fixed-window counters across processes. Each window is
// one key, incremented and given an expiry in a single transaction.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter connects to the Redis at addr and verifies it with PING.
func NewRedisLimiter(ctx context.Context, addr, prefix string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisLimiter{client: c, prefix: prefix, limit: limit, window: window, now: time.Now}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	start := l.now().Truncate(l.window)
	k := l.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decide(incr.Val(), l.limit, start.Add(l.window)), nil
}

func (l *RedisLimiter) Close() error { return l.client.Close() }

// parseRedisURL parses addr into UniversalOptions supporting single, cluster,
// and sentinel Redis deployments. If no scheme is present, addr is treated as
// a plain host:port string.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	opts := &redis.UniversalOptions{Addrs: strings.Split(u.Host, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	parseDB := func(s string) error {
		db, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("redis: invalid db: %v", err)
		}
		opts.DB = db
		return nil
	}
	switch u.Scheme {
	case "redis", "rediss":
		if p := strings.TrimPrefix(u.Path, "/"); p != "" {
			if err := parseDB(p); err != nil {
				return nil, err
			}
		} else if v := q.Get("db"); v != "" {
			if err := parseDB(v); err != nil {
				return nil, err
			}
		}
		if u.Scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if v := q.Get("db"); v != "" {
			if err := parseDB(v); err != nil {
				return nil, err
			}
		}
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
		if u.Scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}
	return opts, nil
}
