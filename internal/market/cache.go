package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BarFetcher is the subset of Client the cache wraps.
type BarFetcher interface {
	GetBars(ctx context.Context, ticker string, tf Timeframe, from, to time.Time) ([]Bar, error)
}

// CacheConfig holds Redis settings for the bar cache.
type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTLHours int    `json:"ttl_hours"`
}

// BarCache fronts a BarFetcher with Redis. Historical bars never change, so
// entries carry a long TTL. When Redis is unavailable the cache degrades
// gracefully and every read falls through to the fetcher.
type BarCache struct {
	fetcher BarFetcher
	client  *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewBarCache wraps fetcher with a Redis-backed cache. Connectivity is
// verified once; a dead Redis is logged and tolerated.
func NewBarCache(cfg CacheConfig, fetcher BarFetcher, log zerolog.Logger) *BarCache {
	bc := &BarCache{
		fetcher: fetcher,
		ttl:     time.Duration(cfg.TTLHours) * time.Hour,
		log:     log.With().Str("component", "BarCache").Logger(),
	}
	if bc.ttl <= 0 {
		bc.ttl = 72 * time.Hour
	}
	if !cfg.Enabled {
		return bc
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		bc.log.Warn().Err(err).Msg("redis unavailable, bar cache disabled")
		return bc
	}

	bc.client = client
	return bc
}

func cacheKey(ticker string, tf Timeframe, from, to time.Time) string {
	return fmt.Sprintf("bars:%s:%s:%d:%d", ticker, tf, from.UnixMilli(), to.UnixMilli())
}

// GetBars returns cached bars when present, otherwise fetches and stores.
func (bc *BarCache) GetBars(ctx context.Context, ticker string, tf Timeframe, from, to time.Time) ([]Bar, error) {
	key := cacheKey(ticker, tf, from, to)

	if bc.client != nil {
		raw, err := bc.client.Get(ctx, key).Bytes()
		if err == nil {
			var bars []Bar
			if err := json.Unmarshal(raw, &bars); err == nil {
				return bars, nil
			}
			// Corrupt entry: drop it and refetch.
			bc.client.Del(ctx, key)
		} else if err != redis.Nil {
			bc.log.Warn().Err(err).Str("key", key).Msg("redis read failed, falling back to fetch")
		}
	}

	bars, err := bc.fetcher.GetBars(ctx, ticker, tf, from, to)
	if err != nil {
		return nil, err
	}

	if bc.client != nil {
		if raw, err := json.Marshal(bars); err == nil {
			if err := bc.client.Set(ctx, key, raw, bc.ttl).Err(); err != nil {
				bc.log.Warn().Err(err).Str("key", key).Msg("redis write failed")
			}
		}
	}
	return bars, nil
}

// Close releases the Redis connection if one was established.
func (bc *BarCache) Close() error {
	if bc.client != nil {
		return bc.client.Close()
	}
	return nil
}
