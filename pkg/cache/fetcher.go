package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/retail-proxy/pkg/logging"
)

// DefaultTTL is the lifetime of entries written on a cache miss.
const DefaultTTL = 3600 * time.Second

// Getter is the single upstream capability the Fetcher needs on a miss.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher serves reads cache-aside: a hit is returned as stored, a miss is
// fetched upstream and written back with a TTL before being returned.
//
// There is no single-flight deduplication: concurrent misses for the same key
// may each call upstream. This duplication window is a known trade-off.
type Fetcher struct {
	store    *Store
	upstream Getter
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewFetcher creates a cache-aside fetcher over the given store and upstream.
func NewFetcher(store *Store, upstream Getter) *Fetcher {
	if store == nil {
		panic("store cannot be nil")
	}
	if upstream == nil {
		panic("upstream getter cannot be nil")
	}
	return &Fetcher{
		store:    store,
		upstream: upstream,
		ttl:      DefaultTTL,
		logger:   logging.NewLogger("cache-fetcher"),
	}
}

// SetTTL overrides the fill TTL (for testing).
func (f *Fetcher) SetTTL(ttl time.Duration) {
	f.ttl = ttl
}

// Fetch returns the payload for key, consulting the store first.
// A cache hit is authoritative until Redis expires it; no TTL refresh happens
// on reads. Upstream failures propagate unchanged and nothing is cached.
func (f *Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := f.store.Get(ctx, key)
	if err == nil {
		f.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Cache hit")
		return data, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}

	f.logger.Debug().Str("key", key).Msg("Cache miss, fetching upstream")

	data, err = f.upstream.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := f.store.Set(ctx, key, data, f.ttl); err != nil {
		return nil, fmt.Errorf("cache fill %q: %w", key, err)
	}

	CacheFills.Inc()
	f.logger.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Dur("ttl", f.ttl).
		Msg("Cached upstream payload")

	return data, nil
}
