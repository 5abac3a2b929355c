package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingGetter is a fake upstream that records every fetch.
type countingGetter struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error
}

func (g *countingGetter) Fetch(ctx context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.payload, nil
}

func (g *countingGetter) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestFetcher_MissThenHit(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	getter := &countingGetter{payload: []byte(`{"id": 42}`)}
	fetcher := NewFetcher(store, getter)

	ctx := context.Background()
	key := "https://example.test/photos/42"

	// First fetch misses and goes upstream
	data, err := fetcher.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(data, getter.payload) {
		t.Errorf("Fetch returned %q, want %q", data, getter.payload)
	}
	if getter.callCount() != 1 {
		t.Fatalf("Expected 1 upstream call, got %d", getter.callCount())
	}

	// Repeated fetches within the TTL window are served from cache
	for i := 0; i < 5; i++ {
		data, err := fetcher.Fetch(ctx, key)
		if err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
		if !bytes.Equal(data, getter.payload) {
			t.Errorf("Fetch %d returned %q, want %q", i, data, getter.payload)
		}
	}
	if getter.callCount() != 1 {
		t.Errorf("Expected upstream call count to stay 1, got %d", getter.callCount())
	}
}

func TestFetcher_UpstreamFailureNotCached(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	upstreamErr := errors.New("upstream unavailable")
	getter := &countingGetter{err: upstreamErr}
	fetcher := NewFetcher(store, getter)

	ctx := context.Background()

	_, err := fetcher.Fetch(ctx, "https://example.test/photos")
	if !errors.Is(err, upstreamErr) {
		t.Fatalf("Expected upstream error to propagate, got %v", err)
	}

	// Failure must not populate the cache: the next fetch goes upstream again
	getter.mu.Lock()
	getter.err = nil
	getter.payload = []byte("recovered")
	getter.mu.Unlock()

	data, err := fetcher.Fetch(ctx, "https://example.test/photos")
	if err != nil {
		t.Fatalf("Fetch after recovery failed: %v", err)
	}
	if string(data) != "recovered" {
		t.Errorf("Unexpected payload: %q", data)
	}
	if getter.callCount() != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", getter.callCount())
	}
}

func TestFetcher_ExpiredEntryRefetches(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	getter := &countingGetter{payload: []byte("v1")}
	fetcher := NewFetcher(store, getter)
	fetcher.SetTTL(50 * time.Millisecond)

	ctx := context.Background()
	key := "https://example.test/photos/7"

	if _, err := fetcher.Fetch(ctx, key); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := fetcher.Fetch(ctx, key); err != nil {
		t.Fatalf("Fetch after expiry failed: %v", err)
	}
	if getter.callCount() != 2 {
		t.Errorf("Expected 2 upstream calls across expiry, got %d", getter.callCount())
	}
}

func TestNewFetcher_Panics(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)

	t.Run("nil_store", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("NewFetcher should panic with nil store")
			}
		}()
		NewFetcher(nil, &countingGetter{})
	})

	t.Run("nil_upstream", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("NewFetcher should panic with nil upstream")
			}
		}()
		NewFetcher(store, nil)
	})
}
