// Package testutil provides testing utilities for the retail proxy.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockUpstream is a configurable mock of the upstream photo service.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount int
	pathCounts   map[string]int
}

// NewMockUpstream creates a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// defaultHandler serves a canned photo collection and canned single photos.
func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/photos" {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id": 1, "title": "accusamus"}, {"id": 2, "title": "reprehenderit"}]`)
		return
	}

	if rest, ok := strings.CutPrefix(r.URL.Path, "/photos/"); ok {
		if id, err := strconv.Atoi(rest); err == nil {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": %d, "title": "photo-%d"}`, id, id)
			return
		}
	}

	http.NotFound(w, r)
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// PhotosURL returns the mock collection URL, the router's base cache key.
func (m *MockUpstream) PhotosURL() string {
	return m.server.URL + "/photos"
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// RequestCount returns the total number of requests received.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsFor returns the number of requests received for one path.
func (m *MockUpstream) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}
