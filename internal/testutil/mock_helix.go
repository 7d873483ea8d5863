// Package testutil provides testing utilities for the Helix client and
// the services built on top of it.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockHelix is a configurable mock Helix server for testing.
type MockHelix struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount   int
	PathCounts     map[string]int
	LastAuthHeader string
	LastClientID   string
}

// NewMockHelix creates a new mock Helix server.
func NewMockHelix() *MockHelix {
	mock := &MockHelix{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastAuthHeader = r.Header.Get("Authorization")
		mock.LastClientID = r.Header.Get("Client-ID")
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockHelix) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHelix) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockHelix) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastAuthHeader = ""
	m.LastClientID = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockHelix) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockHelix) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetData configures a path to return the given records in a standard
// data envelope with no cursor.
func (m *MockHelix) SetData(path string, records ...string) {
	m.SetResponse(path, DataResponse(records...))
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHelix) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to one path.
func (m *MockHelix) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// defaultHandler answers unconfigured paths with an empty data envelope.
func (m *MockHelix) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"data":[]}`))
}

// DataResponse creates a 200 response wrapping the given records in a
// data envelope with no cursor.
func DataResponse(records ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"data":[%s]}`, strings.Join(records, ",")),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// PagedResponse creates a 200 response carrying a pagination cursor.
func PagedResponse(cursor string, records ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"data":[%s],"pagination":{"cursor":%q}}`,
			strings.Join(records, ","), cursor),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Too Many Requests","status":429,"message":"rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal Server Error","status":500,"message":""}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// PagingHandler returns a handler that serves a fixed page sequence,
// selecting the page by the "after" query parameter. The first request
// (no cursor) gets pages[0]; a request with cursor c gets the page
// registered under c.
func PagingHandler(first MockResponse, byCursor map[string]MockResponse) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := first
		if after := r.URL.Query().Get("after"); after != "" {
			var ok bool
			resp, ok = byCursor[after]
			if !ok {
				resp = DataResponse()
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}
}
