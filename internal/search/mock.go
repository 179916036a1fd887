package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockProvider implements Provider for testing purposes. Safe for
// concurrent use so it can stand in for real providers under the
// research orchestrator's worker pool.
type MockProvider struct {
	mu      sync.Mutex
	name    string
	results []Result
	err     error
	failFor map[string]error // per-query errors keyed by substring match
	queries []string         // record of queries received, in order
}

// NewMockProvider creates a new mock search provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{
				URL:     "https://example.com/article1",
				Title:   "Example Article 1",
				Content: "This is a mock search result for testing purposes.",
				Domain:  "example.com",
				Source:  "Mock",
				Rank:    1,
			},
			{
				URL:     "https://test.org/article2",
				Title:   "Test Article 2",
				Content: "Another mock search result with different content.",
				Domain:  "test.org",
				Source:  "Mock",
				Rank:    2,
			},
			{
				URL:     "https://demo.net/article3",
				Title:   "Demo Article 3",
				Content: "Third mock result to simulate multiple search results.",
				Domain:  "demo.net",
				Source:  "Mock",
				Rank:    3,
			},
		},
	}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Search returns mock search results
func (m *MockProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)

	if m.err != nil {
		return nil, m.err
	}
	for substr, err := range m.failFor {
		if substr != "" && strings.Contains(query, substr) {
			return nil, err
		}
	}

	n := maxResults
	if n <= 0 || n > len(m.results) {
		n = len(m.results)
	}

	results := make([]Result, n)
	for i := 0; i < n; i++ {
		result := m.results[i]
		result.Title = fmt.Sprintf("%s (for query: %s)", result.Title, query)
		results[i] = result
	}

	return results, nil
}

// SetResults allows customization of mock results for testing
func (m *MockProvider) SetResults(results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// SetName allows customization of provider name for testing
func (m *MockProvider) SetName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
}

// SetError makes every search fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailQueriesContaining makes searches whose query contains substr fail with err.
func (m *MockProvider) FailQueriesContaining(substr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor == nil {
		m.failFor = make(map[string]error)
	}
	m.failFor[substr] = err
}

// RecordedQueries returns a copy of the queries received so far.
func (m *MockProvider) RecordedQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
