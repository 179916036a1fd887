// Package research orchestrates multi-competitor web research. Each
// competitor's query set runs through the configured search provider
// with bounded concurrency across competitors; individual query
// failures are recorded and skipped so one rate limit or provider
// hiccup never sinks the whole run.
package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rivalscope/internal/core"
	"rivalscope/internal/fetch"
	"rivalscope/internal/logger"
	"rivalscope/internal/queries"
	"rivalscope/internal/search"
)

const retryBackoff = 500 * time.Millisecond

// Orchestrator runs the research phase of an analysis.
type Orchestrator struct {
	provider        search.Provider
	fetcher         *fetch.Fetcher
	resultsPerQuery int
	retryAttempts   int
	concurrency     int
	fetchTopSources int
}

// Options tune orchestrator behavior. Zero values fall back to
// sensible defaults.
type Options struct {
	ResultsPerQuery int // Max results kept per query (default 5)
	RetryAttempts   int // Total attempts per query (default 2)
	Concurrency     int // Competitors researched in parallel (default 3)
	FetchTopSources int // Results per competitor to enrich with page content (0 disables)
}

// NewOrchestrator creates an orchestrator using the given search
// provider. fetcher may be nil to disable page content enrichment.
func NewOrchestrator(provider search.Provider, fetcher *fetch.Fetcher, opts Options) *Orchestrator {
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 5
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 2
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}

	return &Orchestrator{
		provider:        provider,
		fetcher:         fetcher,
		resultsPerQuery: opts.ResultsPerQuery,
		retryAttempts:   opts.RetryAttempts,
		concurrency:     opts.Concurrency,
		fetchTopSources: opts.FetchTopSources,
	}
}

// competitorOutcome carries one competitor's research back to the
// merging goroutine.
type competitorOutcome struct {
	competitor string
	results    []core.ResearchResult
	errors     []string
}

// ResearchAll researches every competitor and returns the merged,
// URL-deduplicated results plus any per-query error messages. A
// competitor whose queries all fail contributes zero results and its
// error messages; that is a valid outcome, not a failure.
func (o *Orchestrator) ResearchAll(ctx context.Context, competitors []string, category, focusArea string) ([]core.ResearchResult, []string) {
	log := logger.Get()

	var mu sync.Mutex
	outcomes := make(map[string]competitorOutcome, len(competitors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, competitor := range competitors {
		g.Go(func() error {
			outcome := o.researchCompetitor(gctx, competitor, category, focusArea)
			mu.Lock()
			outcomes[competitor] = outcome
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only propagates ctx cancellation.
	_ = g.Wait()

	// Merge in input order so output is stable regardless of which
	// goroutine finished first.
	var merged []core.ResearchResult
	var errorMessages []string
	seen := make(map[string]bool)
	for _, competitor := range competitors {
		outcome := outcomes[competitor]
		errorMessages = append(errorMessages, outcome.errors...)
		for _, result := range outcome.results {
			if seen[result.URL] {
				continue
			}
			seen[result.URL] = true
			merged = append(merged, result)
		}
	}

	log.Info("Research phase complete",
		"competitors", len(competitors),
		"results", len(merged),
		"query_errors", len(errorMessages))

	return merged, errorMessages
}

// researchCompetitor runs the full query set for one competitor.
func (o *Orchestrator) researchCompetitor(ctx context.Context, competitor, category, focusArea string) competitorOutcome {
	log := logger.Get()
	outcome := competitorOutcome{competitor: competitor}

	queryset := queries.BuildQueries(competitor, category, focusArea)
	seen := make(map[string]bool)

	for _, query := range queryset {
		if ctx.Err() != nil {
			outcome.errors = append(outcome.errors,
				fmt.Sprintf("research for %s canceled: %v", competitor, ctx.Err()))
			return outcome
		}

		results, err := o.searchWithRetry(ctx, query.Text)
		if err != nil {
			log.Warn("Query failed after retries",
				"competitor", competitor, "query", query.Text, "error", err)
			outcome.errors = append(outcome.errors,
				fmt.Sprintf("query %q for %s failed: %v", query.Text, competitor, err))
			continue
		}

		for _, result := range results {
			if result.URL == "" || seen[result.URL] {
				continue
			}
			seen[result.URL] = true
			outcome.results = append(outcome.results, core.ResearchResult{
				Competitor:  competitor,
				Query:       query.Text,
				Title:       result.Title,
				Content:     result.Content,
				URL:         result.URL,
				RetrievedAt: time.Now().UTC(),
			})
		}
	}

	if o.fetcher != nil && o.fetchTopSources > 0 && len(outcome.results) > 0 {
		outcome.results = o.fetcher.EnrichResults(ctx, outcome.results, o.fetchTopSources)
	}

	return outcome
}

// searchWithRetry executes a query, retrying transient failures with a
// linear backoff. Empty result sets are returned as-is, not retried.
func (o *Orchestrator) searchWithRetry(ctx context.Context, query string) ([]search.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		results, err := o.provider.Search(ctx, query, o.resultsPerQuery)
		if err == nil {
			if len(results) > o.resultsPerQuery {
				results = results[:o.resultsPerQuery]
			}
			return results, nil
		}
		lastErr = err

		if attempt < o.retryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
	}
	return nil, lastErr
}

// CompetitorsWithResults returns the distinct competitors present in
// the results, sorted for stable output.
func CompetitorsWithResults(results []core.ResearchResult) []string {
	seen := make(map[string]bool)
	var competitors []string
	for _, result := range results {
		name := strings.TrimSpace(result.Competitor)
		if name != "" && !seen[name] {
			seen[name] = true
			competitors = append(competitors, name)
		}
	}
	sort.Strings(competitors)
	return competitors
}
