package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"rivalscope/internal/core"
	"rivalscope/internal/extract"
	"rivalscope/internal/llm"
	"rivalscope/internal/research"
	"rivalscope/internal/search"
	"rivalscope/internal/store"
	"rivalscope/internal/summary"
)

// fakeLLM returns a fixed opportunity payload for extraction prompts
// and plain text for everything else. Guarded by a mutex because
// category extraction fans out concurrently.
type fakeLLM struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if options.ResponseSchema != nil {
		// The evidence URL matches the mock search provider's first result.
		return `{"opportunities":[{
			"title": "Counter the recall window",
			"description": "Generated from evidence.",
			"opportunity_score": 7.0,
			"implementation_difficulty": "medium",
			"investment_level": "medium",
			"competitive_risk": "low",
			"time_to_market": "6-12 months",
			"evidence_sources": ["https://example.com/article1"],
			"next_steps": ["Brief the sales team"]
		}]}`, nil
	}
	return "Executive narrative for the analysis.", nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPipeline(t *testing.T, provider search.Provider, llmClient *fakeLLM, reportStore *store.Store, ttl time.Duration) *Pipeline {
	t.Helper()
	orchestrator := research.NewOrchestrator(provider, nil, research.Options{Concurrency: 2, RetryAttempts: 1})
	return New(orchestrator, extract.NewExtractor(llmClient), summary.NewSynthesizer(llmClient), reportStore, ttl)
}

func TestRunProducesCompleteReport(t *testing.T) {
	provider := search.NewMockProvider()
	llmClient := &fakeLLM{}
	p := newTestPipeline(t, provider, llmClient, nil, 0)

	result, err := p.Run(context.Background(), []string{"Medtronic", "Abbott"}, "stent", "Acme Client")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	report := result.Report
	if report == nil {
		t.Fatal("Expected a report")
	}
	if report.ID == "" {
		t.Error("Report should have an ID")
	}
	if result.State.DeviceCategory != "cardiovascular" {
		t.Errorf("Expected cardiovascular, got %s", result.State.DeviceCategory)
	}
	if len(report.TopOpportunities) == 0 || len(report.TopOpportunities) > 3 {
		t.Errorf("Expected 1-3 top opportunities, got %d", len(report.TopOpportunities))
	}
	if len(report.CategorizedOpportunities) != len(core.Categories()) {
		t.Errorf("Expected all %d categories present, got %d",
			len(core.Categories()), len(report.CategorizedOpportunities))
	}
	if len(report.OpportunityMatrix) != len(core.MatrixBuckets()) {
		t.Errorf("Expected all matrix buckets present, got %d", len(report.OpportunityMatrix))
	}
	if report.ExecutiveSummary == nil {
		t.Fatal("Expected an executive summary")
	}
	if report.Metadata.SourceCount == 0 {
		t.Error("Expected research sources in metadata")
	}
	if report.Metadata.ClientName != "Acme Client" {
		t.Errorf("Expected client name in metadata, got %s", report.Metadata.ClientName)
	}

	// Stage trail runs detect through synthesize.
	if len(result.Stages) != 7 {
		t.Errorf("Expected 7 stage records, got %d", len(result.Stages))
	}
	if result.Stages[0].Stage != StageDetectCategory {
		t.Errorf("Expected first stage detect_category, got %s", result.Stages[0].Stage)
	}
	if result.Stages[len(result.Stages)-1].Stage != StageSynthesizeReport {
		t.Errorf("Expected last stage synthesize_report, got %s", result.Stages[len(result.Stages)-1].Stage)
	}
}

func TestRunEmptyCompetitorList(t *testing.T) {
	p := newTestPipeline(t, search.NewMockProvider(), &fakeLLM{}, nil, 0)

	result, err := p.Run(context.Background(), []string{"", "  "}, "", "")
	if err == nil {
		t.Fatal("Expected error for empty competitor list")
	}
	if result.Report != nil {
		t.Error("No report should be produced for invalid input")
	}
	if result.State == nil || len(result.State.ErrorMessages) == 0 {
		t.Error("Partial state with error messages should be returned")
	}
}

func TestRunDeduplicatesCompetitors(t *testing.T) {
	p := newTestPipeline(t, search.NewMockProvider(), &fakeLLM{}, nil, 0)

	result, err := p.Run(context.Background(), []string{"Medtronic", " medtronic ", "Abbott"}, "", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.State.Competitors) != 2 {
		t.Errorf("Expected 2 unique competitors, got %v", result.State.Competitors)
	}
}

func TestRunSurvivesTotalSearchFailure(t *testing.T) {
	provider := search.NewMockProvider()
	provider.SetError(search.ErrProviderUnavailable)
	llmClient := &fakeLLM{}
	p := newTestPipeline(t, provider, llmClient, nil, 0)

	result, err := p.Run(context.Background(), []string{"Medtronic"}, "", "")
	if err != nil {
		t.Fatalf("Run should complete despite search failure: %v", err)
	}

	report := result.Report
	if report == nil {
		t.Fatal("Expected a degraded report, not a failure")
	}
	if report.Metadata.SourceCount != 0 {
		t.Errorf("Expected zero sources, got %d", report.Metadata.SourceCount)
	}
	if len(report.Metadata.Errors) == 0 {
		t.Error("Expected recorded research errors in metadata")
	}
	for _, opp := range report.TopOpportunities {
		if !opp.TemplateDerived {
			t.Errorf("Opportunity %q without evidence should be template-derived", opp.Title)
		}
	}
	// No evidence means the extraction LLM is never consulted; only the
	// narrative call happens.
	if llmClient.callCount() != 1 {
		t.Errorf("Expected 1 LLM call (narrative only), got %d", llmClient.callCount())
	}
}

func TestRunSurvivesLLMFailure(t *testing.T) {
	provider := search.NewMockProvider()
	llmClient := &fakeLLM{err: fmt.Errorf("model unavailable")}
	p := newTestPipeline(t, provider, llmClient, nil, 0)

	result, err := p.Run(context.Background(), []string{"Medtronic"}, "", "")
	if err != nil {
		t.Fatalf("Run should complete despite LLM failure: %v", err)
	}

	report := result.Report
	for _, opp := range report.TopOpportunities {
		if !opp.TemplateDerived {
			t.Errorf("Opportunity %q should be template-derived on LLM failure", opp.Title)
		}
	}
	if report.ExecutiveSummary.Narrative != summary.PlaceholderNarrative {
		t.Error("Expected placeholder narrative on LLM failure")
	}
}

func TestRunEvidenceTraceability(t *testing.T) {
	provider := search.NewMockProvider()
	p := newTestPipeline(t, provider, &fakeLLM{}, nil, 0)

	result, err := p.Run(context.Background(), []string{"Medtronic"}, "", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, group := range result.Report.CategorizedOpportunities {
		for _, opp := range group {
			for _, url := range opp.EvidenceSources {
				if !result.State.HasResearchURL(url) {
					t.Errorf("Evidence URL %s not present in raw research results", url)
				}
			}
		}
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, search.NewMockProvider(), &fakeLLM{}, nil, 0)
	result, err := p.Run(ctx, []string{"Medtronic"}, "", "")
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if result.Report != nil {
		t.Error("Canceled run should not produce a report")
	}
}

func TestRunUsesCache(t *testing.T) {
	reportStore, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer reportStore.Close()

	llmClient := &fakeLLM{}
	p := newTestPipeline(t, search.NewMockProvider(), llmClient, reportStore, time.Hour)

	first, err := p.Run(context.Background(), []string{"Medtronic", "Abbott"}, "stents", "")
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if first.Report.Metadata.FromCache {
		t.Error("First run should not come from cache")
	}

	callsAfterFirst := llmClient.callCount()

	// Same inputs in different order should hit the cache.
	second, err := p.Run(context.Background(), []string{"abbott", "Medtronic"}, "stents", "")
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if !second.Report.Metadata.FromCache {
		t.Error("Second run should come from cache")
	}
	if second.Report.ID != first.Report.ID {
		t.Error("Cached report should be the original report")
	}
	if llmClient.callCount() != callsAfterFirst {
		t.Errorf("Cache hit should not call the LLM, got %d extra calls", llmClient.callCount()-callsAfterFirst)
	}
}

func TestRunDeterministicStructure(t *testing.T) {
	// Two runs over identical inputs must agree on category, query
	// plan effects and opportunity categorization structure.
	runOnce := func() *Result {
		p := newTestPipeline(t, search.NewMockProvider(), &fakeLLM{}, nil, 0)
		result, err := p.Run(context.Background(), []string{"Dexcom", "Insulet"}, "glucose", "")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return result
	}

	a := runOnce()
	b := runOnce()

	if a.State.DeviceCategory != b.State.DeviceCategory {
		t.Errorf("Category differs between runs: %s vs %s", a.State.DeviceCategory, b.State.DeviceCategory)
	}
	if len(a.Report.TopOpportunities) != len(b.Report.TopOpportunities) {
		t.Error("Top opportunity count differs between runs")
	}
	for i := range a.Report.TopOpportunities {
		if a.Report.TopOpportunities[i].Title != b.Report.TopOpportunities[i].Title {
			t.Errorf("Top opportunity order differs at %d: %s vs %s",
				i, a.Report.TopOpportunities[i].Title, b.Report.TopOpportunities[i].Title)
		}
	}
}

func TestRunDeterministicOutput(t *testing.T) {
	// With the clock and ID generator pinned, two runs over identical
	// inputs must produce byte-identical reports.
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	runOnce := func() []byte {
		n := 0
		nextID := func() string { n++; return fmt.Sprintf("id-%03d", n) }

		llmClient := &fakeLLM{}
		orchestrator := research.NewOrchestrator(search.NewMockProvider(), nil,
			research.Options{Concurrency: 2, RetryAttempts: 1})
		extractor := extract.NewExtractor(llmClient).WithGenerators(nextID, clock)
		p := New(orchestrator, extractor, summary.NewSynthesizer(llmClient), nil, 0).
			WithGenerators(nextID, clock)

		result, err := p.Run(context.Background(), []string{"Dexcom", "Insulet"}, "glucose", "")
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		encoded, err := json.Marshal(result.Report)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		return encoded
	}

	a := runOnce()
	b := runOnce()
	if !bytes.Equal(a, b) {
		t.Errorf("Reports differ between runs:\n%s\n%s", a, b)
	}
}
