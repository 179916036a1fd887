package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"rivalscope/internal/core"
	"rivalscope/internal/llm"
)

// fakeLLM returns canned responses per call, in order. Guarded by a
// mutex because category extraction fans out concurrently.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCitations() []core.SourceCitation {
	return []core.SourceCitation{
		{
			URL:              "https://fda.gov/recall/medtronic-stent",
			Domain:           "fda.gov",
			Title:            "Medtronic stent recall",
			ContentSnippet:   "Class II recall of drug-eluting stents.",
			CredibilityTier:  core.TierHigh,
			CredibilityScore: 9.0,
			RetrievedAt:      time.Now().UTC(),
		},
		{
			URL:              "https://massdevice.com/abbott-pricing",
			Domain:           "massdevice.com",
			Title:            "Abbott pricing pressure",
			ContentSnippet:   "Hospitals push back on Abbott contract pricing.",
			CredibilityTier:  core.TierMedium,
			CredibilityScore: 6.0,
			RetrievedAt:      time.Now().UTC(),
		},
	}
}

func opportunityJSON(title, evidenceURL string) string {
	return fmt.Sprintf(`{"opportunities":[{
		"title": %q,
		"description": "A supported opportunity.",
		"opportunity_score": 7.5,
		"implementation_difficulty": "medium",
		"investment_level": "high",
		"competitive_risk": "low",
		"time_to_market": "6-12 months",
		"evidence_sources": [%q],
		"next_steps": ["Validate with clinicians"]
	}]}`, title, evidenceURL)
}

func TestBuildDigest(t *testing.T) {
	digest := BuildDigest(testCitations(), 0)

	if digest.Empty() {
		t.Fatal("Digest should not be empty")
	}
	if !digest.URLs["https://fda.gov/recall/medtronic-stent"] {
		t.Error("Digest missing citation URL")
	}
	if !strings.Contains(digest.Text, "Medtronic stent recall") {
		t.Error("Digest text missing citation title")
	}
	if !strings.Contains(digest.Text, "credibility: high") {
		t.Error("Digest text should carry credibility tier")
	}
}

func TestBuildDigestCapsSize(t *testing.T) {
	var citations []core.SourceCitation
	for i := 0; i < 30; i++ {
		citations = append(citations, core.SourceCitation{
			URL:   fmt.Sprintf("https://example.com/%d", i),
			Title: fmt.Sprintf("Source %d", i),
		})
	}

	digest := BuildDigest(citations, 5)
	if len(digest.Citations) != 5 {
		t.Errorf("Expected 5 citations in digest, got %d", len(digest.Citations))
	}
	if len(digest.URLs) != 5 {
		t.Errorf("Expected 5 URLs in digest, got %d", len(digest.URLs))
	}
}

func TestExtractAllCoversEveryCategory(t *testing.T) {
	fake := &fakeLLM{responses: []string{opportunityJSON("Opportunity", "https://fda.gov/recall/medtronic-stent")}}
	extractor := NewExtractor(fake)
	digest := BuildDigest(testCitations(), 0)

	opportunities := extractor.ExtractAll(context.Background(), digest, []string{"Medtronic", "Abbott"}, "")

	seen := make(map[core.Category]bool)
	for _, opp := range opportunities {
		seen[opp.Category] = true
	}
	for _, category := range core.Categories() {
		if !seen[category] {
			t.Errorf("No opportunity generated for category %s", category)
		}
	}
	for _, opp := range opportunities {
		if opp.ID == "" {
			t.Errorf("Opportunity %q should get an ID", opp.Title)
		}
		if opp.GeneratedAt.IsZero() {
			t.Errorf("Opportunity %q should get a timestamp", opp.Title)
		}
	}
}

func TestExtractAllWithGeneratorsIsReproducible(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	newRun := func() []core.StrategicOpportunity {
		fake := &fakeLLM{responses: []string{opportunityJSON("Opportunity", "https://fda.gov/recall/medtronic-stent")}}
		n := 0
		extractor := NewExtractor(fake).WithGenerators(
			func() string { n++; return fmt.Sprintf("op-%03d", n) },
			func() time.Time { return fixed },
		)
		return extractor.ExtractAll(context.Background(), BuildDigest(testCitations(), 0), []string{"Medtronic"}, "")
	}

	a := newRun()
	b := newRun()
	if len(a) != len(b) {
		t.Fatalf("Run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("ID differs at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
		if !a[i].GeneratedAt.Equal(fixed) {
			t.Errorf("Opportunity %d timestamp should come from the injected clock", i)
		}
	}
}

func TestExtractAllEmptyDigestUsesTemplates(t *testing.T) {
	fake := &fakeLLM{responses: []string{"should not be called"}}
	extractor := NewExtractor(fake)

	opportunities := extractor.ExtractAll(context.Background(), Digest{}, []string{"Medtronic"}, "cardiac rhythm")

	if fake.callCount() != 0 {
		t.Errorf("LLM should not be called with no evidence, got %d calls", fake.callCount())
	}
	if len(opportunities) != len(core.Categories()) {
		t.Fatalf("Expected one template per category, got %d", len(opportunities))
	}
	for _, opp := range opportunities {
		if !opp.TemplateDerived {
			t.Errorf("Opportunity %q should be flagged template-derived", opp.Title)
		}
		if len(opp.EvidenceSources) != 0 {
			t.Errorf("No-evidence template should cite nothing, got %v", opp.EvidenceSources)
		}
		if !strings.Contains(opp.Title, "cardiac rhythm") && !strings.Contains(opp.Description, "cardiac rhythm") {
			t.Errorf("Template should mention focus area: %q", opp.Title)
		}
	}
}

func TestExtractAllFallsBackOnLLMFailure(t *testing.T) {
	fake := &fakeLLM{err: errors.New("model unavailable")}
	extractor := NewExtractor(fake)
	digest := BuildDigest(testCitations(), 0)

	opportunities := extractor.ExtractAll(context.Background(), digest, []string{"Medtronic"}, "")

	if len(opportunities) != len(core.Categories()) {
		t.Fatalf("Expected one fallback per category, got %d", len(opportunities))
	}
	for _, opp := range opportunities {
		if !opp.TemplateDerived {
			t.Errorf("Fallback opportunity %q should be flagged template-derived", opp.Title)
		}
		if len(opp.EvidenceSources) == 0 {
			t.Error("Fallback with evidence available should cite top sources")
		}
	}

	// Each category gets a retry, so two calls per category.
	if fake.callCount() != 2*len(core.Categories()) {
		t.Errorf("Expected %d LLM calls, got %d", 2*len(core.Categories()), fake.callCount())
	}
}

func TestParseOpportunitiesStripsUnknownEvidence(t *testing.T) {
	extractor := NewExtractor(nil)
	digest := BuildDigest(testCitations(), 0)

	response := `{"opportunities":[{
		"title": "Exploit recall",
		"description": "Competitor recall opens a window.",
		"opportunity_score": 8.0,
		"implementation_difficulty": "low",
		"investment_level": "low",
		"competitive_risk": "medium",
		"evidence_sources": ["https://fda.gov/recall/medtronic-stent", "https://hallucinated.example.com/fake"]
	}]}`

	opportunities, err := extractor.parseOpportunities(response, core.CategoryProduct, digest)
	if err != nil {
		t.Fatalf("parseOpportunities failed: %v", err)
	}
	if len(opportunities) != 1 {
		t.Fatalf("Expected 1 opportunity, got %d", len(opportunities))
	}

	evidence := opportunities[0].EvidenceSources
	if len(evidence) != 1 || evidence[0] != "https://fda.gov/recall/medtronic-stent" {
		t.Errorf("Hallucinated URL should be stripped, got %v", evidence)
	}
	if opportunities[0].TemplateDerived {
		t.Error("Opportunity with surviving evidence should not be flagged template-derived")
	}
}

func TestParseOpportunitiesFlagsZeroEvidence(t *testing.T) {
	extractor := NewExtractor(nil)
	digest := BuildDigest(testCitations(), 0)

	response := `{"opportunities":[
		{"title": "Unsupported claim", "description": "Every citation is made up.",
		 "opportunity_score": 8.0, "implementation_difficulty": "low",
		 "investment_level": "low", "competitive_risk": "low",
		 "evidence_sources": ["https://hallucinated.example.com/fake"]},
		{"title": "No citations at all", "description": "The model cited nothing.",
		 "opportunity_score": 6.0, "implementation_difficulty": "medium",
		 "investment_level": "medium", "competitive_risk": "medium",
		 "evidence_sources": []}
	]}`

	opportunities, err := extractor.parseOpportunities(response, core.CategoryProduct, digest)
	if err != nil {
		t.Fatalf("parseOpportunities failed: %v", err)
	}
	if len(opportunities) != 2 {
		t.Fatalf("Expected 2 opportunities, got %d", len(opportunities))
	}
	for _, opp := range opportunities {
		if len(opp.EvidenceSources) != 0 {
			t.Errorf("Opportunity %q should have no surviving evidence, got %v", opp.Title, opp.EvidenceSources)
		}
		if !opp.TemplateDerived {
			t.Errorf("Opportunity %q with zero evidence must be flagged template-derived", opp.Title)
		}
	}
}

func TestParseOpportunitiesDropsInvalidEntries(t *testing.T) {
	extractor := NewExtractor(nil)
	digest := BuildDigest(testCitations(), 0)

	response := `{"opportunities":[
		{"title": "", "description": "no title", "opportunity_score": 5,
		 "implementation_difficulty": "low", "investment_level": "low", "competitive_risk": "low"},
		{"title": "Bad score", "description": "score out of range", "opportunity_score": 15,
		 "implementation_difficulty": "low", "investment_level": "low", "competitive_risk": "low"},
		{"title": "Bad ordinal", "description": "unknown difficulty", "opportunity_score": 5,
		 "implementation_difficulty": "impossible", "investment_level": "low", "competitive_risk": "low"},
		{"title": "Valid", "description": "keeps going", "opportunity_score": 6,
		 "implementation_difficulty": "medium", "investment_level": "medium", "competitive_risk": "medium"}
	]}`

	opportunities, err := extractor.parseOpportunities(response, core.CategoryMarket, digest)
	if err != nil {
		t.Fatalf("parseOpportunities failed: %v", err)
	}
	if len(opportunities) != 1 || opportunities[0].Title != "Valid" {
		t.Errorf("Expected only the valid entry to survive, got %v", opportunities)
	}
}

func TestParseOpportunitiesInvalidJSON(t *testing.T) {
	extractor := NewExtractor(nil)
	if _, err := extractor.parseOpportunities("not json at all", core.CategoryBrand, Digest{}); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestParseOpportunitiesHandlesCodeFences(t *testing.T) {
	extractor := NewExtractor(nil)
	digest := BuildDigest(testCitations(), 0)

	fenced := "```json\n" + opportunityJSON("Fenced", "https://fda.gov/recall/medtronic-stent") + "\n```"
	opportunities, err := extractor.parseOpportunities(fenced, core.CategoryPricing, digest)
	if err != nil {
		t.Fatalf("parseOpportunities failed on fenced JSON: %v", err)
	}
	if len(opportunities) != 1 {
		t.Errorf("Expected 1 opportunity from fenced JSON, got %d", len(opportunities))
	}
}

func TestExtractionPromptRestrictsEvidence(t *testing.T) {
	fake := &fakeLLM{responses: []string{`{"opportunities":[]}`}}
	extractor := NewExtractor(fake)
	digest := BuildDigest(testCitations(), 0)

	extractor.ExtractAll(context.Background(), digest, []string{"Medtronic"}, "stents")

	if len(fake.prompts) == 0 {
		t.Fatal("Expected LLM prompts")
	}
	prompt := fake.prompts[0]
	if !strings.Contains(prompt, "ONLY URLs copied exactly") {
		t.Error("Prompt should restrict evidence to digest URLs")
	}
	if !strings.Contains(prompt, "https://fda.gov/recall/medtronic-stent") {
		t.Error("Prompt should include digest evidence")
	}
	if !strings.Contains(prompt, "stents") {
		t.Error("Prompt should include focus area")
	}
}
