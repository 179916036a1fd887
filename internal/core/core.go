package core

import "time"

// Category is a fixed opportunity category bucket.
type Category string

const (
	CategoryProduct Category = "product"
	CategoryBrand   Category = "brand"
	CategoryPricing Category = "pricing"
	CategoryMarket  Category = "market"
)

// Categories returns all opportunity categories in business priority order
// (product > market > brand > pricing). The order is used for tie-breaking
// when selecting top opportunities.
func Categories() []Category {
	return []Category{CategoryProduct, CategoryMarket, CategoryBrand, CategoryPricing}
}

// IsValidCategory reports whether s is one of the four fixed categories.
func IsValidCategory(s string) bool {
	switch Category(s) {
	case CategoryProduct, CategoryBrand, CategoryPricing, CategoryMarket:
		return true
	}
	return false
}

// Ordinal is a coarse low/medium/high rating used for difficulty,
// investment and risk fields.
type Ordinal string

const (
	OrdinalLow    Ordinal = "low"
	OrdinalMedium Ordinal = "medium"
	OrdinalHigh   Ordinal = "high"
)

// IsValidOrdinal reports whether s is a recognized ordinal rating.
func IsValidOrdinal(s string) bool {
	switch Ordinal(s) {
	case OrdinalLow, OrdinalMedium, OrdinalHigh:
		return true
	}
	return false
}

// CredibilityTier classifies how trustworthy a source domain is.
type CredibilityTier string

const (
	TierHigh    CredibilityTier = "high"
	TierMedium  CredibilityTier = "medium"
	TierLow     CredibilityTier = "low"
	TierUnknown CredibilityTier = "unknown"
)

// MatrixBucket is a 2D impact-vs-difficulty classification.
type MatrixBucket string

const (
	BucketQuickWin            MatrixBucket = "quick_win"
	BucketStrategicInvestment MatrixBucket = "strategic_investment"
	BucketFillIn              MatrixBucket = "fill_in"
	BucketAvoid               MatrixBucket = "avoid"
)

// MatrixBuckets returns all matrix buckets in display order.
func MatrixBuckets() []MatrixBucket {
	return []MatrixBucket{BucketQuickWin, BucketStrategicInvestment, BucketFillIn, BucketAvoid}
}

// ResearchResult is one raw search hit collected for a competitor.
type ResearchResult struct {
	Competitor  string    `json:"competitor"`   // Competitor the query was about
	Query       string    `json:"query"`        // Search query that produced this result
	Title       string    `json:"title"`        // Result title
	Content     string    `json:"content"`      // Snippet or fetched page content
	URL         string    `json:"url"`          // Source URL (dedup key)
	RetrievedAt time.Time `json:"retrieved_at"` // When the result was retrieved
}

// SourceCitation is a credibility-scored view of a research result.
// Immutable once created; many opportunities may reference the same citation.
type SourceCitation struct {
	URL              string          `json:"url"`
	Domain           string          `json:"domain"`
	Title            string          `json:"title"`
	ContentSnippet   string          `json:"content_snippet"`
	CredibilityTier  CredibilityTier `json:"credibility_tier"`
	CredibilityScore float64         `json:"credibility_score"` // 0-10 composite
	RelevanceScore   float64         `json:"relevance_score"`   // 0-1 query/content overlap
	RetrievedAt      time.Time       `json:"retrieved_at"`
}

// StrategicOpportunity is a generated, scored strategic recommendation.
// Content is immutable after extraction; only the ranker annotates
// Bucket and Rank.
type StrategicOpportunity struct {
	ID                       string    `json:"id"`
	Title                    string    `json:"title"`
	Description              string    `json:"description"`
	Category                 Category  `json:"category"`
	OpportunityScore         float64   `json:"opportunity_score"` // 0-10
	ImplementationDifficulty Ordinal   `json:"implementation_difficulty"`
	InvestmentLevel          Ordinal   `json:"investment_level"`
	CompetitiveRisk          Ordinal   `json:"competitive_risk"`
	TimeToMarket             string    `json:"time_to_market"`
	EvidenceSources          []string  `json:"evidence_sources"` // URLs present in RawResearchResults
	TemplateDerived          bool      `json:"template_derived"` // Built from a fallback template, not evidence
	NextSteps                []string  `json:"next_steps"`
	GeneratedAt              time.Time `json:"generated_at"`

	// Annotations added by the ranker.
	Bucket MatrixBucket `json:"bucket,omitempty"`
	Rank   int          `json:"rank,omitempty"` // 1-based rank within its category
}

// CompetitorProfile is a per-competitor rollup derived during ranking.
type CompetitorProfile struct {
	Competitor     string   `json:"competitor"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	MarketPosition string   `json:"market_position"`
	PricingPosture string   `json:"pricing_posture"`
	SourceCount    int      `json:"source_count"` // Research results collected for this competitor
}

// ExecutiveSummary is the terminal synthesis of an analysis run.
// Created exactly once; never mutated afterwards.
type ExecutiveSummary struct {
	KeyInsight               string   `json:"key_insight"`
	TopOpportunities         []string `json:"top_opportunities"` // Titles, at most 3
	RevenuePotential         string   `json:"revenue_potential"`
	MarketShareOpportunity   string   `json:"market_share_opportunity"`
	StrategicRecommendations []string `json:"strategic_recommendations"`
	Narrative                string   `json:"narrative"` // LLM-generated narrative, placeholder on fallback
}

// PipelineState is the single mutable container threaded through every
// pipeline stage. Each stage owns writing exactly one progressive field
// and must not mutate fields owned by earlier stages.
type PipelineState struct {
	Competitors    []string `json:"competitors"` // Unique, order-preserving user input
	FocusArea      string   `json:"focus_area"`
	ClientName     string   `json:"client_name,omitempty"`
	DeviceCategory string   `json:"device_category"` // Write-once, set by the classifier

	RawResearchResults []ResearchResult `json:"raw_research_results"` // Append-only

	OpportunityCandidates    []StrategicOpportunity              `json:"opportunity_candidates"`
	CategorizedOpportunities map[Category][]StrategicOpportunity `json:"categorized_opportunities"`
	CompetitorProfiles       []CompetitorProfile                 `json:"competitor_profiles"`
	ExecutiveSummary         *ExecutiveSummary                   `json:"executive_summary"`

	ErrorMessages []string `json:"error_messages"` // Append-only, never cleared

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// AddError appends a non-fatal failure note to the state.
func (s *PipelineState) AddError(msg string) {
	s.ErrorMessages = append(s.ErrorMessages, msg)
}

// ResultsFor returns the research results collected for one competitor.
func (s *PipelineState) ResultsFor(competitor string) []ResearchResult {
	var results []ResearchResult
	for _, r := range s.RawResearchResults {
		if r.Competitor == competitor {
			results = append(results, r)
		}
	}
	return results
}

// HasResearchURL reports whether a URL exists in the accumulated
// research results. Used to enforce evidence traceability.
func (s *PipelineState) HasResearchURL(url string) bool {
	for _, r := range s.RawResearchResults {
		if r.URL == url {
			return true
		}
	}
	return false
}

// ReportMetadata describes how and when a report was produced.
type ReportMetadata struct {
	Competitors    []string      `json:"competitors"`
	FocusArea      string        `json:"focus_area"`
	ClientName     string        `json:"client_name,omitempty"`
	DeviceCategory string        `json:"device_category"`
	SourceCount    int           `json:"source_count"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Duration       time.Duration `json:"duration"`
	Errors         []string      `json:"errors,omitempty"`
	FromCache      bool          `json:"from_cache,omitempty"`
}

// Report is the JSON-serializable output of an analysis run.
type Report struct {
	ID                       string                              `json:"id"`
	TopOpportunities         []StrategicOpportunity              `json:"top_opportunities"`
	CategorizedOpportunities map[Category][]StrategicOpportunity `json:"categorized_opportunities"`
	OpportunityMatrix        map[MatrixBucket][]string           `json:"opportunity_matrix"` // bucket -> opportunity titles
	CompetitiveLandscape     []CompetitorProfile                 `json:"competitive_landscape"`
	ExecutiveSummary         *ExecutiveSummary                   `json:"executive_summary"`
	Metadata                 ReportMetadata                      `json:"metadata"`
}
