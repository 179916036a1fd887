// Package extract turns credibility-scored research into strategic
// opportunities. The LLM sees only a bounded evidence digest built
// from the top-ranked citations, and every opportunity it returns is
// validated against that digest: evidence URLs the model did not
// actually see are stripped. When the model fails or returns nothing
// usable, deterministic template opportunities keep the pipeline
// moving, explicitly flagged as template-derived.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"rivalscope/internal/core"
	"rivalscope/internal/llm"
	"rivalscope/internal/logger"
)

// DefaultDigestSize is how many top citations feed the evidence digest.
const DefaultDigestSize = 12

// LLMClient is the text generation surface the extractor needs.
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Digest is the bounded evidence package shown to the LLM.
type Digest struct {
	Text      string          // Formatted evidence block for prompts
	URLs      map[string]bool // URLs present in the digest, for evidence validation
	Citations []core.SourceCitation
}

// Empty reports whether the digest carries no evidence.
func (d Digest) Empty() bool {
	return len(d.Citations) == 0
}

// BuildDigest selects the top citations (assumed pre-sorted by
// credibility) and formats them into an evidence block. topN caps the
// digest size; pass 0 for the default.
func BuildDigest(citations []core.SourceCitation, topN int) Digest {
	if topN <= 0 {
		topN = DefaultDigestSize
	}
	if len(citations) > topN {
		citations = citations[:topN]
	}

	urls := make(map[string]bool, len(citations))
	var sb strings.Builder
	for i, citation := range citations {
		urls[citation.URL] = true
		sb.WriteString(fmt.Sprintf("[%d] %s (%s, credibility: %s %.1f/10)\n",
			i+1, citation.Title, citation.URL, citation.CredibilityTier, citation.CredibilityScore))
		if citation.ContentSnippet != "" {
			sb.WriteString("    ")
			sb.WriteString(citation.ContentSnippet)
			sb.WriteString("\n")
		}
	}

	return Digest{
		Text:      sb.String(),
		URLs:      urls,
		Citations: citations,
	}
}

// Extractor generates strategic opportunities from an evidence digest.
type Extractor struct {
	llmClient LLMClient
	newID     func() string
	now       func() time.Time
}

// NewExtractor creates an extractor backed by the given LLM client.
func NewExtractor(llmClient LLMClient) *Extractor {
	return &Extractor{
		llmClient: llmClient,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithGenerators overrides ID and timestamp generation so output is
// reproducible for fixed inputs. Nil arguments keep the defaults.
func (e *Extractor) WithGenerators(newID func() string, now func() time.Time) *Extractor {
	if newID != nil {
		e.newID = newID
	}
	if now != nil {
		e.now = now
	}
	return e
}

// ExtractAll generates opportunities for every opportunity category.
// The per-category LLM calls run concurrently; categories where
// extraction fails fall back to template-derived opportunities, so the
// returned slice always covers the full category set in category
// order. An empty digest skips the LLM entirely. IDs and timestamps
// are assigned after the fan-out so they follow category order.
func (e *Extractor) ExtractAll(ctx context.Context, digest Digest, competitors []string, focusArea string) []core.StrategicOpportunity {
	log := logger.Get()

	categories := core.Categories()
	groups := make([][]core.StrategicOpportunity, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		if digest.Empty() || e.llmClient == nil {
			groups[i] = []core.StrategicOpportunity{e.fallbackOpportunity(category, digest, focusArea)}
			continue
		}

		g.Go(func() error {
			opportunities, err := e.extractCategory(gctx, digest, category, competitors, focusArea)
			if err != nil || len(opportunities) == 0 {
				if err != nil {
					log.Warn("Opportunity extraction failed, using template fallback",
						"category", category, "error", err)
				}
				groups[i] = []core.StrategicOpportunity{e.fallbackOpportunity(category, digest, focusArea)}
				return nil
			}
			groups[i] = opportunities
			return nil
		})
	}
	_ = g.Wait()

	var all []core.StrategicOpportunity
	for _, group := range groups {
		all = append(all, group...)
	}
	for i := range all {
		all[i].ID = e.newID()
		all[i].GeneratedAt = e.now()
	}
	return all
}

// extractCategory runs one LLM call for one opportunity category, with
// a single retry on failure.
func (e *Extractor) extractCategory(ctx context.Context, digest Digest, category core.Category, competitors []string, focusArea string) ([]core.StrategicOpportunity, error) {
	prompt := e.buildExtractionPrompt(digest, category, competitors, focusArea)
	schema := CreateOpportunitySchema()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		response, err := e.llmClient.GenerateText(ctx, prompt, llm.TextGenerationOptions{
			Temperature:    0.4,
			MaxTokens:      3000,
			ResponseSchema: schema,
		})
		if err != nil {
			lastErr = fmt.Errorf("failed to generate %s opportunities: %w", category, err)
			continue
		}

		opportunities, err := e.parseOpportunities(response, category, digest)
		if err != nil {
			lastErr = fmt.Errorf("failed to parse %s opportunities: %w", category, err)
			continue
		}
		return opportunities, nil
	}
	return nil, lastErr
}

// CreateOpportunitySchema creates the Gemini response schema for
// opportunity extraction. Structured output guarantees parseable JSON.
func CreateOpportunitySchema() *genai.Schema {
	ordinalSchema := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeString,
			Description: description,
			Enum:        []string{"low", "medium", "high"},
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"opportunities": {
				Type:        genai.TypeArray,
				Description: "Strategic opportunities supported by the evidence, strongest first",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title": {
							Type:        genai.TypeString,
							Description: "Short actionable title for the opportunity",
						},
						"description": {
							Type:        genai.TypeString,
							Description: "2-3 sentence description grounded in the evidence",
						},
						"opportunity_score": {
							Type:        genai.TypeNumber,
							Description: "Attractiveness score from 0.0 to 10.0",
						},
						"implementation_difficulty": ordinalSchema("How hard this is to execute"),
						"investment_level":          ordinalSchema("Capital and resource commitment required"),
						"competitive_risk":          ordinalSchema("Risk of a competitor response neutralizing the move"),
						"time_to_market": {
							Type:        genai.TypeString,
							Description: "Rough time horizon, e.g. '6-12 months'",
						},
						"evidence_sources": {
							Type:        genai.TypeArray,
							Description: "URLs from the evidence list that support this opportunity",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
						"next_steps": {
							Type:        genai.TypeArray,
							Description: "2-4 concrete next steps",
							Items:       &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"title", "description", "opportunity_score",
						"implementation_difficulty", "investment_level", "competitive_risk"},
				},
			},
		},
		Required: []string{"opportunities"},
	}
}

// rawOpportunity mirrors the schema for JSON decoding.
type rawOpportunity struct {
	Title                    string   `json:"title"`
	Description              string   `json:"description"`
	OpportunityScore         float64  `json:"opportunity_score"`
	ImplementationDifficulty string   `json:"implementation_difficulty"`
	InvestmentLevel          string   `json:"investment_level"`
	CompetitiveRisk          string   `json:"competitive_risk"`
	TimeToMarket             string   `json:"time_to_market"`
	EvidenceSources          []string `json:"evidence_sources"`
	NextSteps                []string `json:"next_steps"`
}

// parseOpportunities decodes and validates the LLM response. Entries
// that fail validation are dropped and logged rather than failing the
// batch; evidence URLs not present in the digest are stripped. An
// entry left with no verifiable evidence is flagged template-derived
// so it is never presented as evidence-backed.
func (e *Extractor) parseOpportunities(response string, category core.Category, digest Digest) ([]core.StrategicOpportunity, error) {
	log := logger.Get()

	response = cleanJSONResponse(response)

	var parsed struct {
		Opportunities []rawOpportunity `json:"opportunities"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var opportunities []core.StrategicOpportunity
	for _, raw := range parsed.Opportunities {
		if err := validateRaw(raw); err != nil {
			log.Warn("Dropping invalid opportunity", "category", category, "title", raw.Title, "error", err)
			continue
		}

		var evidence []string
		for _, url := range raw.EvidenceSources {
			if digest.URLs[url] {
				evidence = append(evidence, url)
			} else {
				log.Debug("Stripping evidence URL not in digest", "url", url)
			}
		}

		nextSteps := raw.NextSteps
		if len(nextSteps) == 0 {
			nextSteps = []string{"Validate this opportunity with primary research"}
		}

		if len(evidence) == 0 {
			log.Warn("Opportunity has no verifiable evidence, flagging as template-derived",
				"category", category, "title", raw.Title)
		}

		opportunities = append(opportunities, core.StrategicOpportunity{
			Title:                    strings.TrimSpace(raw.Title),
			Description:              strings.TrimSpace(raw.Description),
			Category:                 category,
			OpportunityScore:         raw.OpportunityScore,
			ImplementationDifficulty: core.Ordinal(raw.ImplementationDifficulty),
			InvestmentLevel:          core.Ordinal(raw.InvestmentLevel),
			CompetitiveRisk:          core.Ordinal(raw.CompetitiveRisk),
			TimeToMarket:             raw.TimeToMarket,
			EvidenceSources:          evidence,
			TemplateDerived:          len(evidence) == 0,
			NextSteps:                nextSteps,
		})
	}

	return opportunities, nil
}

func validateRaw(raw rawOpportunity) error {
	if strings.TrimSpace(raw.Title) == "" {
		return fmt.Errorf("empty title")
	}
	if strings.TrimSpace(raw.Description) == "" {
		return fmt.Errorf("empty description")
	}
	if raw.OpportunityScore < 0 || raw.OpportunityScore > 10 {
		return fmt.Errorf("opportunity_score %f out of range", raw.OpportunityScore)
	}
	for _, ordinal := range []string{raw.ImplementationDifficulty, raw.InvestmentLevel, raw.CompetitiveRisk} {
		if !core.IsValidOrdinal(ordinal) {
			return fmt.Errorf("invalid ordinal %q", ordinal)
		}
	}
	return nil
}

// buildExtractionPrompt assembles the per-category prompt.
func (e *Extractor) buildExtractionPrompt(digest Digest, category core.Category, competitors []string, focusArea string) string {
	var sb strings.Builder

	sb.WriteString("You are a medical device market strategist analyzing competitive intelligence.\n")
	sb.WriteString(fmt.Sprintf("Competitors under analysis: %s\n", strings.Join(competitors, ", ")))
	if focusArea != "" {
		sb.WriteString(fmt.Sprintf("Focus area: %s\n", focusArea))
	}
	sb.WriteString("\nEVIDENCE (numbered sources with credibility ratings):\n")
	sb.WriteString(digest.Text)
	sb.WriteString("\nTASK:\n")
	sb.WriteString(fmt.Sprintf("Identify 1-3 %s opportunities: %s\n", category, categoryGuidance(category)))
	sb.WriteString("\nGuidelines:\n")
	sb.WriteString("- Every opportunity must be supported by the evidence above\n")
	sb.WriteString("- evidence_sources must contain ONLY URLs copied exactly from the evidence list\n")
	sb.WriteString("- Weigh high-credibility sources more heavily than promotional ones\n")
	sb.WriteString("- Be conservative with opportunity scores; 8+ requires strong multi-source support\n")
	sb.WriteString("- Return an empty opportunities array if the evidence does not support this category\n")

	return sb.String()
}

func categoryGuidance(category core.Category) string {
	switch category {
	case core.CategoryProduct:
		return "gaps in competitor product portfolios, unmet clinical needs, differentiating features"
	case core.CategoryMarket:
		return "underserved segments, geographic expansion, channel or care-setting shifts"
	case core.CategoryBrand:
		return "positioning gaps, messaging weaknesses, trust or clinical-evidence advantages"
	case core.CategoryPricing:
		return "pricing pressure points, reimbursement advantages, contracting or bundling plays"
	default:
		return "strategic gaps left open by competitors"
	}
}

// fallbackOpportunity builds a deterministic template opportunity for a
// category when extraction fails or no evidence exists. It is flagged
// so downstream consumers can discount it.
func (e *Extractor) fallbackOpportunity(category core.Category, digest Digest, focusArea string) core.StrategicOpportunity {
	subject := "the analyzed market"
	if focusArea != "" {
		subject = focusArea
	}

	tmpl := fallbackTemplates[category]

	var evidence []string
	for i, citation := range digest.Citations {
		if i >= 2 {
			break
		}
		evidence = append(evidence, citation.URL)
	}

	return core.StrategicOpportunity{
		Title:                    fmt.Sprintf(tmpl.title, subject),
		Description:              fmt.Sprintf(tmpl.description, subject),
		Category:                 category,
		OpportunityScore:         5.0,
		ImplementationDifficulty: core.OrdinalMedium,
		InvestmentLevel:          core.OrdinalMedium,
		CompetitiveRisk:          core.OrdinalMedium,
		TimeToMarket:             "6-12 months",
		EvidenceSources:          evidence,
		TemplateDerived:          true,
		NextSteps:                tmpl.nextSteps,
	}
}

var fallbackTemplates = map[core.Category]struct {
	title       string
	description string
	nextSteps   []string
}{
	core.CategoryProduct: {
		title:       "Conduct a product gap assessment in %s",
		description: "Available research was insufficient to pinpoint specific product gaps in %s. A structured portfolio comparison against the named competitors is the standard next move.",
		nextSteps:   []string{"Commission a feature-by-feature portfolio comparison", "Interview clinical users about unmet needs"},
	},
	core.CategoryMarket: {
		title:       "Map underserved segments in %s",
		description: "The evidence base did not surface clear segment-level openings in %s. Primary market mapping would identify where competitors are under-investing.",
		nextSteps:   []string{"Size adjacent segments and care settings", "Analyze competitor sales coverage by region"},
	},
	core.CategoryBrand: {
		title:       "Audit brand positioning against competitors in %s",
		description: "Competitor messaging in %s could not be differentiated from the available sources. A positioning audit would expose messaging white space.",
		nextSteps:   []string{"Run a message audit across competitor materials", "Survey clinician brand perception"},
	},
	core.CategoryPricing: {
		title:       "Benchmark pricing and reimbursement in %s",
		description: "Pricing signals in %s were too thin to act on. Benchmarking list prices and payer coverage would establish a baseline for contracting strategy.",
		nextSteps:   []string{"Collect contract pricing benchmarks", "Map payer coverage policies by competitor product"},
	},
}

// cleanJSONResponse strips markdown code fences some models wrap
// around JSON output.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
