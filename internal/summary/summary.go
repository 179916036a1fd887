// Package summary synthesizes the executive summary from ranked
// opportunities. Top-opportunity selection is deterministic; only the
// narrative comes from the LLM, and a placeholder stands in when
// generation fails so a report is always produced.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"rivalscope/internal/core"
	"rivalscope/internal/llm"
	"rivalscope/internal/logger"
)

// PlaceholderNarrative is used when LLM narrative generation fails.
const PlaceholderNarrative = "Narrative synthesis was unavailable for this run. The ranked opportunities and competitive landscape below were generated from the collected research and remain fully usable."

// LLMClient is the text generation surface the synthesizer needs.
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Synthesizer builds executive summaries.
type Synthesizer struct {
	llmClient LLMClient
}

// NewSynthesizer creates a Synthesizer. llmClient may be nil, in which
// case narratives always use the placeholder.
func NewSynthesizer(llmClient LLMClient) *Synthesizer {
	return &Synthesizer{llmClient: llmClient}
}

// SelectTop picks the n highest-scoring opportunities. Score ties are
// broken by category business priority, then by title for full
// determinism. Fewer than n opportunities returns all of them.
func SelectTop(opportunities []core.StrategicOpportunity, n int) []core.StrategicOpportunity {
	priority := make(map[core.Category]int, len(core.Categories()))
	for i, category := range core.Categories() {
		priority[category] = i
	}

	sorted := append([]core.StrategicOpportunity(nil), opportunities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OpportunityScore != sorted[j].OpportunityScore {
			return sorted[i].OpportunityScore > sorted[j].OpportunityScore
		}
		if priority[sorted[i].Category] != priority[sorted[j].Category] {
			return priority[sorted[i].Category] < priority[sorted[j].Category]
		}
		return sorted[i].Title < sorted[j].Title
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Synthesize builds the executive summary for a completed analysis.
// Never fails: when the LLM is unavailable or errors, the structured
// fields are still populated and the narrative falls back to a
// placeholder.
func (s *Synthesizer) Synthesize(ctx context.Context, state *core.PipelineState) *core.ExecutiveSummary {
	log := logger.Get()

	top := SelectTop(state.OpportunityCandidates, 3)

	summary := &core.ExecutiveSummary{
		KeyInsight:               keyInsight(top, state),
		RevenuePotential:         revenuePotential(top),
		MarketShareOpportunity:   marketShareOpportunity(top, state),
		StrategicRecommendations: recommendations(top),
	}
	for _, opp := range top {
		summary.TopOpportunities = append(summary.TopOpportunities, opp.Title)
	}

	narrative, err := s.generateNarrative(ctx, state, top)
	if err != nil {
		log.Warn("Narrative generation failed, using placeholder", "error", err)
		narrative = PlaceholderNarrative
	}
	summary.Narrative = narrative

	return summary
}

func (s *Synthesizer) generateNarrative(ctx context.Context, state *core.PipelineState, top []core.StrategicOpportunity) (string, error) {
	if s.llmClient == nil {
		return "", fmt.Errorf("no LLM client configured")
	}

	var sb strings.Builder
	sb.WriteString("You are writing the executive summary of a competitive intelligence report for a medical device company.\n\n")
	sb.WriteString(fmt.Sprintf("Competitors analyzed: %s\n", strings.Join(state.Competitors, ", ")))
	sb.WriteString(fmt.Sprintf("Device category: %s\n", state.DeviceCategory))
	if state.FocusArea != "" {
		sb.WriteString(fmt.Sprintf("Focus area: %s\n", state.FocusArea))
	}
	sb.WriteString(fmt.Sprintf("Research sources collected: %d\n\n", len(state.RawResearchResults)))

	sb.WriteString("TOP OPPORTUNITIES:\n")
	for i, opp := range top {
		sb.WriteString(fmt.Sprintf("%d. %s (score %.1f, %s): %s\n",
			i+1, opp.Title, opp.OpportunityScore, opp.Category, opp.Description))
	}

	sb.WriteString("\nWrite a 3-4 paragraph executive narrative: the overall competitive picture, ")
	sb.WriteString("why these opportunities matter now, and how leadership should sequence them. ")
	sb.WriteString("Plain prose, no headers, no bullet lists.")

	narrative, err := s.llmClient.GenerateText(ctx, sb.String(), llm.TextGenerationOptions{
		Temperature: 0.6,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}
	if strings.TrimSpace(narrative) == "" {
		return "", fmt.Errorf("empty narrative from model")
	}
	return strings.TrimSpace(narrative), nil
}

// keyInsight states the single most important finding.
func keyInsight(top []core.StrategicOpportunity, state *core.PipelineState) string {
	if len(top) == 0 {
		return fmt.Sprintf("Research across %d competitor(s) surfaced no actionable opportunities; the collected evidence was insufficient for strategic conclusions.", len(state.Competitors))
	}

	lead := top[0]
	derivation := "grounded in the collected research"
	if lead.TemplateDerived {
		derivation = "proposed from standard playbooks because the research evidence was thin"
	}
	return fmt.Sprintf("The strongest opening is a %s opportunity, %q (score %.1f/10), %s.",
		lead.Category, lead.Title, lead.OpportunityScore, derivation)
}

func revenuePotential(top []core.StrategicOpportunity) string {
	if len(top) == 0 {
		return "Not assessable from the current evidence."
	}

	avg := 0.0
	for _, opp := range top {
		avg += opp.OpportunityScore
	}
	avg /= float64(len(top))

	switch {
	case avg >= 7.5:
		return "High: the leading opportunities score strongly and justify near-term investment."
	case avg >= 5.0:
		return "Moderate: worthwhile openings exist but need validation before major commitment."
	default:
		return "Limited: the identified opportunities are weak; treat them as exploratory."
	}
}

func marketShareOpportunity(top []core.StrategicOpportunity, state *core.PipelineState) string {
	quickWins := 0
	for _, opp := range top {
		if opp.OpportunityScore >= 6.5 && opp.ImplementationDifficulty != core.OrdinalHigh {
			quickWins++
		}
	}
	if quickWins > 0 {
		return fmt.Sprintf("%d of the top opportunities are executable quick wins against %s.",
			quickWins, strings.Join(state.Competitors, ", "))
	}
	return "Share gains will require sustained investment; no immediate quick wins surfaced."
}

func recommendations(top []core.StrategicOpportunity) []string {
	var recs []string
	for _, opp := range top {
		if len(opp.NextSteps) > 0 {
			recs = append(recs, fmt.Sprintf("%s: %s", opp.Title, opp.NextSteps[0]))
		} else {
			recs = append(recs, fmt.Sprintf("Validate and scope %q (%s horizon).", opp.Title, opp.TimeToMarket))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Commission deeper primary research before committing strategy.")
	}
	return recs
}
