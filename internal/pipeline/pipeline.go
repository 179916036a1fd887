// Package pipeline drives a competitive analysis run through its
// stages. Each stage is a handler that mutates the shared state and
// names its successor; the driver loop walks the stage graph until it
// reaches done or failed, checking for cancellation between stages.
// Research and LLM failures degrade the output rather than abort it,
// so a run that starts with a valid competitor list always produces a
// report.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rivalscope/internal/core"
	"rivalscope/internal/credibility"
	"rivalscope/internal/extract"
	"rivalscope/internal/logger"
	"rivalscope/internal/queries"
	"rivalscope/internal/rank"
	"rivalscope/internal/research"
	"rivalscope/internal/store"
	"rivalscope/internal/summary"
	"rivalscope/internal/taxonomy"
)

// Stage identifies one step of the analysis state machine.
type Stage string

const (
	StageDetectCategory          Stage = "detect_category"
	StageInitializeResearch      Stage = "initialize_research"
	StageResearchCompetitors     Stage = "research_competitors"
	StageAnalyzeGaps             Stage = "analyze_gaps"
	StageGenerateOpportunities   Stage = "generate_opportunities"
	StageCategorizeOpportunities Stage = "categorize_opportunities"
	StageSynthesizeReport        Stage = "synthesize_report"
	StageDone                    Stage = "done"
	StageFailed                  Stage = "failed"
)

// StageRecord captures one executed stage for diagnostics.
type StageRecord struct {
	Stage    Stage
	Duration time.Duration
	Err      error
}

// Result is the outcome of a pipeline run. State is always populated,
// even on failure; Report is non-nil only when the run completed.
type Result struct {
	Report *core.Report
	State  *core.PipelineState
	Stages []StageRecord
}

// Pipeline wires the analysis stages together.
type Pipeline struct {
	orchestrator *research.Orchestrator
	extractor    *extract.Extractor
	synthesizer  *summary.Synthesizer
	reportStore  *store.Store
	cacheTTL     time.Duration
	digestSize   int
	newID        func() string
	now          func() time.Time
}

// New creates a pipeline. reportStore may be nil to disable caching.
func New(orchestrator *research.Orchestrator, extractor *extract.Extractor, synthesizer *summary.Synthesizer, reportStore *store.Store, cacheTTL time.Duration) *Pipeline {
	return &Pipeline{
		orchestrator: orchestrator,
		extractor:    extractor,
		synthesizer:  synthesizer,
		reportStore:  reportStore,
		cacheTTL:     cacheTTL,
		digestSize:   extract.DefaultDigestSize,
		newID:        uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithGenerators overrides ID and timestamp generation so a run over
// fixed inputs produces an identical report. Nil arguments keep the
// defaults.
func (p *Pipeline) WithGenerators(newID func() string, now func() time.Time) *Pipeline {
	if newID != nil {
		p.newID = newID
	}
	if now != nil {
		p.now = now
	}
	return p
}

// run carries inter-stage data that does not belong in the durable state.
type run struct {
	state  *core.PipelineState
	digest extract.Digest
	matrix map[core.MatrixBucket][]string
	report *core.Report
}

// Run executes a full analysis. An empty competitor list is the only
// input error; everything downstream degrades instead of failing.
func (p *Pipeline) Run(ctx context.Context, competitors []string, focusArea, clientName string) (*Result, error) {
	log := logger.Get()

	state := &core.PipelineState{
		Competitors: dedupeCompetitors(competitors),
		FocusArea:   focusArea,
		ClientName:  clientName,
		StartedAt:   p.now(),
	}
	result := &Result{State: state}

	if len(state.Competitors) == 0 {
		state.AddError("no competitors provided")
		return result, fmt.Errorf("at least one competitor is required")
	}

	if cached := p.consultCache(state); cached != nil {
		log.Info("Returning cached report", "report_id", cached.ID)
		result.Report = cached
		return result, nil
	}

	r := &run{state: state}

	stage := StageDetectCategory
	for stage != StageDone && stage != StageFailed {
		if err := ctx.Err(); err != nil {
			state.AddError(fmt.Sprintf("run canceled before stage %s: %v", stage, err))
			return result, fmt.Errorf("analysis canceled: %w", err)
		}

		started := time.Now()
		next, err := p.dispatch(ctx, stage, r)
		record := StageRecord{Stage: stage, Duration: time.Since(started), Err: err}
		result.Stages = append(result.Stages, record)

		log.Info("Stage complete", "stage", stage, "next", next, "duration", record.Duration)

		if err != nil {
			state.AddError(fmt.Sprintf("stage %s failed: %v", stage, err))
			return result, fmt.Errorf("stage %s: %w", stage, err)
		}
		stage = next
	}

	result.Report = r.report
	p.populateCache(r.report)
	return result, nil
}

// dispatch routes a stage to its handler.
func (p *Pipeline) dispatch(ctx context.Context, stage Stage, r *run) (Stage, error) {
	switch stage {
	case StageDetectCategory:
		return p.detectCategory(r)
	case StageInitializeResearch:
		return p.initializeResearch(r)
	case StageResearchCompetitors:
		return p.researchCompetitors(ctx, r)
	case StageAnalyzeGaps:
		return p.analyzeGaps(r)
	case StageGenerateOpportunities:
		return p.generateOpportunities(ctx, r)
	case StageCategorizeOpportunities:
		return p.categorizeOpportunities(r)
	case StageSynthesizeReport:
		return p.synthesizeReport(ctx, r)
	default:
		return StageFailed, fmt.Errorf("unknown stage %q", stage)
	}
}

func (p *Pipeline) detectCategory(r *run) (Stage, error) {
	detection := taxonomy.Detect(r.state.Competitors, r.state.FocusArea)
	r.state.DeviceCategory = detection.Category
	logger.Get().Info("Category detected",
		"category", detection.Category, "score", detection.Score)
	return StageInitializeResearch, nil
}

func (p *Pipeline) initializeResearch(r *run) (Stage, error) {
	plan := queries.BuildAllQueries(r.state.Competitors, r.state.DeviceCategory, r.state.FocusArea)

	total := 0
	for _, qs := range plan {
		total += len(qs)
	}
	if total == 0 {
		return StageFailed, fmt.Errorf("query planning produced no queries")
	}

	logger.Get().Info("Research plan ready",
		"competitors", len(plan), "queries", total)
	return StageResearchCompetitors, nil
}

func (p *Pipeline) researchCompetitors(ctx context.Context, r *run) (Stage, error) {
	results, errs := p.orchestrator.ResearchAll(ctx,
		r.state.Competitors, r.state.DeviceCategory, r.state.FocusArea)

	r.state.RawResearchResults = append(r.state.RawResearchResults, results...)
	for _, msg := range errs {
		r.state.AddError(msg)
	}

	// Zero results is a legitimate outcome; later stages fall back to
	// template-derived opportunities.
	return StageAnalyzeGaps, nil
}

// analyzeGaps scores every collected source and assembles the evidence
// digest. Each competitor contributes its own top-ranked citations so a
// heavily covered competitor cannot crowd the others out of the digest.
func (p *Pipeline) analyzeGaps(r *run) (Stage, error) {
	now := p.now()

	perCompetitor := p.digestSize
	if n := len(r.state.Competitors); n > 0 {
		perCompetitor = (p.digestSize + n - 1) / n
	}

	var citations []core.SourceCitation
	for _, competitor := range r.state.Competitors {
		scored := credibility.ScoreAll(r.state.ResultsFor(competitor), now)
		if len(scored) > perCompetitor {
			scored = scored[:perCompetitor]
		}
		citations = append(citations, scored...)
	}

	sort.SliceStable(citations, func(i, j int) bool {
		if citations[i].CredibilityScore != citations[j].CredibilityScore {
			return citations[i].CredibilityScore > citations[j].CredibilityScore
		}
		return citations[i].URL < citations[j].URL
	})

	r.digest = extract.BuildDigest(citations, p.digestSize)
	return StageGenerateOpportunities, nil
}

func (p *Pipeline) generateOpportunities(ctx context.Context, r *run) (Stage, error) {
	opportunities := p.extractor.ExtractAll(ctx, r.digest, r.state.Competitors, r.state.FocusArea)
	r.state.OpportunityCandidates = rank.Dedupe(opportunities)
	return StageCategorizeOpportunities, nil
}

func (p *Pipeline) categorizeOpportunities(r *run) (Stage, error) {
	annotated, matrix := rank.BuildMatrix(r.state.OpportunityCandidates)
	r.state.OpportunityCandidates = annotated
	r.state.CategorizedOpportunities = rank.Categorize(annotated)
	r.state.CompetitorProfiles = rank.BuildProfiles(r.state.RawResearchResults)
	r.matrix = matrix
	return StageSynthesizeReport, nil
}

func (p *Pipeline) synthesizeReport(ctx context.Context, r *run) (Stage, error) {
	r.state.ExecutiveSummary = p.synthesizer.Synthesize(ctx, r.state)
	r.state.CompletedAt = p.now()
	r.report = p.assembleReport(r)
	return StageDone, nil
}

func (p *Pipeline) assembleReport(r *run) *core.Report {
	state := r.state
	return &core.Report{
		ID:                       p.newID(),
		TopOpportunities:         summary.SelectTop(state.OpportunityCandidates, 3),
		CategorizedOpportunities: state.CategorizedOpportunities,
		OpportunityMatrix:        r.matrix,
		CompetitiveLandscape:     state.CompetitorProfiles,
		ExecutiveSummary:         state.ExecutiveSummary,
		Metadata: core.ReportMetadata{
			Competitors:    state.Competitors,
			FocusArea:      state.FocusArea,
			ClientName:     state.ClientName,
			DeviceCategory: state.DeviceCategory,
			SourceCount:    len(state.RawResearchResults),
			GeneratedAt:    state.CompletedAt,
			Duration:       state.CompletedAt.Sub(state.StartedAt),
			Errors:         state.ErrorMessages,
		},
	}
}

func (p *Pipeline) consultCache(state *core.PipelineState) *core.Report {
	if p.reportStore == nil || p.cacheTTL <= 0 {
		return nil
	}
	cached, err := p.reportStore.GetCachedReport(state.Competitors, state.FocusArea, p.cacheTTL)
	if err != nil {
		logger.Get().Warn("Report cache lookup failed", "error", err)
		return nil
	}
	return cached
}

func (p *Pipeline) populateCache(report *core.Report) {
	if p.reportStore == nil || report == nil {
		return
	}
	if err := p.reportStore.SaveReport(report); err != nil {
		logger.Get().Warn("Failed to cache report", "error", err)
	}
}

// dedupeCompetitors trims and removes duplicate names, preserving the
// first occurrence's position and casing.
func dedupeCompetitors(competitors []string) []string {
	seen := make(map[string]bool, len(competitors))
	var unique []string
	for _, competitor := range competitors {
		name := strings.TrimSpace(competitor)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, name)
	}
	return unique
}
