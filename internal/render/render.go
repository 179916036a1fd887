// Package render writes analysis reports as markdown files. The layout
// is progressive disclosure: executive summary first, then the top
// opportunities, then the full category breakdown, matrix and
// landscape for readers who keep scrolling.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rivalscope/internal/core"
)

// RenderMarkdownReport writes the report to outputDir and returns the
// file path. An empty outputDir defaults to "reports".
func RenderMarkdownReport(report *core.Report, outputDir string) (string, error) {
	dateStr := time.Now().UTC().Format("2006-01-02")
	filename := fmt.Sprintf("analysis_%s_%s.md", dateStr, shortID(report.ID))

	if outputDir == "" {
		outputDir = "reports"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, []byte(MarkdownReport(report)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file %s: %w", filePath, err)
	}

	return filePath, nil
}

// MarkdownReport renders the full report body.
func MarkdownReport(report *core.Report) string {
	var sb strings.Builder

	title := "Competitive Intelligence Report"
	if report.Metadata.ClientName != "" {
		title = fmt.Sprintf("Competitive Intelligence Report for %s", report.Metadata.ClientName)
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	sb.WriteString(fmt.Sprintf("**Competitors:** %s  \n", strings.Join(report.Metadata.Competitors, ", ")))
	sb.WriteString(fmt.Sprintf("**Category:** %s  \n", report.Metadata.DeviceCategory))
	if report.Metadata.FocusArea != "" {
		sb.WriteString(fmt.Sprintf("**Focus:** %s  \n", report.Metadata.FocusArea))
	}
	sb.WriteString(fmt.Sprintf("**Sources analyzed:** %d  \n", report.Metadata.SourceCount))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.Metadata.GeneratedAt.Format("2006-01-02 15:04 UTC")))

	writeExecutiveSummary(&sb, report.ExecutiveSummary)
	writeTopOpportunities(&sb, report.TopOpportunities)
	writeCategoryBreakdown(&sb, report.CategorizedOpportunities)
	writeMatrix(&sb, report.OpportunityMatrix)
	writeLandscape(&sb, report.CompetitiveLandscape)

	if len(report.Metadata.Errors) > 0 {
		sb.WriteString("## Research Notes\n\n")
		sb.WriteString(fmt.Sprintf("%d issue(s) occurred during research; results may be incomplete.\n\n", len(report.Metadata.Errors)))
		for _, msg := range report.Metadata.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", msg))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeExecutiveSummary(sb *strings.Builder, summary *core.ExecutiveSummary) {
	sb.WriteString("## Executive Summary\n\n")
	if summary == nil {
		sb.WriteString("No executive summary was produced for this run.\n\n")
		return
	}

	sb.WriteString(fmt.Sprintf("**Key insight:** %s\n\n", summary.KeyInsight))
	sb.WriteString(summary.Narrative)
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("**Revenue potential:** %s  \n", summary.RevenuePotential))
	sb.WriteString(fmt.Sprintf("**Market share:** %s\n\n", summary.MarketShareOpportunity))

	if len(summary.StrategicRecommendations) > 0 {
		sb.WriteString("**Recommendations:**\n\n")
		for _, rec := range summary.StrategicRecommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
		sb.WriteString("\n")
	}
}

func writeTopOpportunities(sb *strings.Builder, top []core.StrategicOpportunity) {
	sb.WriteString("## Top Opportunities\n\n")
	if len(top) == 0 {
		sb.WriteString("No opportunities were identified.\n\n")
		return
	}

	for i, opp := range top {
		sb.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, opp.Title))
		writeOpportunity(sb, opp)
	}
}

func writeOpportunity(sb *strings.Builder, opp core.StrategicOpportunity) {
	sb.WriteString(opp.Description + "\n\n")
	sb.WriteString(fmt.Sprintf("- Score: %.1f/10 (%s)\n", opp.OpportunityScore, opp.Category))
	sb.WriteString(fmt.Sprintf("- Difficulty: %s | Investment: %s | Competitive risk: %s\n",
		opp.ImplementationDifficulty, opp.InvestmentLevel, opp.CompetitiveRisk))
	if opp.TimeToMarket != "" {
		sb.WriteString(fmt.Sprintf("- Time to market: %s\n", opp.TimeToMarket))
	}
	if opp.TemplateDerived {
		sb.WriteString("- *Proposed from standard playbooks; supporting evidence was insufficient.*\n")
	}
	for _, step := range opp.NextSteps {
		sb.WriteString(fmt.Sprintf("- Next: %s\n", step))
	}
	for _, url := range opp.EvidenceSources {
		sb.WriteString(fmt.Sprintf("- Source: %s\n", url))
	}
	sb.WriteString("\n")
}

func writeCategoryBreakdown(sb *strings.Builder, categorized map[core.Category][]core.StrategicOpportunity) {
	sb.WriteString("## Opportunities by Category\n\n")
	for _, category := range core.Categories() {
		group := categorized[category]
		sb.WriteString(fmt.Sprintf("### %s\n\n", categoryHeading(category)))
		if len(group) == 0 {
			sb.WriteString("None identified.\n\n")
			continue
		}
		for _, opp := range group {
			sb.WriteString(fmt.Sprintf("%d. **%s** (%.1f/10)\n", opp.Rank, opp.Title, opp.OpportunityScore))
		}
		sb.WriteString("\n")
	}
}

func categoryHeading(category core.Category) string {
	switch category {
	case core.CategoryProduct:
		return "Product"
	case core.CategoryMarket:
		return "Market"
	case core.CategoryBrand:
		return "Brand"
	case core.CategoryPricing:
		return "Pricing"
	default:
		return string(category)
	}
}

func writeMatrix(sb *strings.Builder, matrix map[core.MatrixBucket][]string) {
	sb.WriteString("## Opportunity Matrix\n\n")

	labels := map[core.MatrixBucket]string{
		core.BucketQuickWin:            "Quick Wins (high impact, tractable)",
		core.BucketStrategicInvestment: "Strategic Investments (high impact, hard)",
		core.BucketFillIn:              "Fill-ins (low impact, tractable)",
		core.BucketAvoid:               "Avoid (low impact, hard)",
	}

	for _, bucket := range core.MatrixBuckets() {
		sb.WriteString(fmt.Sprintf("**%s**\n\n", labels[bucket]))
		titles := matrix[bucket]
		if len(titles) == 0 {
			sb.WriteString("- (none)\n\n")
			continue
		}
		for _, title := range titles {
			sb.WriteString(fmt.Sprintf("- %s\n", title))
		}
		sb.WriteString("\n")
	}
}

func writeLandscape(sb *strings.Builder, profiles []core.CompetitorProfile) {
	sb.WriteString("## Competitive Landscape\n\n")
	if len(profiles) == 0 {
		sb.WriteString("No competitor research was available.\n\n")
		return
	}

	for _, profile := range profiles {
		sb.WriteString(fmt.Sprintf("### %s\n\n", profile.Competitor))
		sb.WriteString(fmt.Sprintf("- Market position: %s\n", profile.MarketPosition))
		sb.WriteString(fmt.Sprintf("- Pricing posture: %s\n", profile.PricingPosture))
		sb.WriteString(fmt.Sprintf("- Sources: %d\n", profile.SourceCount))
		for _, strength := range profile.Strengths {
			sb.WriteString(fmt.Sprintf("- Strength signal: %s\n", strength))
		}
		for _, weakness := range profile.Weaknesses {
			sb.WriteString(fmt.Sprintf("- Weakness signal: %s\n", weakness))
		}
		sb.WriteString("\n")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
