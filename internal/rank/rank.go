// Package rank orders and categorizes extracted opportunities. All
// operations here are pure: given the same opportunities the output
// ordering, buckets and rollups are identical run to run.
package rank

import (
	"sort"
	"strings"

	"rivalscope/internal/core"
)

// highImpactThreshold splits the opportunity matrix on the impact axis.
const highImpactThreshold = 6.5

// Dedupe removes opportunities whose normalized titles collide,
// keeping the higher-scoring one. Normalization lowercases, trims and
// collapses whitespace so cosmetic differences don't create duplicates.
func Dedupe(opportunities []core.StrategicOpportunity) []core.StrategicOpportunity {
	best := make(map[string]core.StrategicOpportunity)
	var order []string

	for _, opp := range opportunities {
		key := normalizeTitle(opp.Title)
		existing, seen := best[key]
		if !seen {
			best[key] = opp
			order = append(order, key)
			continue
		}
		if opp.OpportunityScore > existing.OpportunityScore {
			best[key] = opp
		}
	}

	deduped := make([]core.StrategicOpportunity, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, best[key])
	}
	return deduped
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// SortByScore stable-sorts opportunities by score descending. Equal
// scores keep their input order, which downstream tie-breaking relies
// on. The result is never nil, so an empty group stays an empty list
// through JSON marshaling.
func SortByScore(opportunities []core.StrategicOpportunity) []core.StrategicOpportunity {
	sorted := append(make([]core.StrategicOpportunity, 0, len(opportunities)), opportunities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpportunityScore > sorted[j].OpportunityScore
	})
	return sorted
}

// Categorize groups opportunities by category and ranks each group by
// score. Every category key is always present in the result; a
// category with no opportunities maps to an empty (non-nil) slice, so
// consumers can distinguish "none found" from "missing".
func Categorize(opportunities []core.StrategicOpportunity) map[core.Category][]core.StrategicOpportunity {
	categorized := make(map[core.Category][]core.StrategicOpportunity, len(core.Categories()))
	for _, category := range core.Categories() {
		categorized[category] = []core.StrategicOpportunity{}
	}

	for _, opp := range opportunities {
		if _, known := categorized[opp.Category]; !known {
			// Unknown categories fold into product rather than vanish.
			opp.Category = core.CategoryProduct
		}
		categorized[opp.Category] = append(categorized[opp.Category], opp)
	}

	for category, group := range categorized {
		group = SortByScore(group)
		for i := range group {
			group[i].Rank = i + 1
		}
		categorized[category] = group
	}

	return categorized
}

// BucketOf places one opportunity on the impact-vs-difficulty matrix.
// High implementation difficulty is the hard half of the matrix;
// low and medium difficulty count as tractable.
func BucketOf(opp core.StrategicOpportunity) core.MatrixBucket {
	highImpact := opp.OpportunityScore >= highImpactThreshold
	hard := opp.ImplementationDifficulty == core.OrdinalHigh

	switch {
	case highImpact && !hard:
		return core.BucketQuickWin
	case highImpact && hard:
		return core.BucketStrategicInvestment
	case !highImpact && !hard:
		return core.BucketFillIn
	default:
		return core.BucketAvoid
	}
}

// BuildMatrix annotates each opportunity with its bucket and returns
// the bucket-to-titles matrix. Every bucket key is always present.
func BuildMatrix(opportunities []core.StrategicOpportunity) ([]core.StrategicOpportunity, map[core.MatrixBucket][]string) {
	annotated := append([]core.StrategicOpportunity(nil), opportunities...)

	matrix := make(map[core.MatrixBucket][]string, len(core.MatrixBuckets()))
	for _, bucket := range core.MatrixBuckets() {
		matrix[bucket] = []string{}
	}

	for i := range annotated {
		bucket := BucketOf(annotated[i])
		annotated[i].Bucket = bucket
		matrix[bucket] = append(matrix[bucket], annotated[i].Title)
	}

	return annotated, matrix
}

// Signal keyword lists for competitor rollups. Scanned against result
// titles and content.
var (
	weaknessKeywords = []string{"recall", "warning letter", "lawsuit", "litigation", "complaint", "adverse event", "layoff", "shortage", "delay"}
	strengthKeywords = []string{"approval", "clearance", "launch", "growth", "partnership", "acquisition", "record", "expansion", "breakthrough"}
	premiumKeywords  = []string{"premium", "price increase", "high-end"}
	valueKeywords    = []string{"discount", "low-cost", "value", "price cut", "affordable"}
)

// BuildProfiles derives per-competitor rollups from the raw research.
// Strengths and weaknesses are headline titles matching signal
// keywords, capped at three each.
func BuildProfiles(results []core.ResearchResult) []core.CompetitorProfile {
	byCompetitor := make(map[string][]core.ResearchResult)
	var order []string
	for _, result := range results {
		if result.Competitor == "" {
			continue
		}
		if _, seen := byCompetitor[result.Competitor]; !seen {
			order = append(order, result.Competitor)
		}
		byCompetitor[result.Competitor] = append(byCompetitor[result.Competitor], result)
	}
	sort.Strings(order)

	profiles := make([]core.CompetitorProfile, 0, len(order))
	for _, competitor := range order {
		competitorResults := byCompetitor[competitor]
		profile := core.CompetitorProfile{
			Competitor:  competitor,
			SourceCount: len(competitorResults),
		}

		for _, result := range competitorResults {
			text := strings.ToLower(result.Title + " " + result.Content)
			if len(profile.Weaknesses) < 3 && containsAny(text, weaknessKeywords) {
				profile.Weaknesses = append(profile.Weaknesses, result.Title)
			} else if len(profile.Strengths) < 3 && containsAny(text, strengthKeywords) {
				profile.Strengths = append(profile.Strengths, result.Title)
			}
		}

		profile.MarketPosition = marketPosition(len(competitorResults))
		profile.PricingPosture = pricingPosture(competitorResults)
		profiles = append(profiles, profile)
	}

	return profiles
}

func marketPosition(sourceCount int) string {
	switch {
	case sourceCount >= 10:
		return "heavily covered, established presence"
	case sourceCount >= 4:
		return "moderate coverage"
	case sourceCount > 0:
		return "limited coverage"
	default:
		return "no research coverage"
	}
}

func pricingPosture(results []core.ResearchResult) string {
	premium, value := 0, 0
	for _, result := range results {
		text := strings.ToLower(result.Title + " " + result.Content)
		if containsAny(text, premiumKeywords) {
			premium++
		}
		if containsAny(text, valueKeywords) {
			value++
		}
	}
	switch {
	case premium > value:
		return "premium"
	case value > premium:
		return "value"
	default:
		return "unclear"
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
