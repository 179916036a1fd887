// Package queries builds the research query set for a competitor. Each
// competitor is examined through five fixed lenses; every lens expands
// one or more templates parameterized by competitor name and category.
// The same inputs always produce the same queries in the same order.
package queries

import (
	"fmt"
	"strings"
)

// Research lenses, in the order queries are generated.
const (
	LensMarketPosition       = "market_position"
	LensBrandMessaging       = "brand_messaging"
	LensProductCapability    = "product_capability"
	LensPricingReimbursement = "pricing_reimbursement"
	LensWeaknessSignals      = "weakness_signals"
)

// Lenses returns all research lenses in generation order.
func Lenses() []string {
	return []string{
		LensMarketPosition,
		LensBrandMessaging,
		LensProductCapability,
		LensPricingReimbursement,
		LensWeaknessSignals,
	}
}

// Query is a single search query tagged with the lens that produced it.
type Query struct {
	Text string `json:"text"`
	Lens string `json:"lens"`
}

// template uses %s as the competitor name placeholder.
type template struct {
	lens string
	text string
}

// genericTemplates apply to any category. Two templates per lens keeps
// the per-competitor query count at ten.
var genericTemplates = []template{
	{LensMarketPosition, "%s market share medical devices"},
	{LensMarketPosition, "%s competitive position industry analysis"},
	{LensBrandMessaging, "%s brand positioning marketing strategy"},
	{LensBrandMessaging, "%s value proposition customers"},
	{LensProductCapability, "%s product portfolio capabilities"},
	{LensProductCapability, "%s product launch FDA clearance"},
	{LensPricingReimbursement, "%s pricing strategy reimbursement"},
	{LensPricingReimbursement, "%s payer coverage medical device"},
	{LensWeaknessSignals, "%s recall complaint FDA warning letter"},
	{LensWeaknessSignals, "%s customer complaints product issues"},
}

// categoryTemplates override generic templates per lens for specific
// market categories. Lenses without an override fall back to the
// generic set.
var categoryTemplates = map[string]map[string][]string{
	"cardiovascular": {
		LensProductCapability: {
			"%s stent valve portfolio clinical data",
			"%s cardiovascular device pipeline FDA",
		},
		LensPricingReimbursement: {
			"%s cardiac device pricing hospital contracts",
			"%s TAVR stent reimbursement CMS",
		},
	},
	"spine_fusion": {
		LensProductCapability: {
			"%s spinal fusion implant system clinical outcomes",
			"%s spine navigation robotics portfolio",
		},
		LensWeaknessSignals: {
			"%s spine implant recall litigation",
			"%s spinal device adverse events MAUDE",
		},
	},
	"joint_replacement": {
		LensProductCapability: {
			"%s knee hip implant portfolio robotic surgery",
			"%s joint replacement clinical registry outcomes",
		},
		LensPricingReimbursement: {
			"%s joint implant bundled payment pricing",
			"%s orthopedic device reimbursement rates",
		},
	},
	"diabetes_care": {
		LensProductCapability: {
			"%s CGM insulin pump features accuracy",
			"%s diabetes device integration pipeline",
		},
		LensPricingReimbursement: {
			"%s CGM insurance coverage pharmacy benefit",
			"%s insulin pump pricing Medicare coverage",
		},
	},
	"surgical_robotics": {
		LensProductCapability: {
			"%s surgical robot platform capabilities procedures",
			"%s robotic surgery system FDA clearance",
		},
		LensMarketPosition: {
			"%s surgical robotics installed base market share",
			"%s robot-assisted surgery adoption hospitals",
		},
	},
}

// BuildQueries expands the query templates for one competitor. Queries
// come back grouped by lens in lens order; within a lens, template
// order is preserved. An optional focus area is appended to every
// query to bias results toward the user's interest.
func BuildQueries(competitor, category, focusArea string) []Query {
	competitor = strings.TrimSpace(competitor)
	if competitor == "" {
		return nil
	}

	overrides := categoryTemplates[category]

	grouped := make(map[string][]string)
	for _, tmpl := range genericTemplates {
		grouped[tmpl.lens] = append(grouped[tmpl.lens], tmpl.text)
	}
	for lens, texts := range overrides {
		grouped[lens] = texts
	}

	var queries []Query
	for _, lens := range Lenses() {
		for _, text := range grouped[lens] {
			q := fmt.Sprintf(text, competitor)
			if focusArea != "" {
				q = q + " " + focusArea
			}
			queries = append(queries, Query{Text: q, Lens: lens})
		}
	}

	return queries
}

// BuildAllQueries generates queries for each competitor, keyed by
// competitor name. Competitor iteration order follows the input slice.
func BuildAllQueries(competitors []string, category, focusArea string) map[string][]Query {
	all := make(map[string][]Query, len(competitors))
	for _, competitor := range competitors {
		if qs := BuildQueries(competitor, category, focusArea); qs != nil {
			all[competitor] = qs
		}
	}
	return all
}
