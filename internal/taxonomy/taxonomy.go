// Package taxonomy classifies competitor sets into medical device market
// categories. Classification is a pure scoring function over a fixed
// taxonomy: no I/O, deterministic output for a given input.
package taxonomy

import "strings"

// Point values for the different match strengths. An exact competitor
// name match is the strongest signal; a context keyword the weakest.
const (
	exactMatchPoints   = 3.0
	aliasMatchPoints   = 2.0
	wordMatchPoints    = 1.0
	keywordMatchPoints = 0.5

	// minScore is the minimum winning score required before a category
	// is accepted over the fallback.
	minScore = 1.0
)

// FallbackCategory is returned when no category scores above the
// minimum threshold.
const FallbackCategory = "medical_devices"

// Category is one entry in the device market taxonomy.
type Category struct {
	Name        string   // Stable category identifier (e.g. "cardiovascular")
	DisplayName string   // Human-readable name
	Competitors []string // Known competitor names and aliases, lowercase
	Keywords    []string // Context keywords, lowercase
}

// DefaultTaxonomy returns the built-in device market taxonomy.
// Declaration order matters: ties are broken in favor of the
// earlier-declared category.
func DefaultTaxonomy() []Category {
	return []Category{
		{
			Name:        "cardiovascular",
			DisplayName: "Cardiovascular Devices",
			Competitors: []string{
				"medtronic", "abbott", "boston scientific", "edwards lifesciences",
				"biotronik", "terumo", "abiomed", "w. l. gore", "gore medical",
			},
			Keywords: []string{
				"stent", "cardiac", "cardiovascular", "heart", "valve", "tavr",
				"pacemaker", "defibrillator", "catheter", "ablation", "coronary",
			},
		},
		{
			Name:        "spine_fusion",
			DisplayName: "Spine & Fusion",
			Competitors: []string{
				"medtronic spine", "stryker spine", "nuvasive", "globus medical",
				"zimvie", "orthofix", "atec spine", "alphatec",
			},
			Keywords: []string{
				"spine", "spinal", "fusion", "vertebral", "pedicle", "interbody",
				"scoliosis", "laminectomy", "disc replacement",
			},
		},
		{
			Name:        "joint_replacement",
			DisplayName: "Joint Replacement",
			Competitors: []string{
				"stryker", "zimmer biomet", "smith+nephew", "smith & nephew",
				"depuy synthes", "exactech", "conformis",
			},
			Keywords: []string{
				"knee", "hip", "joint", "arthroplasty", "orthopedic", "implant",
				"shoulder", "robotic surgery", "mako",
			},
		},
		{
			Name:        "diabetes_care",
			DisplayName: "Diabetes Care",
			Competitors: []string{
				"dexcom", "insulet", "tandem diabetes", "medtronic diabetes",
				"abbott diabetes", "ypsomed", "senseonics",
			},
			Keywords: []string{
				"diabetes", "glucose", "cgm", "insulin", "pump", "glycemic",
				"continuous glucose", "a1c",
			},
		},
		{
			Name:        "surgical_robotics",
			DisplayName: "Surgical Robotics",
			Competitors: []string{
				"intuitive surgical", "intuitive", "cmr surgical", "medrobotics",
				"vicarious surgical", "asensus surgical",
			},
			Keywords: []string{
				"robotic", "robot-assisted", "laparoscopic", "minimally invasive",
				"da vinci", "telesurgery",
			},
		},
	}
}

// Detection holds the outcome of a classification.
type Detection struct {
	Category string             // Winning category name, or FallbackCategory
	Score    float64            // Winning score (0 when fallback)
	Scores   map[string]float64 // All non-zero category scores
}

// Detect scores the competitor names and optional free-text context
// against the taxonomy and returns the best category. When no category
// reaches the minimum score the fallback category is returned.
func Detect(competitors []string, context string) Detection {
	return DetectIn(DefaultTaxonomy(), competitors, context)
}

// DetectIn classifies against a caller-supplied taxonomy.
func DetectIn(taxonomy []Category, competitors []string, context string) Detection {
	scores := make(map[string]float64)
	contextLower := strings.ToLower(context)

	for _, cat := range taxonomy {
		score := 0.0
		for _, competitor := range competitors {
			score += scoreCompetitor(strings.ToLower(strings.TrimSpace(competitor)), cat)
		}
		for _, keyword := range cat.Keywords {
			if contextLower != "" && strings.Contains(contextLower, keyword) {
				score += keywordMatchPoints
			}
		}
		if score > 0 {
			scores[cat.Name] = score
		}
	}

	// Argmax with first-declared-wins tie-break: iterate in taxonomy
	// order and only replace on a strictly higher score.
	best := ""
	bestScore := 0.0
	for _, cat := range taxonomy {
		if s, ok := scores[cat.Name]; ok && s > bestScore {
			best = cat.Name
			bestScore = s
		}
	}

	if best == "" || bestScore < minScore {
		return Detection{Category: FallbackCategory, Scores: scores}
	}
	return Detection{Category: best, Score: bestScore, Scores: scores}
}

// scoreCompetitor awards points for how strongly a single competitor
// name matches a category's known competitor list.
func scoreCompetitor(name string, cat Category) float64 {
	if name == "" {
		return 0
	}

	best := 0.0
	for _, known := range cat.Competitors {
		switch {
		case name == known:
			return exactMatchPoints
		case strings.Contains(name, known) || strings.Contains(known, name):
			if best < aliasMatchPoints {
				best = aliasMatchPoints
			}
		default:
			for _, word := range strings.Fields(name) {
				for _, knownWord := range strings.Fields(known) {
					if word == knownWord {
						if best < wordMatchPoints {
							best = wordMatchPoints
						}
					}
				}
			}
		}
	}
	return best
}

// CategoryNames returns the taxonomy's category names in declaration order.
func CategoryNames(taxonomy []Category) []string {
	names := make([]string, len(taxonomy))
	for i, cat := range taxonomy {
		names[i] = cat.Name
	}
	return names
}

// IsKnownCategory reports whether name is in the default taxonomy or is
// the fallback category.
func IsKnownCategory(name string) bool {
	if name == FallbackCategory {
		return true
	}
	for _, cat := range DefaultTaxonomy() {
		if cat.Name == name {
			return true
		}
	}
	return false
}
