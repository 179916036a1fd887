// Package credibility scores research sources by how much weight their
// claims deserve. Scoring is pure and deterministic: a fixed domain
// tier list drives the base score, with bounded adjustments for query
// relevance and recency.
package credibility

import (
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"rivalscope/internal/core"
)

// Base score per tier on the 0-10 composite scale. Unknown domains get
// a neutral base rather than a penalty; absence from the list is not
// evidence of low quality.
const (
	highTierBase    = 8.0
	mediumTierBase  = 5.5
	lowTierBase     = 3.0
	unknownTierBase = 5.0

	maxRelevanceBonus = 1.5
	maxRecencyBonus   = 0.5
)

// highTierDomains are regulatory, clinical and peer-reviewed sources.
var highTierDomains = map[string]bool{
	"fda.gov":                 true,
	"nih.gov":                 true,
	"cms.gov":                 true,
	"who.int":                 true,
	"clinicaltrials.gov":      true,
	"nejm.org":                true,
	"thelancet.com":           true,
	"jamanetwork.com":         true,
	"pubmed.ncbi.nlm.nih.gov": true,
	"bmj.com":                 true,
}

// mediumTierDomains are established trade press and financial news.
var mediumTierDomains = map[string]bool{
	"massdevice.com":            true,
	"medtechdive.com":           true,
	"fiercebiotech.com":         true,
	"medicaldevice-network.com": true,
	"reuters.com":               true,
	"bloomberg.com":             true,
	"wsj.com":                   true,
	"statnews.com":              true,
	"mddionline.com":            true,
}

// lowTierDomains are promotional wire services and press release hubs.
var lowTierDomains = map[string]bool{
	"prnewswire.com":    true,
	"businesswire.com":  true,
	"globenewswire.com": true,
	"newswire.com":      true,
	"accesswire.com":    true,
}

// ClassifyDomain maps a domain to its credibility tier. Matching also
// checks the registrable parent so subdomains inherit the tier.
func ClassifyDomain(domain string) core.CredibilityTier {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))

	for d := domain; d != ""; d = parentDomain(d) {
		switch {
		case highTierDomains[d]:
			return core.TierHigh
		case mediumTierDomains[d]:
			return core.TierMedium
		case lowTierDomains[d]:
			return core.TierLow
		}
	}
	return core.TierUnknown
}

func parentDomain(domain string) string {
	idx := strings.Index(domain, ".")
	if idx < 0 {
		return ""
	}
	parent := domain[idx+1:]
	// Stop before bare TLDs.
	if !strings.Contains(parent, ".") {
		return ""
	}
	return parent
}

// Score turns a raw research result into a credibility-scored citation.
// The composite score is tier base + relevance bonus + recency bonus,
// clamped to [0, 10]. now anchors the recency calculation so scoring
// stays deterministic under test.
func Score(result core.ResearchResult, now time.Time) core.SourceCitation {
	domain := extractDomain(result.URL)
	tier := ClassifyDomain(domain)

	relevance := relevanceOverlap(result.Query, result.Title+" "+result.Content)

	score := tierBase(tier)
	score += relevance * maxRelevanceBonus
	score += recencyBonus(result.RetrievedAt, now)
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	return core.SourceCitation{
		URL:              result.URL,
		Domain:           domain,
		Title:            result.Title,
		ContentSnippet:   snippet(result.Content, 300),
		CredibilityTier:  tier,
		CredibilityScore: score,
		RelevanceScore:   relevance,
		RetrievedAt:      result.RetrievedAt,
	}
}

// ScoreAll scores every result and returns citations sorted by
// credibility score descending, ties broken by URL for stable output.
func ScoreAll(results []core.ResearchResult, now time.Time) []core.SourceCitation {
	citations := make([]core.SourceCitation, 0, len(results))
	for _, result := range results {
		citations = append(citations, Score(result, now))
	}

	sort.SliceStable(citations, func(i, j int) bool {
		if citations[i].CredibilityScore != citations[j].CredibilityScore {
			return citations[i].CredibilityScore > citations[j].CredibilityScore
		}
		return citations[i].URL < citations[j].URL
	})

	return citations
}

func tierBase(tier core.CredibilityTier) float64 {
	switch tier {
	case core.TierHigh:
		return highTierBase
	case core.TierMedium:
		return mediumTierBase
	case core.TierLow:
		return lowTierBase
	default:
		return unknownTierBase
	}
}

// relevanceOverlap measures the fraction of meaningful query terms that
// appear in the content, on a 0-1 scale.
func relevanceOverlap(query, content string) float64 {
	queryWords := meaningfulWords(query)
	if len(queryWords) == 0 {
		return 0
	}

	contentLower := strings.ToLower(content)
	matched := 0
	for _, word := range queryWords {
		if strings.Contains(contentLower, word) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "for": true, "to": true,
	"is": true, "are": true, "with": true,
}

func meaningfulWords(text string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 2 && !stopWords[word] {
			words = append(words, word)
		}
	}
	return words
}

// recencyBonus rewards recently retrieved sources. Results under a
// week old get the full bonus, decaying to zero at 90 days. A zero
// RetrievedAt earns nothing.
func recencyBonus(retrievedAt, now time.Time) float64 {
	if retrievedAt.IsZero() {
		return 0
	}
	age := now.Sub(retrievedAt)
	switch {
	case age < 0:
		return maxRecencyBonus
	case age <= 7*24*time.Hour:
		return maxRecencyBonus
	case age >= 90*24*time.Hour:
		return 0
	default:
		remaining := 1 - (age.Hours()-7*24)/(83*24)
		return maxRecencyBonus * remaining
	}
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

func snippet(content string, maxLen int) string {
	content = strings.TrimSpace(content)
	if len(content) <= maxLen {
		return content
	}
	// Back up to a rune boundary so the cut never leaves invalid UTF-8.
	for maxLen > 0 && !utf8.RuneStart(content[maxLen]) {
		maxLen--
	}
	return content[:maxLen]
}
