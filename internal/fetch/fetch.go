// Package fetch retrieves and cleans page content for research results.
// Search snippets are often too thin for gap analysis; fetching the top
// sources gives the extraction step real article text to work with.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"rivalscope/internal/core"
	"rivalscope/internal/logger"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 2 << 20 // 2MB cap on fetched pages
	maxContentLen  = 4000    // Characters of cleaned text kept per result
)

var newlineRegex = regexp.MustCompile(`(\n\s*){2,}`)

// Fetcher downloads pages and extracts their main textual content.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a default HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// EnrichResults fetches page content for up to topN results and replaces
// their Content with cleaned article text. Fetch failures leave the
// original search snippet in place; enrichment never fails a result.
func (f *Fetcher) EnrichResults(ctx context.Context, results []core.ResearchResult, topN int) []core.ResearchResult {
	log := logger.Get()

	enriched := 0
	for i := range results {
		if enriched >= topN {
			break
		}
		text, err := f.FetchText(ctx, results[i].URL)
		if err != nil {
			log.Debug("Page fetch failed, keeping search snippet", "url", results[i].URL, "error", err)
			continue
		}
		if text != "" {
			results[i].Content = text
			enriched++
		}
	}

	return results
}

// FetchText downloads a page and returns its cleaned main text,
// truncated to a bounded length.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rivalscope/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}

	text, err := ExtractText(string(body))
	if err != nil {
		return "", err
	}
	return truncateText(text, maxContentLen), nil
}

// truncateText caps text at max bytes without splitting a UTF-8 rune.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

// ExtractText pulls the main textual content out of an HTML document,
// stripping navigation, scripts and other boilerplate.
func ExtractText(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .cookie-banner").Remove()

	var textBuilder strings.Builder
	mainContentSelectors := []string{
		"article", "main", ".main-content", ".entry-content", ".post-content", ".article-body",
		"[role='main']",
		".content", "#content",
	}

	foundMainContent := false
	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote").Each(func(_ int, item *goquery.Selection) {
				textBuilder.WriteString(strings.TrimSpace(item.Text()))
				textBuilder.WriteString("\n\n")
			})
		})
		if textBuilder.Len() > 0 {
			foundMainContent = true
			break
		}
	}

	if !foundMainContent {
		doc.Find("body").Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, item *goquery.Selection) {
			textBuilder.WriteString(strings.TrimSpace(item.Text()))
			textBuilder.WriteString("\n\n")
		})
	}

	cleaned := newlineRegex.ReplaceAllString(textBuilder.String(), "\n")
	return strings.TrimSpace(cleaned), nil
}

// ExtractTitle tries common title locations in an HTML document.
func ExtractTitle(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	title := doc.Find("head title").First().Text()
	if title != "" {
		return strings.TrimSpace(title)
	}

	ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content")
	if ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}

	h1Title := doc.Find("h1").First().Text()
	return strings.TrimSpace(h1Title)
}
