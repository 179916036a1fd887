package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"rivalscope/internal/logger"
)

// DuckDuckGoProvider implements the Provider interface using the
// DuckDuckGo HTML endpoint. It needs no API key, which makes it the
// default provider.
type DuckDuckGoProvider struct {
	client    *http.Client
	userAgent string
	gate      *rateGate
}

// NewDuckDuckGoProvider creates a new DuckDuckGo search provider
func NewDuckDuckGoProvider() *DuckDuckGoProvider {
	return &DuckDuckGoProvider{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		gate:      newRateGate(2 * time.Second),
	}
}

// GetName returns the name of this provider
func (d *DuckDuckGoProvider) GetName() string {
	return "DuckDuckGo"
}

// Search performs a search using DuckDuckGo and returns results
func (d *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	// Respect rate limiting
	if err := d.gate.wait(ctx); err != nil {
		return nil, err
	}

	searchURL := d.buildSearchURL(query)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	bodyStr := string(body)

	// A CAPTCHA page means we are blocked, not that there are no results
	if strings.Contains(strings.ToLower(bodyStr), "captcha") || strings.Contains(bodyStr, "blocked") {
		return nil, fmt.Errorf("DuckDuckGo search blocked by CAPTCHA: %w", ErrProviderUnavailable)
	}

	results := d.parseSearchResults(bodyStr, maxResults)

	logger.Info("DuckDuckGo search completed", "query", query, "results_found", len(results))

	return results, nil
}

// buildSearchURL constructs the DuckDuckGo search URL with parameters
func (d *DuckDuckGoProvider) buildSearchURL(query string) string {
	baseURL := "https://html.duckduckgo.com/html/"
	params := url.Values{}
	params.Set("q", query)
	params.Set("b", "0")
	params.Set("kl", "us-en")
	return baseURL + "?" + params.Encode()
}

var (
	ddgResultPattern  = regexp.MustCompile(`<div class="result[^"]*"[^>]*>(.*?)</div>`)
	ddgTitlePattern   = regexp.MustCompile(`<a[^>]*class="result__a"[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// parseSearchResults extracts search results from DuckDuckGo HTML response
func (d *DuckDuckGoProvider) parseSearchResults(html string, maxResults int) []Result {
	var results []Result

	resultMatches := ddgResultPattern.FindAllStringSubmatch(html, -1)

	for _, match := range resultMatches {
		if len(results) >= maxResults {
			break
		}

		resultHTML := match[1]

		titleMatch := ddgTitlePattern.FindStringSubmatch(resultHTML)
		if len(titleMatch) < 3 {
			continue
		}

		rawURL := titleMatch[1]
		title := cleanHTMLText(titleMatch[2])

		snippet := ""
		if snippetMatch := ddgSnippetPattern.FindStringSubmatch(resultHTML); len(snippetMatch) >= 2 {
			snippet = cleanHTMLText(snippetMatch[1])
		}

		// DuckDuckGo wraps result links in redirect URLs
		finalURL := d.extractFinalURL(rawURL)
		if finalURL == "" {
			continue
		}

		results = append(results, Result{
			URL:     finalURL,
			Title:   title,
			Content: snippet,
			Domain:  extractDomain(finalURL),
			Source:  "DuckDuckGo",
			Rank:    len(results) + 1,
		})
	}

	return results
}

// extractFinalURL extracts the actual URL from DuckDuckGo's redirect URL
func (d *DuckDuckGoProvider) extractFinalURL(redirectURL string) string {
	// Redirect URLs look like: /l/?uddg=https%3A//example.com/...&rut=...
	if strings.HasPrefix(redirectURL, "/l/?") {
		parsed, err := url.Parse(redirectURL)
		if err != nil {
			return ""
		}
		if uddg := parsed.Query().Get("uddg"); uddg != "" {
			decoded, err := url.QueryUnescape(uddg)
			if err != nil {
				return ""
			}
			return decoded
		}
	}

	if strings.HasPrefix(redirectURL, "http") {
		return redirectURL
	}

	return ""
}

// cleanHTMLText removes HTML tags and decodes common HTML entities
func cleanHTMLText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
