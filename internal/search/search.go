// Package search queries the registry's HTML search surface.
//
// The registry has no structured search API, so results are scraped. Two
// extraction strategies run in order: a markup-aware pass over the result
// snippets, and a permissive link-pattern pass used only when the first
// yields nothing. Markup drift therefore degrades results to fewer fields
// instead of failing outright.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/git-pkgs/pypi/client"
	"github.com/git-pkgs/pypi/internal/core"
)

// DefaultLimit is the result cap applied by callers that pass no preference.
const DefaultLimit = 20

// browserUserAgent identifies the scraper; default-looking clients get
// rate-limited or blocked by the search surface.
const browserUserAgent = "Mozilla/5.0 (compatible; git-pkgs-pypi/1.0)"

var (
	projectPathRE = regexp.MustCompile(`/project/([^/]+)/`)
	versionRE     = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:[a-zA-Z0-9]+)?`)

	// fallbackLinkRE matches /project/<name>/-shaped hyperlinks in raw markup.
	fallbackLinkRE = regexp.MustCompile(`href="/project/([^/"]+)/[^"]*"[^>]*>([^<]+)</a>`)
)

// fallbackWindow bounds how far past a matched link the fallback pass looks
// for a version-shaped substring.
const fallbackWindow = 200

// Engine scrapes search results.
type Engine struct {
	client *client.Client
	urls   *client.URLs
}

// New creates a search engine on top of the given transport.
func New(c *client.Client, urls *client.URLs) *Engine {
	return &Engine{client: c, urls: urls}
}

// Search returns up to limit results for query. Zero results is a valid,
// successful outcome; only transport failures and non-2xx statuses error.
// A limit of zero or less returns an empty list without touching the
// network.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if limit <= 0 {
		return []core.SearchResult{}, nil
	}

	body, err := e.client.Get(ctx, e.urls.Search(query), map[string]string{
		"User-Agent": browserUserAgent,
	})
	if err != nil {
		var reqErr *client.RequestError
		if errors.As(err, &reqErr) {
			return nil, fmt.Errorf("searching for %q: %w", query, err)
		}
		// Search has no "absent" case: a 404 here means the surface moved.
		return nil, err
	}

	results := extractStructured(body)
	if len(results) == 0 {
		results = extractFallback(body, limit)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// extractStructured walks the result-snippet markup: an anchor with a
// snippet-like class opens a result, a version-classed span and a
// description-classed paragraph inside it fill the fields. Both current and
// shortened class tokens are recognized.
func extractStructured(body []byte) []core.SearchResult {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var results []core.SearchResult
	doc.Find("a.package-snippet, a.snippet").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := projectPathRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		res := core.SearchResult{Name: m[1]}

		verText := strings.TrimSpace(sel.Find("span.package-snippet__version, span.version").First().Text())
		// Filter through the version pattern so stray span text is not
		// mistaken for a version.
		if v := versionRE.FindString(verText); v != "" {
			res.Version = v
		}
		res.Summary = strings.TrimSpace(sel.Find("p.package-snippet__description, p.description").First().Text())
		results = append(results, res)
	})
	return results
}

// extractFallback scans raw markup for project links when the structured
// pass found nothing, deduplicating by name in first-seen order. A bounded
// window after each link is searched for a version-shaped substring.
func extractFallback(body []byte, limit int) []core.SearchResult {
	html := string(body)
	seen := make(map[string]bool)
	var results []core.SearchResult

	for _, loc := range fallbackLinkRE.FindAllStringSubmatchIndex(html, -1) {
		name := html[loc[2]:loc[3]]
		if seen[name] {
			continue
		}
		seen[name] = true

		end := loc[1] + fallbackWindow
		if end > len(html) {
			end = len(html)
		}
		window := html[loc[0]:end]

		version := core.UnknownVersion
		if idx := strings.Index(window, name); idx >= 0 {
			if v := versionRE.FindString(window[idx+len(name):]); v != "" {
				version = v
			}
		}

		results = append(results, core.SearchResult{Name: name, Version: version})
		if len(results) >= limit {
			break
		}
	}
	return results
}
