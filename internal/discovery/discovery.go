// Package discovery finds probable recipe URLs on a seed page.
package discovery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/barcraft/harvester/internal/harvest"
)

// Result is the outcome of scanning one seed page.
type Result struct {
	// Candidates are normalized same-domain URLs that look like recipe
	// pages, in document order, capped by the policy link budget.
	Candidates []string
	// Blocked maps a rejection label to the URLs it filtered out.
	Blocked map[string][]string
}

// Rejection labels used in Result.Blocked.
const (
	BlockOffDomain   = "off_domain"
	BlockBlockedPath = "blocked_path"
	BlockNoPathHint  = "no_recipe_path_hint"
	BlockMalformed   = "malformed"
)

// Discover extracts candidate recipe links from a fetched seed page.
func Discover(page harvest.Page, policy harvest.SourcePolicy) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return Result{}, err
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return Result{}, err
	}

	result := Result{Blocked: make(map[string][]string)}
	seen := make(map[string]struct{})
	limit := policy.MaxLinks
	if limit <= 0 {
		limit = 40
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			result.Blocked[BlockMalformed] = append(result.Blocked[BlockMalformed], href)
			return true
		}
		resolved := base.ResolveReference(ref)
		normalized, err := harvest.NormalizeURL(resolved.String())
		if err != nil {
			result.Blocked[BlockMalformed] = append(result.Blocked[BlockMalformed], href)
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		seen[normalized] = struct{}{}

		if label := classify(normalized, policy); label != "" {
			result.Blocked[label] = append(result.Blocked[label], normalized)
			return true
		}
		result.Candidates = append(result.Candidates, normalized)
		return len(result.Candidates) < limit
	})

	return result, nil
}

// classify returns a rejection label, or "" for a viable candidate.
func classify(normalized string, policy harvest.SourcePolicy) string {
	if !harvest.DomainMatches(harvest.Hostname(normalized), policy.Domain) {
		return BlockOffDomain
	}
	lower := strings.ToLower(normalized)
	for _, hint := range policy.Parser.BlockedPathHints {
		if hint != "" && strings.Contains(lower, strings.ToLower(hint)) {
			return BlockBlockedPath
		}
	}
	if len(policy.Parser.RecipePathHints) > 0 {
		for _, hint := range policy.Parser.RecipePathHints {
			if hint != "" && strings.Contains(lower, strings.ToLower(hint)) {
				return ""
			}
		}
		return BlockNoPathHint
	}
	return ""
}
