// Package compliance gates URLs and fetched pages before extraction.
package compliance

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/barcraft/harvester/internal/harvest"
)

// Paywall markers checked against page text, lowercase.
var paywallMarkers = []string{
	"subscribe to continue",
	"members only",
	"subscription required",
}

// PageMeta is what the checker reads off a fetched document.
type PageMeta struct {
	RobotsDirectives []string
	CanonicalURL     string
	Title            string
	Text             string
}

// Checker evaluates the compliance rules for a domain policy.
type Checker struct {
	robots harvest.RobotsPolicy
}

// New builds a Checker. robots may be nil when robots.txt enforcement is
// handled elsewhere.
func New(robots harvest.RobotsPolicy) *Checker {
	return &Checker{robots: robots}
}

// CheckURL runs the pre-fetch rules: the domain must have an active policy
// and the URL must be allowed by robots.txt when the policy asks for it.
// It returns every reason that applies, not just the first.
func (c *Checker) CheckURL(ctx context.Context, policy harvest.SourcePolicy, ok bool, url string) []harvest.ComplianceReason {
	var reasons []harvest.ComplianceReason
	if !ok {
		return append(reasons, harvest.ReasonDomainNotApproved)
	}
	if !policy.Active {
		reasons = append(reasons, harvest.ReasonPolicyInactive)
	}
	if policy.RespectRobots && c.robots != nil && !c.robots.Allowed(ctx, url) {
		reasons = append(reasons, harvest.ReasonRobotsDisallowed)
	}
	return reasons
}

// CheckPage runs the post-fetch rules against extracted page metadata.
func (c *Checker) CheckPage(pageURL string, meta PageMeta) []harvest.ComplianceReason {
	var reasons []harvest.ComplianceReason

	for _, d := range meta.RobotsDirectives {
		if d == "noindex" || d == "none" {
			reasons = append(reasons, harvest.ReasonNoindex)
			break
		}
	}

	if meta.CanonicalURL != "" && !harvest.SameDomain(meta.CanonicalURL, pageURL) {
		reasons = append(reasons, harvest.ReasonCanonicalMismatch)
	}

	text := strings.ToLower(meta.Text)
	for _, marker := range paywallMarkers {
		if strings.Contains(text, marker) {
			reasons = append(reasons, harvest.ReasonPaywalled)
			break
		}
	}

	return reasons
}

// ExtractMeta parses the robots meta tag, canonical link, title, and body
// text out of an HTML document.
func ExtractMeta(body []byte) (PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	var meta PageMeta
	doc.Find(`meta[name="robots"]`).Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		for _, part := range strings.Split(content, ",") {
			if d := strings.ToLower(strings.TrimSpace(part)); d != "" {
				meta.RobotsDirectives = append(meta.RobotsDirectives, d)
			}
		}
	})
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		meta.CanonicalURL = strings.TrimSpace(href)
	}
	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.Text = doc.Find("body").Text()
	return meta, nil
}

// BlockedPath reports whether the URL path matches any of the policy's
// blocked path hints.
func BlockedPath(url string, policy harvest.SourcePolicy) bool {
	lower := strings.ToLower(url)
	for _, hint := range policy.Parser.BlockedPathHints {
		if hint != "" && strings.Contains(lower, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}
