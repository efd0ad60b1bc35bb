package compliance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barcraft/harvester/internal/harvest"
)

type fakeRobots struct{ allow bool }

func (f fakeRobots) Allowed(context.Context, string) bool { return f.allow }

func TestCheckURLDomainNotApproved(t *testing.T) {
	c := New(fakeRobots{allow: true})
	reasons := c.CheckURL(context.Background(), harvest.SourcePolicy{}, false, "https://unknown.com/x")
	require.Equal(t, []harvest.ComplianceReason{harvest.ReasonDomainNotApproved}, reasons)
}

func TestCheckURLInactivePolicy(t *testing.T) {
	c := New(fakeRobots{allow: true})
	policy := harvest.SourcePolicy{Domain: "example.com", Active: false}
	reasons := c.CheckURL(context.Background(), policy, true, "https://example.com/x")
	require.Contains(t, reasons, harvest.ReasonPolicyInactive)
}

func TestCheckURLRobotsDisallowed(t *testing.T) {
	c := New(fakeRobots{allow: false})
	policy := harvest.SourcePolicy{Domain: "example.com", Active: true, RespectRobots: true}
	reasons := c.CheckURL(context.Background(), policy, true, "https://example.com/x")
	require.Equal(t, []harvest.ComplianceReason{harvest.ReasonRobotsDisallowed}, reasons)
}

func TestCheckURLRobotsIgnoredWhenPolicySays(t *testing.T) {
	c := New(fakeRobots{allow: false})
	policy := harvest.SourcePolicy{Domain: "example.com", Active: true, RespectRobots: false}
	reasons := c.CheckURL(context.Background(), policy, true, "https://example.com/x")
	require.Empty(t, reasons)
}

func TestCheckPageNoindex(t *testing.T) {
	c := New(nil)
	meta := PageMeta{RobotsDirectives: []string{"noindex", "nofollow"}}
	reasons := c.CheckPage("https://example.com/x", meta)
	require.Contains(t, reasons, harvest.ReasonNoindex)
}

func TestCheckPageCanonicalMismatch(t *testing.T) {
	c := New(nil)
	meta := PageMeta{CanonicalURL: "https://other.com/daiquiri"}
	reasons := c.CheckPage("https://example.com/daiquiri", meta)
	require.Contains(t, reasons, harvest.ReasonCanonicalMismatch)

	meta = PageMeta{CanonicalURL: "https://www.example.com/daiquiri"}
	require.Empty(t, c.CheckPage("https://example.com/daiquiri", meta))
}

func TestCheckPagePaywall(t *testing.T) {
	c := New(nil)
	meta := PageMeta{Text: "Great drink. Subscribe to Continue reading."}
	reasons := c.CheckPage("https://example.com/x", meta)
	require.Contains(t, reasons, harvest.ReasonPaywalled)
}

func TestCheckPageCollectsAllReasons(t *testing.T) {
	c := New(nil)
	meta := PageMeta{
		RobotsDirectives: []string{"noindex"},
		CanonicalURL:     "https://other.com/x",
		Text:             "members only content",
	}
	reasons := c.CheckPage("https://example.com/x", meta)
	require.Len(t, reasons, 3)
}

func TestExtractMeta(t *testing.T) {
	html := `<html><head>
		<title>Daiquiri Recipe</title>
		<meta name="robots" content="NOINDEX, nofollow">
		<link rel="canonical" href="https://example.com/daiquiri">
	</head><body><p>Shake well.</p></body></html>`

	meta, err := ExtractMeta([]byte(html))
	require.NoError(t, err)
	require.Equal(t, "Daiquiri Recipe", meta.Title)
	require.Equal(t, []string{"noindex", "nofollow"}, meta.RobotsDirectives)
	require.Equal(t, "https://example.com/daiquiri", meta.CanonicalURL)
	require.Contains(t, meta.Text, "Shake well.")
}

func TestBlockedPath(t *testing.T) {
	policy := harvest.SourcePolicy{Parser: harvest.ParserProfile{BlockedPathHints: []string{"/tag/", "/author/"}}}
	require.True(t, BlockedPath("https://example.com/tag/rum", policy))
	require.False(t, BlockedPath("https://example.com/recipes/daiquiri", policy))
}
