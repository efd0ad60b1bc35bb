package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Recipes/", "https://example.com/Recipes"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443/a?utm_source=x#frag", "https://example.com/a"},
		{"https://example.com/", "https://example.com/"},
		{"  https://example.com/daiquiri ", "https://example.com/daiquiri"},
	}
	for _, tc := range tests {
		got, err := NormalizeURL(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestHostname(t *testing.T) {
	require.Equal(t, "example.com", Hostname("https://www.Example.com/recipes"))
	require.Equal(t, "bar.example.com", Hostname("https://bar.example.com/x"))
	require.Equal(t, "", Hostname("://bad"))
}

func TestSameDomain(t *testing.T) {
	require.True(t, SameDomain("https://www.example.com/a", "https://example.com/b"))
	require.False(t, SameDomain("https://example.com/a", "https://other.com/b"))
}

func TestDomainMatches(t *testing.T) {
	require.True(t, DomainMatches("www.example.com", "example.com"))
	require.True(t, DomainMatches("recipes.example.com", "example.com"))
	require.False(t, DomainMatches("evilexample.com", "example.com"))
}

func TestBucketForConfidence(t *testing.T) {
	require.Equal(t, ConfidenceHigh, BucketForConfidence(0.9))
	require.Equal(t, ConfidenceHigh, BucketForConfidence(0.8))
	require.Equal(t, ConfidenceMedium, BucketForConfidence(0.79))
	require.Equal(t, ConfidenceMedium, BucketForConfidence(0.6))
	require.Equal(t, ConfidenceLow, BucketForConfidence(0.59))
}
