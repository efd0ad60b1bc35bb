package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Keywords that mark a page as a client-rendered shell.
var defaultShellKeywords = []string{
	"enable javascript",
	"javascript is required",
	"__next_data__",
	"window.__nuxt__",
}

// ShellDetector decides whether a fetched page is an empty JS shell that
// should be retried through the headless renderer.
type ShellDetector struct {
	minHTMLBytes int
	keywords     [][]byte
}

// NewShellDetector constructs a detector. Pages smaller than minBytes or
// containing one of the keywords are treated as JS shells. Pass nil keywords
// to use the defaults.
func NewShellDetector(minBytes int, keywords []string) *ShellDetector {
	if keywords == nil {
		keywords = defaultShellKeywords
	}
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &ShellDetector{
		minHTMLBytes: minBytes,
		keywords:     lowered,
	}
}

// NeedsRender inspects the page body for signals that JS rendering is required.
func (d *ShellDetector) NeedsRender(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	if d.containsKeywords(body) {
		return true
	}
	return d.emptyBody(body)
}

func (d *ShellDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

// emptyBody reports whether the document body has almost no text content,
// which usually means the markup arrives from a script bundle.
func (d *ShellDetector) emptyBody(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	return len(text) < 40
}
