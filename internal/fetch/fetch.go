// Package fetch implements the per-source scraping strategies (RSS, static
// HTTP, headless browser) and the acquisition orchestrator that fans them
// out across the source registry.
package fetch

import (
	"context"
	"net/url"
	"strings"

	"github.com/prospero-intel/prospero/models"
)

// Method names reported in source health records.
const (
	MethodRSS     = "rss"
	MethodStatic  = "static"
	MethodBrowser = "browser"
	MethodJSONLD  = "jsonld"
	MethodCustom  = "custom"
)

// Result is the outcome of one strategy attempt against one source.
type Result struct {
	Articles []models.CandidateArticle
	Method   string
	Err      error
}

// Strategy produces candidate articles for a source descriptor. Strategies
// may mutate the descriptor's health fields (the RSS strategy clears the
// feed URL when it self-disables); the registry writeback happens later in
// one batched update.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, src *models.SourceDescriptor) Result
}

// AbsoluteLink resolves a possibly relative href against the source base
// URL and rejects anything that is not http(s).
func AbsoluteLink(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		u = baseURL.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// DedupeByLink keeps the first article seen for each final URL.
func DedupeByLink(articles []models.CandidateArticle) []models.CandidateArticle {
	seen := make(map[string]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		if a.Link == "" {
			continue
		}
		if _, ok := seen[a.Link]; ok {
			continue
		}
		seen[a.Link] = struct{}{}
		out = append(out, a)
	}
	return out
}
