// Package web_search wraps external search providers. An unconfigured
// provider degrades to the no-op searcher so callers never special-case
// missing credentials.
package web_search

import (
	"context"

	"github.com/prospero-intel/prospero/config"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher finds recent web results for a query.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]Result, error)
	Configured() bool
}

// New picks the first configured provider: serper, then brave, then the
// always-available no-op.
func New(cfg config.SearchConfig) Searcher {
	if cfg.SerperAPIKey != "" {
		return &Serper{APIKey: cfg.SerperAPIKey}
	}
	if cfg.BraveAPIKey != "" {
		return &Brave{APIKey: cfg.BraveAPIKey}
	}
	return Nop{}
}

// Nop is the not-configured path: always succeeds with no results.
type Nop struct{}

func (Nop) Search(context.Context, string, int) ([]Result, error) { return nil, nil }
func (Nop) Configured() bool                                      { return false }
