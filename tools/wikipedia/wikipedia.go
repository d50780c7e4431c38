// Package wikipedia fetches page summaries from the Wikipedia REST API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prospero-intel/prospero/config"
)

// Summary is the extract for one page.
type Summary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
}

// Client talks to the page summary endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client from config.
func New(cfg config.WikipediaConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the summary for a title. Disambiguation pages are
// rejected: their extracts list unrelated meanings and would pollute
// synthesis context.
func (c *Client) Lookup(ctx context.Context, title string) (*Summary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("wikipedia: empty title")
	}
	endpoint := c.endpoint + "/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("wikipedia: no page for %q", title)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia: status %d for %q", resp.StatusCode, title)
	}

	var raw struct {
		Title   string `json:"title"`
		Type    string `json:"type"`
		Extract string `json:"extract"`
		Content struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw.Type == "disambiguation" {
		return nil, fmt.Errorf("wikipedia: %q is a disambiguation page", title)
	}
	if strings.TrimSpace(raw.Extract) == "" {
		return nil, fmt.Errorf("wikipedia: empty extract for %q", title)
	}
	return &Summary{Title: raw.Title, Extract: raw.Extract, URL: raw.Content.Desktop.Page}, nil
}
