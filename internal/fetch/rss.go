package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/prospero-intel/prospero/models"
)

// RSSStrategy parses RSS 2.0 and Atom feeds. A parse failure or an empty
// feed permanently self-disables the source's feed: the RSS URL is cleared
// and a failure note recorded so future runs go straight to HTML scraping.
type RSSStrategy struct {
	Client *http.Client
}

// NewRSSStrategy builds the feed strategy with a dedicated HTTP timeout.
func NewRSSStrategy(timeout time.Duration) *RSSStrategy {
	return &RSSStrategy{Client: &http.Client{Timeout: timeout}}
}

func (s *RSSStrategy) Name() string { return MethodRSS }

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Content string `xml:"encoded"` // content:encoded
	Desc    string `xml:"description"`
}

type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Updated string `xml:"updated"`
	Content string `xml:"content"`
	Summary string `xml:"summary"`
}

// Fetch downloads and parses the feed configured on the source.
func (s *RSSStrategy) Fetch(ctx context.Context, src *models.SourceDescriptor) Result {
	feedURL := src.RSSURL
	if feedURL == "" {
		return Result{Method: MethodRSS, Err: &models.FetchError{Source: src.Name, Err: fmt.Errorf("no rss url configured")}}
	}

	body, err := s.download(ctx, feedURL)
	if err != nil {
		s.disable(src, fmt.Sprintf("rss fetch failed: %v", err))
		return Result{Method: MethodRSS, Err: &models.FetchError{Source: src.Name, URL: feedURL, Err: err}}
	}

	articles, parseErr := parseFeed(body, src)
	if parseErr != nil {
		s.disable(src, fmt.Sprintf("rss parse failed: %v", parseErr))
		return Result{Method: MethodRSS, Err: &models.FetchError{Source: src.Name, URL: feedURL, Err: parseErr}}
	}
	if len(articles) == 0 {
		s.disable(src, "rss feed empty")
		return Result{Method: MethodRSS, Err: &models.FetchError{Source: src.Name, URL: feedURL, Err: fmt.Errorf("empty feed")}}
	}
	return Result{Articles: DedupeByLink(articles), Method: MethodRSS}
}

// disable is the permanent circuit breaker: subsequent runs see no RSS URL
// on this source and skip straight to the HTML strategies.
func (s *RSSStrategy) disable(src *models.SourceDescriptor, reason string) {
	src.RSSURL = ""
	src.FailureNotes = append(src.FailureNotes, time.Now().UTC().Format(time.RFC3339)+" "+reason)
}

func (s *RSSStrategy) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func parseFeed(body []byte, src *models.SourceDescriptor) ([]models.CandidateArticle, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return rssArticles(rss, src), nil
	}
	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		return atomArticles(atom, src), nil
	}
	return nil, fmt.Errorf("document is neither rss nor atom")
}

func rssArticles(doc rssDocument, src *models.SourceDescriptor) []models.CandidateArticle {
	out := make([]models.CandidateArticle, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		link, ok := AbsoluteLink(src.BaseURL, item.Link)
		if !ok || item.Title == "" {
			continue
		}
		content := item.Content
		if content == "" {
			content = item.Desc
		}
		out = append(out, models.CandidateArticle{
			ID:          uuid.NewString(),
			Headline:    item.Title,
			Link:        link,
			SourceName:  src.Name,
			Country:     src.Country,
			PublishedAt: parseFeedTime(item.PubDate),
			RawContent:  content,
		})
	}
	return out
}

func atomArticles(doc atomDocument, src *models.SourceDescriptor) []models.CandidateArticle {
	out := make([]models.CandidateArticle, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		href := ""
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				href = l.Href
				break
			}
		}
		link, ok := AbsoluteLink(src.BaseURL, href)
		if !ok || entry.Title == "" {
			continue
		}
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		out = append(out, models.CandidateArticle{
			ID:          uuid.NewString(),
			Headline:    entry.Title,
			Link:        link,
			SourceName:  src.Name,
			Country:     src.Country,
			PublishedAt: parseFeedTime(entry.Updated),
			RawContent:  content,
		})
	}
	return out
}

func parseFeedTime(value string) *time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "Mon, 2 Jan 2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
