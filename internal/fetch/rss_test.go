package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prospero-intel/prospero/models"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>Founder sells stake</title><link>/news/1</link><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate><description>Body text</description></item>
<item><title>Duplicate</title><link>/news/1</link></item>
<item><title></title><link>/news/2</link></item>
</channel></rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry><title>IPO filed</title><link rel="alternate" href="https://news.example/ipo"/><updated>2024-05-01T10:00:00Z</updated><summary>Filing text</summary></entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example"}
	articles, err := parseFeed([]byte(sampleRSS), src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(articles) != 2 { // titleless item dropped, dup kept until DedupeByLink
		t.Fatalf("parsed %d articles, want 2", len(articles))
	}
	a := articles[0]
	if a.Link != "https://news.example/news/1" {
		t.Fatalf("link not absolutized: %q", a.Link)
	}
	if a.PublishedAt == nil {
		t.Fatalf("pubDate not parsed")
	}
	if a.RawContent != "Body text" {
		t.Fatalf("description not captured as raw content: %q", a.RawContent)
	}
}

func TestParseFeedAtom(t *testing.T) {
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example"}
	articles, err := parseFeed([]byte(sampleAtom), src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("parsed %d articles, want 1", len(articles))
	}
	if articles[0].Headline != "IPO filed" || articles[0].RawContent != "Filing text" {
		t.Fatalf("unexpected atom article: %+v", articles[0])
	}
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example"}
	if _, err := parseFeed([]byte("<html><body>not a feed</body></html>"), src); err == nil {
		t.Fatalf("expected parse error for non-feed document")
	}
}

func TestFetchSelfDisablesOnMalformedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>broken</html>"))
	}))
	defer server.Close()

	src := &models.SourceDescriptor{Name: "test", BaseURL: server.URL, RSSURL: server.URL + "/feed"}
	strategy := NewRSSStrategy(5 * time.Second)

	res := strategy.Fetch(context.Background(), src)
	if res.Err == nil {
		t.Fatalf("expected error for malformed feed")
	}
	if src.RSSURL != "" {
		t.Fatalf("rss url not cleared after failure")
	}
	if len(src.FailureNotes) != 1 || !strings.Contains(src.FailureNotes[0], "rss parse failed") {
		t.Fatalf("failure note missing: %v", src.FailureNotes)
	}

	// Next run: no RSS URL means the strategy refuses immediately without
	// touching the network.
	res = strategy.Fetch(context.Background(), src)
	if res.Err == nil {
		t.Fatalf("expected immediate refusal without rss url")
	}
	if len(src.FailureNotes) != 1 {
		t.Fatalf("refusal must not append another note: %v", src.FailureNotes)
	}
}

func TestFetchDedupesAndParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example", RSSURL: server.URL}
	res := NewRSSStrategy(5 * time.Second).Fetch(context.Background(), src)
	if res.Err != nil {
		t.Fatalf("fetch: %v", res.Err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("expected duplicate link collapsed, got %d articles", len(res.Articles))
	}
	if src.RSSURL == "" {
		t.Fatalf("healthy feed must not self-disable")
	}
}
