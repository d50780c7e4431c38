package fetch

import (
	"sync"
	"testing"

	"github.com/prospero-intel/prospero/models"
)

type recordingSink struct {
	mu    sync.Mutex
	dumps []string
}

func (r *recordingSink) Dump(sourceName, selector, reason, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dumps = append(r.dumps, sourceName+"|"+selector+"|"+reason)
}

const frontPage = `<html><body>
<div class="teaser"><a href="/story/1">  Billionaire   exits fund </a></div>
<div class="teaser"><a href="/story/2">Estate sold</a></div>
<div class="teaser"><a href="/story/1">Billionaire exits fund</a></div>
<div class="teaser"><a href="ftp://bad/3">Ignored scheme</a></div>
</body></html>`

func TestExtractFromHTMLSelectors(t *testing.T) {
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example", LinkSelector: "div.teaser"}
	res := ExtractFromHTML(frontPage, src, MethodStatic, nil)
	if res.Err != nil {
		t.Fatalf("extract: %v", res.Err)
	}
	if len(res.Articles) != 2 {
		t.Fatalf("extracted %d articles, want 2", len(res.Articles))
	}
	if res.Articles[0].Headline != "Billionaire exits fund" {
		t.Fatalf("whitespace not collapsed: %q", res.Articles[0].Headline)
	}
	if res.Articles[0].Link != "https://news.example/story/1" {
		t.Fatalf("link not absolutized: %q", res.Articles[0].Link)
	}
}

func TestExtractFromHTMLDumpsOnSelectorMiss(t *testing.T) {
	sink := &recordingSink{}
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example", LinkSelector: "div.nonexistent"}
	res := ExtractFromHTML("<html><body><p>nothing here</p></body></html>", src, MethodStatic, sink)
	if res.Err == nil {
		t.Fatalf("expected extraction error")
	}
	if _, ok := res.Err.(*models.ExtractionError); !ok {
		t.Fatalf("expected ExtractionError, got %T", res.Err)
	}
	if len(sink.dumps) != 1 {
		t.Fatalf("selector miss must dump html, got %d dumps", len(sink.dumps))
	}
}

func TestExtractFromHTMLJSONLDFallback(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
	{"@type":"ItemList","itemListElement":[
	  {"@type":"ListItem","item":{"@type":"NewsArticle","headline":"Acquisition closes","url":"/deals/1","datePublished":"2024-06-01T08:00:00Z"}},
	  {"@type":"ListItem","item":{"@type":"NewsArticle","headline":"","url":"/deals/2"}}
	]}</script></head><body></body></html>`
	src := &models.SourceDescriptor{Name: "test", BaseURL: "https://news.example", LinkSelector: "div.missing"}
	res := ExtractFromHTML(page, src, MethodStatic, nil)
	if res.Err != nil {
		t.Fatalf("extract: %v", res.Err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("jsonld fallback produced %d articles, want 1", len(res.Articles))
	}
	a := res.Articles[0]
	if a.Headline != "Acquisition closes" || a.Link != "https://news.example/deals/1" || a.PublishedAt == nil {
		t.Fatalf("unexpected jsonld article: %+v", a)
	}
}

func TestLooksLikeBotChallenge(t *testing.T) {
	if !looksLikeBotChallenge("<html>Please complete the CAPTCHA to continue</html>") {
		t.Fatalf("captcha page not detected")
	}
	if looksLikeBotChallenge("<html>Regular news front page</html>") {
		t.Fatalf("false positive on normal page")
	}
}
