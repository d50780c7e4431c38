package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/prospero-intel/prospero/models"
)

// StaticStrategy fetches the source front page over plain HTTP and pulls
// headline anchors via the configured CSS selector, falling back to JSON-LD
// metadata when the selector yields nothing.
type StaticStrategy struct {
	Client    *http.Client
	UserAgent string
	Sink      DebugSink
}

// NewStaticStrategy builds the static HTTP strategy.
func NewStaticStrategy(timeout time.Duration, userAgent string, sink DebugSink) *StaticStrategy {
	if sink == nil {
		sink = NopDebugSink{}
	}
	return &StaticStrategy{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		Sink:      sink,
	}
}

func (s *StaticStrategy) Name() string { return MethodStatic }

// Fetch retrieves and parses the front page.
func (s *StaticStrategy) Fetch(ctx context.Context, src *models.SourceDescriptor) Result {
	html, err := s.download(ctx, src)
	if err != nil {
		return Result{Method: MethodStatic, Err: err}
	}
	return ExtractFromHTML(html, src, MethodStatic, s.Sink)
}

func (s *StaticStrategy) download(ctx context.Context, src *models.SourceDescriptor) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.BaseURL, nil)
	if err != nil {
		return "", &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: err}
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: err}
	}
	html := string(raw)

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests || looksLikeBotChallenge(html) {
		s.Sink.Dump(src.Name, src.LinkSelector, fmt.Sprintf("suspected bot challenge (status %d)", resp.StatusCode), html)
		return "", &models.FetchError{Source: src.Name, URL: src.BaseURL, BotSuspect: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return html, nil
}

// ExtractFromHTML turns a front page document into candidate articles.
// Shared by the static and browser strategies so both report structural
// failures to the debug sink the same way.
func ExtractFromHTML(html string, src *models.SourceDescriptor, method string, sink DebugSink) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Method: method, Err: &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: err}}
	}

	var articles []models.CandidateArticle
	if src.LinkSelector != "" {
		articles = selectAnchors(doc, src)
	}
	if len(articles) == 0 {
		// Selector missed (or none configured): try structured metadata.
		articles = ExtractJSONLD(doc, src)
	}
	if len(articles) == 0 {
		if sink != nil {
			sink.Dump(src.Name, src.LinkSelector, "selector matched 0 elements", html)
		}
		return Result{Method: method, Err: &models.ExtractionError{
			Source:   src.Name,
			Selector: src.LinkSelector,
			Reason:   "no headlines extracted",
		}}
	}
	return Result{Articles: DedupeByLink(articles), Method: method}
}

func selectAnchors(doc *goquery.Document, src *models.SourceDescriptor) []models.CandidateArticle {
	var out []models.CandidateArticle
	doc.Find(src.LinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Find("a").First().Attr("href")
		}
		if !ok {
			return
		}
		link, valid := AbsoluteLink(src.BaseURL, href)
		if !valid {
			return
		}
		headline := strings.TrimSpace(sel.Text())
		if headline == "" {
			return
		}
		out = append(out, models.CandidateArticle{
			ID:         uuid.NewString(),
			Headline:   collapseWhitespace(headline),
			Link:       link,
			SourceName: src.Name,
			Country:    src.Country,
		})
	})
	return out
}

func looksLikeBotChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range []string{"captcha", "cf-challenge", "are you a robot", "access denied", "unusual traffic"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
