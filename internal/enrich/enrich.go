// Package enrich retrieves full article text for relevant candidates using
// the fetch strategies plus a readability-style fallback extractor.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/prospero-intel/prospero/internal/fetch"
	"github.com/prospero-intel/prospero/models"
)

// Enricher fills CandidateArticle.RawContent with full body text.
type Enricher struct {
	Client     *http.Client
	Browser    *fetch.Browser // nil when headless fetch is disabled
	Extractors *fetch.ExtractorRegistry
	MinChars   int
	Preview    int
	UserAgent  string
	Logger     *log.Logger
}

// NewEnricher builds an enricher with the given limits.
func NewEnricher(timeout time.Duration, browser *fetch.Browser, extractors *fetch.ExtractorRegistry, minChars, preview int, userAgent string, logger *log.Logger) *Enricher {
	return &Enricher{
		Client:     &http.Client{Timeout: timeout},
		Browser:    browser,
		Extractors: extractors,
		MinChars:   minChars,
		Preview:    preview,
		UserAgent:  userAgent,
		Logger:     logger,
	}
}

// Enrich populates the article's RawContent in place. On failure the
// article is marked with an explicit enrichment error and a content preview
// so the funnel can distinguish "extraction failed" from "not relevant".
func (e *Enricher) Enrich(ctx context.Context, article *models.CandidateArticle, src *models.SourceDescriptor) error {
	// A per-source custom extractor is exclusive when configured.
	if src != nil && src.Extractor != "" {
		return e.enrichCustom(ctx, article, src)
	}

	// RSS may already have shipped a full body; skip the network round trip.
	if existing := htmlToText(article.RawContent); len(existing) >= e.MinChars {
		article.RawContent = existing
		return nil
	}

	html, err := e.fetchPage(ctx, article.Link, src)
	if err != nil {
		e.markFailed(article, fmt.Sprintf("fetch failed: %v", err), "")
		return err
	}

	selectorText := ""
	if src != nil && src.ContentSelector != "" {
		if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html)); derr == nil {
			selectorText = fetch.SelectorText(doc, src.ContentSelector)
		}
	}

	best := selectorText
	if len(best) < e.MinChars {
		// Readability pass over the whole document; keep whichever is longer.
		if text := e.readable(html, article.Link); len(text) > len(best) {
			best = text
		}
	}

	if len(best) < e.MinChars {
		err := &models.ExtractionError{
			Source:   article.SourceName,
			Selector: contentSelector(src),
			Reason:   fmt.Sprintf("extracted %d chars, need %d", len(best), e.MinChars),
		}
		e.markFailed(article, err.Reason, best)
		return err
	}

	article.RawContent = best
	return nil
}

func (e *Enricher) enrichCustom(ctx context.Context, article *models.CandidateArticle, src *models.SourceDescriptor) error {
	fn, err := e.Extractors.Resolve(src.Extractor)
	if err != nil {
		e.markFailed(article, err.Error(), "")
		return err
	}
	html, err := e.fetchPage(ctx, article.Link, src)
	if err != nil {
		e.markFailed(article, fmt.Sprintf("fetch failed: %v", err), "")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.markFailed(article, fmt.Sprintf("parse failed: %v", err), "")
		return err
	}
	text := fn(doc, src)
	if len(text) < e.MinChars {
		xerr := &models.ExtractionError{
			Source:   article.SourceName,
			Selector: "extractor:" + src.Extractor,
			Reason:   fmt.Sprintf("custom extractor yielded %d chars, need %d", len(text), e.MinChars),
		}
		e.markFailed(article, xerr.Reason, text)
		return xerr
	}
	article.RawContent = text
	return nil
}

func (e *Enricher) fetchPage(ctx context.Context, link string, src *models.SourceDescriptor) (string, error) {
	if src != nil && src.Dynamic && e.Browser != nil {
		return e.Browser.FetchHTML(ctx, link, src.WaitSelector)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.UserAgent)
	resp, err := e.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (e *Enricher) readable(html, link string) string {
	pageURL, err := url.Parse(link)
	if err != nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func (e *Enricher) markFailed(article *models.CandidateArticle, reason, preview string) {
	article.EnrichmentErr = reason
	if preview == "" {
		preview = article.RawContent
	}
	if len(preview) > e.Preview {
		preview = preview[:e.Preview]
	}
	article.ContentPreview = preview
	if e.Logger != nil {
		e.Logger.Printf("enrichment failed for %s: %s", article.Link, reason)
	}
}

func contentSelector(src *models.SourceDescriptor) string {
	if src == nil {
		return ""
	}
	return src.ContentSelector
}

// htmlToText strips markup from feed-supplied content.
func htmlToText(content string) string {
	content = strings.TrimSpace(content)
	if content == "" || !strings.Contains(content, "<") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
