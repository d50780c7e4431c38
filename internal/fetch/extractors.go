package fetch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/prospero-intel/prospero/models"
)

// ExtractorFunc is a pure per-site extraction function: given a parsed
// document and its source descriptor it returns the article body text, or
// empty when the page does not match.
type ExtractorFunc func(doc *goquery.Document, src *models.SourceDescriptor) string

// ExtractorRegistry maps extractor keys to functions. Sources naming a
// custom extractor are resolved once at source-load time, not per call.
type ExtractorRegistry struct {
	mu    sync.RWMutex
	funcs map[string]ExtractorFunc
}

// NewExtractorRegistry creates an empty registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{funcs: make(map[string]ExtractorFunc)}
}

// Register adds or replaces an extractor under the given key.
func (r *ExtractorRegistry) Register(key string, fn ExtractorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key] = fn
}

// Resolve returns the extractor for a key.
func (r *ExtractorRegistry) Resolve(key string) (ExtractorFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[key]
	if !ok {
		return nil, fmt.Errorf("unknown extractor %q", key)
	}
	return fn, nil
}

// DefaultExtractors returns the built-in custom extractors.
func DefaultExtractors() *ExtractorRegistry {
	reg := NewExtractorRegistry()
	reg.Register("paragraphs", func(doc *goquery.Document, _ *models.SourceDescriptor) string {
		var parts []string
		doc.Find("article p, main p").Each(func(_ int, sel *goquery.Selection) {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		return strings.Join(parts, "\n\n")
	})
	reg.Register("meta-description", func(doc *goquery.Document, _ *models.SourceDescriptor) string {
		if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			return strings.TrimSpace(desc)
		}
		desc, _ := doc.Find(`meta[name="description"]`).Attr("content")
		return strings.TrimSpace(desc)
	})
	return reg
}

// SelectorText concatenates the text of every node matched by the selector,
// de-duplicating repeated blocks (some sites render the body twice for
// mobile and desktop layouts).
func SelectorText(doc *goquery.Document, selector string) string {
	seen := make(map[string]struct{})
	var parts []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		text := collapseWhitespace(sel.Text())
		if text == "" {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	})
	return strings.Join(parts, "\n\n")
}
