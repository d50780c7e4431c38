package fetch

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/prospero-intel/prospero/models"
)

// ExtractJSONLD pulls NewsArticle / ItemList entries out of embedded
// script[type=application/ld+json] blocks. Used as a fallback when the
// configured link selector matches nothing.
func ExtractJSONLD(doc *goquery.Document, src *models.SourceDescriptor) []models.CandidateArticle {
	var out []models.CandidateArticle
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var payload interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return
		}
		out = append(out, jsonldWalk(payload, src)...)
	})
	return DedupeByLink(out)
}

func jsonldWalk(node interface{}, src *models.SourceDescriptor) []models.CandidateArticle {
	switch v := node.(type) {
	case []interface{}:
		var out []models.CandidateArticle
		for _, item := range v {
			out = append(out, jsonldWalk(item, src)...)
		}
		return out
	case map[string]interface{}:
		switch jsonldType(v) {
		case "NewsArticle", "Article", "ReportageNewsArticle":
			if a, ok := jsonldArticle(v, src); ok {
				return []models.CandidateArticle{a}
			}
		case "ItemList":
			var out []models.CandidateArticle
			if elems, ok := v["itemListElement"].([]interface{}); ok {
				for _, el := range elems {
					out = append(out, jsonldWalk(el, src)...)
				}
			}
			return out
		case "ListItem":
			if item, ok := v["item"]; ok {
				return jsonldWalk(item, src)
			}
			if a, ok := jsonldArticle(v, src); ok {
				return []models.CandidateArticle{a}
			}
		}
		// Graph containers wrap the interesting nodes one level down.
		if graph, ok := v["@graph"]; ok {
			return jsonldWalk(graph, src)
		}
	}
	return nil
}

func jsonldType(node map[string]interface{}) string {
	switch t := node["@type"].(type) {
	case string:
		return t
	case []interface{}:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func jsonldArticle(node map[string]interface{}, src *models.SourceDescriptor) (models.CandidateArticle, bool) {
	headline, _ := node["headline"].(string)
	if headline == "" {
		headline, _ = node["name"].(string)
	}
	rawURL, _ := node["url"].(string)
	if rawURL == "" {
		if mainEntity, ok := node["mainEntityOfPage"].(map[string]interface{}); ok {
			rawURL, _ = mainEntity["@id"].(string)
		}
	}
	link, ok := AbsoluteLink(src.BaseURL, rawURL)
	if !ok || strings.TrimSpace(headline) == "" {
		return models.CandidateArticle{}, false
	}

	article := models.CandidateArticle{
		ID:         uuid.NewString(),
		Headline:   collapseWhitespace(headline),
		Link:       link,
		SourceName: src.Name,
		Country:    src.Country,
	}
	if published, _ := node["datePublished"].(string); published != "" {
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			t = t.UTC()
			article.PublishedAt = &t
		}
	}
	if body, _ := node["articleBody"].(string); body != "" {
		article.RawContent = body
	}
	return article, true
}
