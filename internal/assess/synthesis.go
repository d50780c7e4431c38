package assess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// SynthesisContext carries the multi-source context assembled for one
// cluster: prior internal events, a Wikipedia summary and recent news
// search snippets. Empty fields are simply omitted from the prompt.
type SynthesisContext struct {
	History      []models.SynthesizedEvent
	WikiSummary  string
	NewsSnippets []string
}

type synthesisPayload struct {
	Headline       string   `json:"headline"`
	Summary        string   `json:"summary"`
	Classification string   `json:"classification"`
	KeyIndividuals []string `json:"key_individuals"`
	Score          int      `json:"score"`
}

// SynthesizeEvent produces the unified narrative for one cluster.
func (s *Suite) SynthesizeEvent(ctx context.Context, cluster models.EventCluster, articles []models.AssessedArticle, sctx SynthesisContext) (models.SynthesizedEvent, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Event key: %s\nArticles (%d):\n", cluster.EventKey, len(articles))
	for _, article := range articles {
		body := article.RawContent
		if len(body) > 3000 {
			body = body[:3000]
		}
		fmt.Fprintf(&sb, "\n[%s, %s] %s\nAssessment: %s\nBody:\n%s\n", article.SourceName, article.Country, article.Headline, article.Assessment, body)
	}
	writeContext(&sb, sctx)

	res := s.Invoker.Invoke(ctx, s.synth, sb.String())
	payload, aiErr := agent.Decode[synthesisPayload](s.synth.Name, res)
	if aiErr != nil {
		return models.SynthesizedEvent{}, aiErr
	}
	return toEvent(payload, cluster.EventKey, cluster.SortedArticleIDs(), false), nil
}

// SalvageEvent synthesizes from the headline alone for high-signal articles
// whose content enrichment failed. The result is explicitly flagged so
// downstream consumers know full text was unavailable.
func (s *Suite) SalvageEvent(ctx context.Context, article models.AssessedArticle, sctx SynthesisContext) (models.SynthesizedEvent, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Headline only (body unavailable):\n[%s, %s] %s\nHeadline relevance: %d\n",
		article.SourceName, article.Country, article.Headline, article.RelevanceHeadline)
	if article.EnrichmentErr != "" {
		fmt.Fprintf(&sb, "Enrichment failure: %s\n", article.EnrichmentErr)
	}
	writeContext(&sb, sctx)

	res := s.Invoker.Invoke(ctx, s.salvage, sb.String())
	payload, aiErr := agent.Decode[synthesisPayload](s.salvage.Name, res)
	if aiErr != nil {
		return models.SynthesizedEvent{}, aiErr
	}
	key := normalizeEventKey("salvage_" + singletonKey(article))
	return toEvent(payload, key, []string{article.ID}, true), nil
}

func writeContext(sb *strings.Builder, sctx SynthesisContext) {
	if len(sctx.History) > 0 {
		sb.WriteString("\nPrior internal events:\n")
		for _, ev := range sctx.History {
			fmt.Fprintf(sb, "- [%s] %s: %s\n", ev.EventKey, ev.Headline, firstSentence(ev.Summary))
		}
	}
	if sctx.WikiSummary != "" {
		fmt.Fprintf(sb, "\nWikipedia context:\n%s\n", sctx.WikiSummary)
	}
	if len(sctx.NewsSnippets) > 0 {
		sb.WriteString("\nRecent news search:\n")
		for _, snippet := range sctx.NewsSnippets {
			fmt.Fprintf(sb, "- %s\n", snippet)
		}
	}
}

func toEvent(p synthesisPayload, eventKey string, articleIDs []string, salvage bool) models.SynthesizedEvent {
	return models.SynthesizedEvent{
		EventKey:         eventKey,
		Headline:         p.Headline,
		Summary:          p.Summary,
		Classification:   p.Classification,
		KeyIndividuals:   p.KeyIndividuals,
		Score:            p.Score,
		SourceArticleIDs: articleIDs,
		FromSalvage:      salvage,
		CreatedAt:        time.Now().UTC(),
	}
}

func firstSentence(s string) string {
	if idx := strings.IndexAny(s, ".!?"); idx > 0 && idx < len(s)-1 {
		return s[:idx+1]
	}
	if len(s) > 160 {
		return s[:160]
	}
	return s
}
