package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// ArticleAssessment is the full-content verdict for one article.
type ArticleAssessment struct {
	Score          int
	Assessment     string
	KeyIndividuals []string
	AmountMM       float64
	Classification string
}

type articlePayload struct {
	Score          int      `json:"score"`
	Assessment     string   `json:"assessment"`
	KeyIndividuals []string `json:"key_individuals"`
	AmountMM       *float64 `json:"amount_mm"`
	Classification string   `json:"classification"`
}

type batchPayload struct {
	Assessments []struct {
		Index int `json:"index"`
		articlePayload
	} `json:"assessments"`
}

// AssessArticle runs the single-article content assessment. Individuals the
// model names that do not occur in the source text are discarded.
func (s *Suite) AssessArticle(ctx context.Context, article models.CandidateArticle) (ArticleAssessment, error) {
	res := s.Invoker.Invoke(ctx, s.article, articleInput(article))
	payload, aiErr := agent.Decode[articlePayload](s.article.Name, res)
	if aiErr != nil {
		return ArticleAssessment{}, aiErr
	}
	return toAssessment(payload, article), nil
}

// AssessBatch assesses articles in one model call per batch. When the model
// returns a different number of assessments than articles, the entire batch
// falls back to one-by-one assessment; the merged output always has exactly
// one entry per input article. Individual fallback failures surface as nil
// entries in the result slice alongside the collected errors.
func (s *Suite) AssessBatch(ctx context.Context, articles []models.CandidateArticle) ([]*ArticleAssessment, []error) {
	if len(articles) == 0 {
		return nil, nil
	}

	payload, err := s.invokeBatch(ctx, articles)
	if err == nil && len(payload.Assessments) == len(articles) {
		out := make([]*ArticleAssessment, len(articles))
		ok := true
		for _, item := range payload.Assessments {
			if item.Index < 0 || item.Index >= len(articles) || out[item.Index] != nil {
				ok = false
				break
			}
			a := toAssessment(item.articlePayload, articles[item.Index])
			out[item.Index] = &a
		}
		if ok {
			return out, nil
		}
	}
	if s.Logger != nil {
		s.Logger.Printf("batch assessment fell back to per-item mode (%d articles): %v", len(articles), err)
	}

	// Count mismatch or malformed indices: reassess every item individually.
	out := make([]*ArticleAssessment, len(articles))
	var errs []error
	for i, article := range articles {
		a, aerr := s.AssessArticle(ctx, article)
		if aerr != nil {
			errs = append(errs, fmt.Errorf("article %s: %w", article.Link, aerr))
			continue
		}
		out[i] = &a
	}
	return out, errs
}

func (s *Suite) invokeBatch(ctx context.Context, articles []models.CandidateArticle) (batchPayload, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch of %d articles.\n", len(articles))
	for i, article := range articles {
		body := article.RawContent
		if len(body) > 4000 {
			body = body[:4000]
		}
		fmt.Fprintf(&sb, "\n--- Article %d ---\n%s", i, articleBody(article, body))
	}

	res := s.Invoker.Invoke(ctx, s.batch, sb.String())
	if res.Err != nil {
		return batchPayload{}, res.Err
	}
	var payload batchPayload
	if err := json.Unmarshal([]byte(res.Raw), &payload); err != nil {
		return batchPayload{}, err
	}
	return payload, nil
}

func articleInput(article models.CandidateArticle) string {
	body := article.RawContent
	if len(body) > 8000 {
		body = body[:8000]
	}
	return articleBody(article, body)
}

func articleBody(article models.CandidateArticle, body string) string {
	return fmt.Sprintf("Headline: %s\nSource: %s (%s)\nBody:\n%s", article.Headline, article.SourceName, article.Country, body)
}

// toAssessment applies the anti-hallucination invariant: key individuals
// must occur verbatim (case-insensitive) in the article text.
func toAssessment(p articlePayload, article models.CandidateArticle) ArticleAssessment {
	a := ArticleAssessment{
		Score:          p.Score,
		Assessment:     p.Assessment,
		Classification: p.Classification,
	}
	if p.AmountMM != nil {
		a.AmountMM = *p.AmountMM
	}
	haystack := strings.ToLower(article.Headline + "\n" + article.RawContent)
	for _, name := range p.KeyIndividuals {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(name)) {
			a.KeyIndividuals = append(a.KeyIndividuals, name)
		}
	}
	return a
}
