package assess

import (
	"context"
	"fmt"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// PreClassification is the cheap triage verdict used to cull obviously
// irrelevant content before full assessment.
type PreClassification struct {
	Category string `json:"category"`
	Proceed  bool   `json:"proceed"`
	Reason   string `json:"reason"`
}

// PreClassify runs the utility-model triage pass over one article.
func (s *Suite) PreClassify(ctx context.Context, article models.CandidateArticle) (PreClassification, error) {
	body := article.RawContent
	if len(body) > 2000 {
		body = body[:2000]
	}
	input := fmt.Sprintf("Headline: %s\nSource: %s\nBody excerpt:\n%s", article.Headline, article.SourceName, body)

	res := s.Invoker.Invoke(ctx, s.preclass, input)
	payload, aiErr := agent.Decode[PreClassification](s.preclass.Name, res)
	if aiErr != nil {
		return PreClassification{}, aiErr
	}
	return payload, nil
}
