package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// fallbackRationale backfills a missing contact reason so the rationale
// invariant (whyContact non-empty) always holds.
const fallbackRationale = "Named in connection with a recent wealth event; review the source article for outreach angle."

type opportunityPayload struct {
	Opportunities []struct {
		ReachOutTo       string   `json:"reach_out_to"`
		ContactDetails   string   `json:"contact_details"`
		WealthEstimateMM *float64 `json:"wealth_estimate_mm"`
		WhyContact       []string `json:"why_contact"`
	} `json:"opportunities"`
}

// GenerateOpportunities derives outreach records from a synthesized event.
// Records below the minimum wealth threshold are discarded unless the
// wealth estimate is explicitly unknown; a missing rationale is backfilled
// rather than failing validation.
func (s *Suite) GenerateOpportunities(ctx context.Context, event models.SynthesizedEvent, articles []models.AssessedArticle) ([]models.Opportunity, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Event [%s]: %s\nSummary: %s\nKey individuals: %s\n",
		event.EventKey, event.Headline, event.Summary, strings.Join(event.KeyIndividuals, ", "))
	for _, article := range articles {
		body := article.RawContent
		if len(body) > 2500 {
			body = body[:2500]
		}
		fmt.Fprintf(&sb, "\nSource [%s]: %s\n%s\n", article.SourceName, article.Headline, body)
	}

	res := s.Invoker.Invoke(ctx, s.opp, sb.String())
	payload, aiErr := agent.Decode[opportunityPayload](s.opp.Name, res)
	if aiErr != nil {
		return nil, aiErr
	}

	sourceID := ""
	if len(event.SourceArticleIDs) > 0 {
		sourceID = event.SourceArticleIDs[0]
	}

	var out []models.Opportunity
	for _, item := range payload.Opportunities {
		name := strings.TrimSpace(item.ReachOutTo)
		if name == "" {
			continue
		}
		if item.WealthEstimateMM != nil && *item.WealthEstimateMM < s.Funnel.MinWealthMM {
			continue
		}
		why := trimNonEmpty(item.WhyContact)
		if len(why) == 0 {
			why = []string{fallbackRationale}
		}
		out = append(out, models.Opportunity{
			ReachOutTo:       name,
			ContactDetails:   strings.TrimSpace(item.ContactDetails),
			WealthEstimateMM: item.WealthEstimateMM,
			WhyContact:       why,
			EventKey:         event.EventKey,
			SourceArticleID:  sourceID,
		})
	}
	return out, nil
}

func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
