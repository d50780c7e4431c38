package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// RunReview is the judge's qualitative verdict over one pipeline run. It
// feeds operational reporting and never gates pipeline output.
type RunReview struct {
	Overall  string         `json:"overall"`
	Verdicts []EventVerdict `json:"verdicts"`
}

// EventVerdict is the judge's call on one synthesized event.
type EventVerdict struct {
	EventKey string `json:"event_key"`
	Verdict  string `json:"verdict"`
	Critique string `json:"critique"`
}

// JudgeRun reviews the run's events and opportunities.
func (s *Suite) JudgeRun(ctx context.Context, events []models.SynthesizedEvent, opportunities []models.Opportunity) (RunReview, error) {
	if len(events) == 0 {
		return RunReview{Overall: "no events produced"}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run produced %d events and %d opportunities.\n\nEvents:\n", len(events), len(opportunities))
	for _, ev := range events {
		fmt.Fprintf(&sb, "- [%s] (%s, score %d) %s: %s\n", ev.EventKey, ev.Classification, ev.Score, ev.Headline, firstSentence(ev.Summary))
	}
	if len(opportunities) > 0 {
		sb.WriteString("\nOpportunities:\n")
		for _, opp := range opportunities {
			fmt.Fprintf(&sb, "- %s (event %s): %s\n", opp.ReachOutTo, opp.EventKey, strings.Join(opp.WhyContact, "; "))
		}
	}

	res := s.Invoker.Invoke(ctx, s.judge, sb.String())
	review, aiErr := agent.Decode[RunReview](s.judge.Name, res)
	if aiErr != nil {
		return RunReview{}, aiErr
	}
	return review, nil
}
