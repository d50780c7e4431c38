package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
)

// SelectorProposal is one suggested replacement for a broken CSS selector.
// Proposals are for review only; the pipeline never applies them itself.
type SelectorProposal struct {
	Selector   string  `json:"selector"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

type repairPayload struct {
	Proposals []SelectorProposal `json:"proposals"`
}

// RepairSelector proposes replacements for a selector that stopped
// matching, given the captured HTML and heuristic candidates.
func (s *Suite) RepairSelector(ctx context.Context, failedSelector, html string, candidates []string) ([]SelectorProposal, error) {
	if len(html) > 12000 {
		html = html[:12000]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failed selector: %s\n", failedSelector)
	if len(candidates) > 0 {
		fmt.Fprintf(&sb, "Heuristic candidates: %s\n", strings.Join(candidates, ", "))
	}
	fmt.Fprintf(&sb, "\nHTML sample:\n%s", html)

	res := s.Invoker.Invoke(ctx, s.repair, sb.String())
	payload, aiErr := agent.Decode[repairPayload](s.repair.Name, res)
	if aiErr != nil {
		return nil, aiErr
	}
	return payload.Proposals, nil
}
