package assess

import (
	"context"
	"regexp"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
)

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

type entityPayload struct {
	Canonical string `json:"canonical"`
}

// CanonicalizeEntities strips disambiguation parentheticals, canonicalizes
// each entity name independently via the utility model, and collapses
// duplicates after canonicalization. An entity whose canonicalization fails
// is kept in its stripped form rather than dropped.
func (s *Suite) CanonicalizeEntities(ctx context.Context, entities []string) []string {
	seen := make(map[string]struct{}, len(entities))
	var out []string
	for _, raw := range entities {
		name := strings.TrimSpace(parenthetical.ReplaceAllString(raw, ""))
		if name == "" {
			continue
		}

		canonical := name
		res := s.Invoker.Invoke(ctx, s.entity, name)
		if payload, aiErr := agent.Decode[entityPayload](s.entity.Name, res); aiErr == nil {
			if c := strings.TrimSpace(payload.Canonical); c != "" {
				canonical = c
			}
		} else if s.Logger != nil {
			s.Logger.Printf("entity canonicalization failed for %q: %v", name, aiErr)
		}

		key := strings.ToLower(canonical)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
