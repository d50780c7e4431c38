package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

// HeadlineResult is the outcome of scoring one headline, with any watchlist
// boost already applied.
type HeadlineResult struct {
	Score         int
	Assessment    string
	WatchlistHits []string
}

type headlinePayload struct {
	Score      int    `json:"score"`
	Assessment string `json:"assessment"`
}

// AssessHeadline scores a single headline 0-100 given country context.
// Watchlist hits add their boost (capped at 100) and annotate the
// assessment text.
func (s *Suite) AssessHeadline(ctx context.Context, article models.CandidateArticle, watchlist []models.WatchlistEntry) (HeadlineResult, error) {
	input := fmt.Sprintf("Country: %s\nSource: %s\nHeadline: %s", article.Country, article.SourceName, article.Headline)

	hits, boost := MatchWatchlist(article.Headline, watchlist)
	if len(hits) > 0 {
		input += "\nWatchlist matches: " + strings.Join(hits, ", ")
	}

	res := s.Invoker.Invoke(ctx, s.headline, input)
	payload, aiErr := agent.Decode[headlinePayload](s.headline.Name, res)
	if aiErr != nil {
		return HeadlineResult{}, aiErr
	}

	score := payload.Score
	assessment := payload.Assessment
	if boost > 0 {
		score += boost
		if score > 100 {
			score = 100
		}
		assessment = fmt.Sprintf("%s [watchlist: %s, +%d]", assessment, strings.Join(hits, ", "), boost)
	}
	return HeadlineResult{Score: score, Assessment: assessment, WatchlistHits: hits}, nil
}

// MatchWatchlist returns the tracked entity names found in the text and the
// total additive score boost they contribute.
func MatchWatchlist(text string, watchlist []models.WatchlistEntry) ([]string, int) {
	lower := strings.ToLower(text)
	var hits []string
	boost := 0
	for _, entry := range watchlist {
		terms := entry.SearchTerms
		if len(terms) == 0 {
			terms = []string{entry.Name}
		}
		for _, term := range terms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				hits = append(hits, entry.Name)
				b := entry.Boost
				if b <= 0 {
					b = 20
				}
				boost += b
				break
			}
		}
	}
	if boost > 100 {
		boost = 100
	}
	return hits, boost
}
