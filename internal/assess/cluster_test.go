package assess

import (
	"context"
	"strings"
	"testing"

	"github.com/prospero-intel/prospero/models"
)

func TestClusterBatchFiltersInventedIDsAndPlacesLeftovers(t *testing.T) {
	p := newScriptedProvider()
	p.script(clusterPrompt, `{"clusters": [
		{"event_key": "Weber Bakery Sale", "article_ids": ["a1", "zzz-invented"]}
	]}`)
	s := newTestSuite(p)

	articles := []models.AssessedArticle{
		{CandidateArticle: models.CandidateArticle{ID: "a1", Headline: "Weber bakery sold"}},
		{CandidateArticle: models.CandidateArticle{ID: "a2", Headline: "Unrelated estate auction in Vienna draws crowds"}},
	}
	clusters, err := s.ClusterBatch(context.Background(), articles)
	if err != nil {
		t.Fatalf("cluster: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2 (one real, one singleton)", len(clusters))
	}

	first := clusters[0]
	if first.EventKey != "weber_bakery_sale" {
		t.Fatalf("event key not normalized: %q", first.EventKey)
	}
	ids := first.SortedArticleIDs()
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("invented id survived: %v", ids)
	}

	solo := clusters[1]
	if !strings.HasPrefix(solo.EventKey, "solo_") {
		t.Fatalf("unplaced article not a singleton: %q", solo.EventKey)
	}
	if ids := solo.SortedArticleIDs(); len(ids) != 1 || ids[0] != "a2" {
		t.Fatalf("singleton has wrong members: %v", ids)
	}
}

func TestNormalizeEventKey(t *testing.T) {
	cases := map[string]string{
		"Weber Bakery Sale": "weber_bakery_sale",
		"  spaced  key  ":   "spaced__key",
		"_trimmed_":         "trimmed",
	}
	for in, want := range cases {
		if got := normalizeEventKey(in); got != want {
			t.Fatalf("normalizeEventKey(%q) = %q, want %q", in, got, want)
		}
	}
}
