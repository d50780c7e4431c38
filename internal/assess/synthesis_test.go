package assess

import (
	"context"
	"testing"

	"github.com/prospero-intel/prospero/models"
)

func TestSynthesizeEventCarriesClusterIdentity(t *testing.T) {
	p := newScriptedProvider()
	p.script(synthesisPrompt, `{"headline": "Weber bakery chain sold for EUR 40m",
		"summary": "Anna Weber sold her bakery chain.",
		"classification": "company_sale", "key_individuals": ["Anna Weber"], "score": 85}`)
	s := newTestSuite(p)

	cluster := models.NewEventCluster("weber_bakery_sale", "a1", "a2")
	articles := []models.AssessedArticle{
		{CandidateArticle: models.CandidateArticle{ID: "a1", Headline: "Bakery sold"}},
		{CandidateArticle: models.CandidateArticle{ID: "a2", Headline: "Weber exits"}},
	}
	ev, err := s.SynthesizeEvent(context.Background(), cluster, articles, SynthesisContext{WikiSummary: "Anna Weber is an entrepreneur."})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if ev.EventKey != "weber_bakery_sale" {
		t.Fatalf("event key = %q", ev.EventKey)
	}
	if len(ev.SourceArticleIDs) != 2 {
		t.Fatalf("source ids = %v", ev.SourceArticleIDs)
	}
	if ev.FromSalvage {
		t.Fatalf("regular synthesis flagged as salvage")
	}
	if ev.Emailed {
		t.Fatalf("emailed must start false")
	}
}

func TestSalvageEventFlagsSalvage(t *testing.T) {
	p := newScriptedProvider()
	p.script(salvagePrompt, `{"headline": "Possible estate sale",
		"summary": "Full text unavailable; headline suggests an estate sale.",
		"classification": "real_estate", "key_individuals": [], "score": 60}`)
	s := newTestSuite(p)

	article := models.AssessedArticle{
		CandidateArticle:  models.CandidateArticle{ID: "a9", Headline: "Historic estate changes hands for record sum"},
		RelevanceHeadline: 80,
	}
	ev, err := s.SalvageEvent(context.Background(), article, SynthesisContext{})
	if err != nil {
		t.Fatalf("salvage: %v", err)
	}
	if !ev.FromSalvage {
		t.Fatalf("salvage event not flagged")
	}
	if len(ev.SourceArticleIDs) != 1 || ev.SourceArticleIDs[0] != "a9" {
		t.Fatalf("source ids = %v", ev.SourceArticleIDs)
	}
}

func TestJudgeRunEmptySkipsModel(t *testing.T) {
	p := newScriptedProvider() // would fail if called
	s := newTestSuite(p)
	review, err := s.JudgeRun(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if review.Overall != "no events produced" {
		t.Fatalf("unexpected review: %+v", review)
	}
	if p.callCount(judgePrompt) != 0 {
		t.Fatalf("judge must not call the model for an empty run")
	}
}
