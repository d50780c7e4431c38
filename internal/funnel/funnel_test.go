package funnel

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/internal/assess"
	"github.com/prospero-intel/prospero/internal/enrich"
	"github.com/prospero-intel/prospero/internal/fetch"
	"github.com/prospero-intel/prospero/internal/telemetry"
	"github.com/prospero-intel/prospero/models"
	"github.com/prospero-intel/prospero/provider"
)

type flatRateProvider struct{ perCall float64 }

func (p flatRateProvider) Chat(context.Context, string, []provider.Message, provider.ChatOptions) (string, provider.Usage, error) {
	return "", provider.Usage{}, fmt.Errorf("not scripted")
}
func (p flatRateProvider) Embed(context.Context, string, []string) ([][]float32, error) {
	return nil, fmt.Errorf("not scripted")
}
func (p flatRateProvider) Verify(context.Context) error                { return nil }
func (p flatRateProvider) CostEstimate(string, provider.Usage) float64 { return p.perCall }

func newTestController() *Controller {
	return &Controller{
		Cfg:    config.FunnelConfig{}.Normalize(),
		Logger: log.New(io.Discard, "", 0),
	}
}

func TestEnrichAllRoutesHighSignalFailuresToSalvage(t *testing.T) {
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer deadSrv.Close()

	c := newTestController()
	c.Enricher = enrich.NewEnricher(2*time.Second, nil, fetch.DefaultExtractors(), 50, 200, "test", nil)

	items := []item{
		{
			article:  models.CandidateArticle{ID: "good", Link: deadSrv.URL, RawContent: strings.Repeat("Anna Weber sold her bakery chain. ", 5)},
			headline: assess.HeadlineResult{Score: 60},
		},
		{
			article:  models.CandidateArticle{ID: "high", Link: deadSrv.URL, Headline: "Major sale"},
			headline: assess.HeadlineResult{Score: 90},
		},
		{
			article:  models.CandidateArticle{ID: "low", Link: deadSrv.URL, Headline: "Minor note"},
			headline: assess.HeadlineResult{Score: 50},
		},
	}

	enriched, salvageable := c.enrichAll(context.Background(), items, nil)
	if len(enriched) != 1 || enriched[0].article.ID != "good" {
		t.Fatalf("enriched = %+v", enriched)
	}
	if len(salvageable) != 1 || salvageable[0].article.ID != "high" {
		t.Fatalf("salvageable = %+v", salvageable)
	}

	outcomes := map[models.Outcome]int{}
	c.mu.Lock()
	for _, entry := range c.ledger {
		outcomes[entry.Outcome]++
	}
	c.mu.Unlock()
	if outcomes[models.OutcomeHighSignalFailure] != 1 || outcomes[models.OutcomeDropped] != 1 {
		t.Fatalf("ledger outcomes = %v", outcomes)
	}
}

func TestRecordLedgerEntry(t *testing.T) {
	c := newTestController()
	score := 72
	it := item{
		article:  models.CandidateArticle{Link: "https://x/a", Headline: "H", SourceName: "paper"},
		headline: assess.HeadlineResult{Score: 80},
	}
	c.record(it, models.OutcomeSuccess, &score, "  good match  ")
	c.record(it, models.OutcomeDropped, nil, "")

	if len(c.ledger) != 2 {
		t.Fatalf("ledger size = %d", len(c.ledger))
	}
	first := c.ledger[0]
	if first.Outcome != models.OutcomeSuccess || first.HeadlineScore != 80 {
		t.Fatalf("entry = %+v", first)
	}
	if first.FinalScore == nil || *first.FinalScore != 72 {
		t.Fatalf("final score = %v", first.FinalScore)
	}
	if len(first.AssessmentSnippets) != 1 || first.AssessmentSnippets[0] != "good match" {
		t.Fatalf("snippet not trimmed: %v", first.AssessmentSnippets)
	}
	if c.ledger[1].AssessmentSnippets != nil {
		t.Fatalf("empty snippet must not produce an entry: %v", c.ledger[1].AssessmentSnippets)
	}
}

type scriptedNotifier struct {
	failKey string
	calls   int
}

func (n *scriptedNotifier) Notify(_ context.Context, event models.SynthesizedEvent, _ []models.Opportunity) error {
	n.calls++
	if event.EventKey == n.failKey {
		return fmt.Errorf("smtp down")
	}
	return nil
}

func TestNotifyAllFlipsEmailedOnlyOnSuccess(t *testing.T) {
	c := newTestController()
	n := &scriptedNotifier{failKey: "bad"}
	c.Notifier = n

	events := []models.SynthesizedEvent{
		{EventKey: "ok", Headline: "fine"},
		{EventKey: "bad", Headline: "broken"},
	}
	events = c.notifyAll(context.Background(), events, nil)
	if n.calls != 2 {
		t.Fatalf("notifier calls = %d", n.calls)
	}
	if !events[0].Emailed {
		t.Fatalf("successful notification did not flip emailed")
	}
	if events[1].Emailed {
		t.Fatalf("failed notification flipped emailed")
	}
	if errs := c.snapshotErrors(); len(errs) != 1 || !strings.Contains(errs[0], "notify bad") {
		t.Fatalf("errors = %v", errs)
	}
}

func TestBuildStatsIncludesLedgerAndCosts(t *testing.T) {
	c := newTestController()
	c.Costs = telemetry.NewCostTracker(flatRateProvider{perCall: 0.25})
	c.Costs.Record("gpt-utility", provider.Usage{PromptTokens: 10, CompletionTokens: 5})
	c.Costs.Record("gpt-synthesis", provider.Usage{PromptTokens: 100, CompletionTokens: 20})

	it := item{article: models.CandidateArticle{Link: "https://x/a"}}
	c.record(it, models.OutcomeDropped, nil, "below threshold")

	stats := c.buildStats("run-1", time.Now().Add(-time.Minute), fetch.AcquisitionResult{}, nil, nil, nil)
	if stats.RunID != "run-1" {
		t.Fatalf("run id = %q", stats.RunID)
	}
	if len(stats.EnrichmentOutcomes) != 1 {
		t.Fatalf("ledger not carried into stats: %+v", stats.EnrichmentOutcomes)
	}
	if stats.TokensUsed != 135 {
		t.Fatalf("tokens used = %d, want 135", stats.TokensUsed)
	}
	if stats.CostEstimate != 0.5 {
		t.Fatalf("cost estimate = %v, want 0.5", stats.CostEstimate)
	}
}

func TestSynthesisFailureOutcomeGatedByHeadlineScore(t *testing.T) {
	c := newTestController()
	// Every model call fails, so synthesis fails for the whole cluster.
	invoker := agent.NewSafeInvoker(flatRateProvider{}, nil, time.Hour, 0, nil)
	c.Suite = assess.NewSuite(invoker, c.Cfg, config.LLMRoutingConfig{Utility: "u", Assessment: "a", Synthesis: "s"}, nil)

	items := []item{
		{article: models.CandidateArticle{ID: "hi", Headline: "Major sale"}, headline: assess.HeadlineResult{Score: 90}},
		{article: models.CandidateArticle{ID: "lo", Headline: "Minor note"}, headline: assess.HeadlineResult{Score: 50}},
	}
	clusters := map[string]models.EventCluster{
		"ev": models.NewEventCluster("ev", "hi", "lo"),
	}

	events := c.synthesizeAll(context.Background(), clusters, items)
	if len(events) != 0 {
		t.Fatalf("failed synthesis produced events: %+v", events)
	}

	c.mu.Lock()
	byLink := map[string]models.Outcome{}
	for _, entry := range c.ledger {
		byLink[entry.Headline] = entry.Outcome
	}
	c.mu.Unlock()
	if byLink["Major sale"] != models.OutcomeHighSignalFailure {
		t.Fatalf("high-signal member outcome = %q", byLink["Major sale"])
	}
	if byLink["Minor note"] != models.OutcomeDropped {
		t.Fatalf("low-signal member outcome = %q", byLink["Minor note"])
	}
}

func TestForEachRunsEveryIndex(t *testing.T) {
	c := newTestController()
	c.Concurrency = 3

	var mu sync.Mutex
	seen := make(map[int]bool)
	c.forEach(20, func(i int) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})
	if len(seen) != 20 {
		t.Fatalf("ran %d of 20 indices", len(seen))
	}
}
