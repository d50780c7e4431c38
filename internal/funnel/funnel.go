// Package funnel sequences a pipeline run: acquisition, headline scoring,
// enrichment, content assessment, clustering, synthesis, opportunity
// extraction, judging and notification. Item-level failures are recorded
// in the outcome ledger and never abort the run.
package funnel

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/assess"
	"github.com/prospero-intel/prospero/internal/enrich"
	"github.com/prospero-intel/prospero/internal/fetch"
	"github.com/prospero-intel/prospero/internal/store"
	"github.com/prospero-intel/prospero/internal/telemetry"
	"github.com/prospero-intel/prospero/models"
	"github.com/prospero-intel/prospero/tools/web_search"
	"github.com/prospero-intel/prospero/tools/wikipedia"
)

// Notifier dispatches synthesized events to report consumers. Delivery
// mechanics live outside the pipeline.
type Notifier interface {
	Notify(ctx context.Context, event models.SynthesizedEvent, opportunities []models.Opportunity) error
}

// LogNotifier is the default sink when no delivery channel is configured.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(_ context.Context, event models.SynthesizedEvent, opportunities []models.Opportunity) error {
	if n.Logger != nil {
		n.Logger.Printf("[notify] event %s (%d opportunities): %s", event.EventKey, len(opportunities), event.Headline)
	}
	return nil
}

// Controller drives one run end to end.
type Controller struct {
	Cfg          config.FunnelConfig
	Concurrency  int
	Acquirer     *fetch.Acquirer
	Enricher     *enrich.Enricher
	Suite        *assess.Suite
	Store        *store.Store // nil when running against a file registry
	RegistryFile string       // health writeback target when Store is nil
	Wiki         *wikipedia.Client
	Search       web_search.Searcher
	Watchlist    []models.WatchlistEntry
	Metrics      *telemetry.Metrics
	Costs        *telemetry.CostTracker
	Notifier     Notifier
	Logger       *log.Logger

	mu     sync.Mutex
	ledger []models.EnrichmentOutcome
	errs   []string
}

// item carries one article's state through the funnel stages.
type item struct {
	article    models.CandidateArticle
	headline   assess.HeadlineResult
	assessment *assess.ArticleAssessment
}

// Run executes the full funnel over the given source registry and returns
// aggregate statistics. The only errors returned are infrastructure
// failures; per-item failures land in the ledger.
func (c *Controller) Run(ctx context.Context, sources []models.SourceDescriptor) (*models.RunStats, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	c.mu.Lock()
	c.ledger = nil
	c.errs = nil
	c.mu.Unlock()

	c.Logger.Printf("[funnel] run %s starting with %d sources", runID, len(sources))

	// Acquire.
	acq := c.Acquirer.Acquire(ctx, sources)
	if c.Metrics != nil {
		for _, h := range acq.Health {
			c.Metrics.ArticlesScraped.WithLabelValues(h.SourceName).Add(float64(h.ArticleCount))
		}
	}
	sourceByName := make(map[string]*models.SourceDescriptor, len(acq.Sources))
	for i := range acq.Sources {
		sourceByName[acq.Sources[i].Name] = &acq.Sources[i]
	}

	// Headline assessment, watchlist boost folded into the score.
	survivors := c.assessHeadlines(ctx, acq.Articles)
	c.Logger.Printf("[funnel] run %s: %d/%d headlines relevant", runID, len(survivors), len(acq.Articles))

	// Enrichment; high-signal enrichment failures divert to salvage.
	enriched, salvageable := c.enrichAll(ctx, survivors, sourceByName)

	// Pre-classification culls obviously irrelevant content before the
	// expensive batch assessment.
	classified := c.preClassify(ctx, enriched)

	// Batch content assessment.
	assessed, moreSalvage2 := c.assessContent(ctx, classified)
	salvageable = append(salvageable, moreSalvage2...)

	// Clustering with cross-batch set-union merge.
	clusters := c.clusterAll(ctx, assessed)

	// Synthesis plus the salvage path for high-signal failures.
	events := c.synthesizeAll(ctx, clusters, assessed)
	events = append(events, c.salvageAll(ctx, salvageable)...)

	// Opportunities.
	opportunities := c.generateOpportunities(ctx, events, assessed)

	// Judge: operational reporting only, never gates output.
	if review, err := c.Suite.JudgeRun(ctx, events, opportunities); err != nil {
		c.recordError(fmt.Errorf("judge: %w", err))
	} else {
		c.Logger.Printf("[funnel] run %s judge: %s", runID, review.Overall)
		for _, v := range review.Verdicts {
			c.Logger.Printf("[funnel]   %s: %s (%s)", v.EventKey, v.Verdict, v.Critique)
		}
	}

	// Notify.
	events = c.notifyAll(ctx, events, opportunities)

	stats := c.buildStats(runID, started, acq, survivors, events, opportunities)
	c.persist(ctx, runID, acq, events, opportunities, stats)

	if c.Metrics != nil {
		c.Metrics.EventsSynthesized.Add(float64(len(events)))
		c.Metrics.RunDuration.Observe(time.Since(started).Seconds())
	}
	c.Logger.Printf("[funnel] run %s finished: %d events, %d opportunities, %d ledger entries",
		runID, len(events), len(opportunities), len(stats.EnrichmentOutcomes))
	return stats, nil
}

func (c *Controller) assessHeadlines(ctx context.Context, articles []models.CandidateArticle) (survivors []item) {
	type scored struct {
		it  item
		err error
	}
	results := make([]scored, len(articles))
	c.forEach(len(articles), func(i int) {
		hr, err := c.Suite.AssessHeadline(ctx, articles[i], c.Watchlist)
		results[i] = scored{it: item{article: articles[i], headline: hr}, err: err}
	})
	for _, r := range results {
		if r.err != nil {
			c.recordError(r.err)
			c.record(r.it, models.OutcomeDropped, nil, "headline assessment failed: "+r.err.Error())
			continue
		}
		if r.it.headline.Score < c.Cfg.HeadlineThreshold {
			c.record(r.it, models.OutcomeDropped, nil, r.it.headline.Assessment)
			continue
		}
		survivors = append(survivors, r.it)
	}
	return survivors
}

func (c *Controller) enrichAll(ctx context.Context, items []item, sourceByName map[string]*models.SourceDescriptor) (enriched, salvageable []item) {
	type outcome struct {
		it  item
		err error
	}
	results := make([]outcome, len(items))
	c.forEach(len(items), func(i int) {
		it := items[i]
		src := sourceByName[it.article.SourceName]
		err := c.Enricher.Enrich(ctx, &it.article, src)
		results[i] = outcome{it: it, err: err}
	})
	for _, r := range results {
		if r.err == nil {
			enriched = append(enriched, r.it)
			continue
		}
		if r.it.headline.Score >= c.Cfg.HighSignalThreshold {
			c.record(r.it, models.OutcomeHighSignalFailure, nil, "enrichment failed: "+r.err.Error())
			salvageable = append(salvageable, r.it)
		} else {
			c.record(r.it, models.OutcomeDropped, nil, "enrichment failed: "+r.err.Error())
		}
	}
	return enriched, salvageable
}

func (c *Controller) preClassify(ctx context.Context, items []item) []item {
	type outcome struct {
		it      item
		proceed bool
		reason  string
	}
	results := make([]outcome, len(items))
	c.forEach(len(items), func(i int) {
		pc, err := c.Suite.PreClassify(ctx, items[i].article)
		if err != nil {
			// A broken triage pass must not discard a relevant article.
			results[i] = outcome{it: items[i], proceed: true, reason: "pre-classification failed: " + err.Error()}
			c.recordError(err)
			return
		}
		results[i] = outcome{it: items[i], proceed: pc.Proceed, reason: pc.Reason}
	})
	var out []item
	for _, r := range results {
		if !r.proceed {
			c.record(r.it, models.OutcomeDropped, nil, "pre-classification: "+r.reason)
			continue
		}
		out = append(out, r.it)
	}
	return out
}

func (c *Controller) assessContent(ctx context.Context, items []item) (assessed []item, salvageable []item) {
	for start := 0; start < len(items); start += c.Cfg.BatchSize {
		end := start + c.Cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		articles := make([]models.CandidateArticle, len(batch))
		for i, it := range batch {
			articles[i] = it.article
		}

		assessments, errs := c.Suite.AssessBatch(ctx, articles)
		for _, err := range errs {
			c.recordError(err)
		}
		for i, a := range assessments {
			it := batch[i]
			if a == nil {
				if it.headline.Score >= c.Cfg.HighSignalThreshold {
					c.record(it, models.OutcomeHighSignalFailure, nil, "content assessment failed")
					salvageable = append(salvageable, it)
				} else {
					c.record(it, models.OutcomeDropped, nil, "content assessment failed")
				}
				continue
			}
			if a.Score < c.Cfg.ArticleThreshold {
				c.record(it, models.OutcomeDropped, &a.Score, a.Assessment)
				continue
			}
			it.assessment = a
			assessed = append(assessed, it)
		}
	}
	return assessed, salvageable
}

func (c *Controller) clusterAll(ctx context.Context, items []item) map[string]models.EventCluster {
	assessedArticles := make([]models.AssessedArticle, len(items))
	for i, it := range items {
		assessedArticles[i] = c.toAssessed(ctx, it)
	}
	clusters := make(map[string]models.EventCluster)
	for start := 0; start < len(assessedArticles); start += c.Cfg.BatchSize {
		end := start + c.Cfg.BatchSize
		if end > len(assessedArticles) {
			end = len(assessedArticles)
		}
		batch, err := c.Suite.ClusterBatch(ctx, assessedArticles[start:end])
		if err != nil {
			c.recordError(fmt.Errorf("clustering: %w", err))
			// Unclustered articles still deserve synthesis; fall back to
			// singletons so nothing silently vanishes.
			for _, a := range assessedArticles[start:end] {
				batch = append(batch, models.NewEventCluster("solo_"+a.ID, a.ID))
			}
		}
		clusters = models.MergeClusters(clusters, batch)
	}
	return clusters
}

func (c *Controller) toAssessed(ctx context.Context, it item) models.AssessedArticle {
	a := models.AssessedArticle{
		CandidateArticle:  it.article,
		RelevanceHeadline: it.headline.Score,
		WatchlistHits:     it.headline.WatchlistHits,
	}
	if it.assessment != nil {
		a.RelevanceArticle = it.assessment.Score
		a.Assessment = it.assessment.Assessment
		a.Classification = it.assessment.Classification
		a.KeyIndividuals = c.Suite.CanonicalizeEntities(ctx, it.assessment.KeyIndividuals)
		a.AmountMM = it.assessment.AmountMM
	}
	return a
}

func (c *Controller) synthesizeAll(ctx context.Context, clusters map[string]models.EventCluster, items []item) []models.SynthesizedEvent {
	byID := make(map[string]item, len(items))
	for _, it := range items {
		byID[it.article.ID] = it
	}

	keys := make([]string, 0, len(clusters))
	for key := range clusters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var events []models.SynthesizedEvent
	for _, key := range keys {
		cluster := clusters[key]
		var members []models.AssessedArticle
		for _, id := range cluster.SortedArticleIDs() {
			if it, ok := byID[id]; ok {
				members = append(members, c.toAssessed(ctx, it))
			}
		}
		if len(members) == 0 {
			continue
		}
		sctx := c.buildSynthesisContext(ctx, members)
		event, err := c.Suite.SynthesizeEvent(ctx, cluster, members, sctx)
		if err != nil {
			c.recordError(fmt.Errorf("synthesis %s: %w", key, err))
			for _, m := range members {
				it := byID[m.ID]
				score := m.RelevanceArticle
				outcome := models.OutcomeDropped
				if it.headline.Score >= c.Cfg.HighSignalThreshold {
					outcome = models.OutcomeHighSignalFailure
				}
				c.record(it, outcome, &score, "synthesis failed")
			}
			continue
		}
		events = append(events, event)
		for _, m := range members {
			it := byID[m.ID]
			score := m.RelevanceArticle
			c.record(it, models.OutcomeSuccess, &score, m.Assessment)
		}
	}
	return events
}

func (c *Controller) salvageAll(ctx context.Context, items []item) []models.SynthesizedEvent {
	var events []models.SynthesizedEvent
	for _, it := range items {
		assessed := models.AssessedArticle{
			CandidateArticle:  it.article,
			RelevanceHeadline: it.headline.Score,
			WatchlistHits:     it.headline.WatchlistHits,
		}
		sctx := c.buildSynthesisContext(ctx, []models.AssessedArticle{assessed})
		event, err := c.Suite.SalvageEvent(ctx, assessed, sctx)
		if err != nil {
			c.recordError(fmt.Errorf("salvage %s: %w", it.article.Link, err))
			continue
		}
		events = append(events, event)
	}
	return events
}

// buildSynthesisContext assembles internal history, a Wikipedia summary and
// recent news snippets for a cluster. Every lookup is best-effort.
func (c *Controller) buildSynthesisContext(ctx context.Context, members []models.AssessedArticle) assess.SynthesisContext {
	var sctx assess.SynthesisContext

	var lead string
	for _, m := range members {
		if len(m.KeyIndividuals) > 0 {
			lead = m.KeyIndividuals[0]
			break
		}
	}
	if lead != "" {
		if c.Store != nil {
			if history, err := c.Store.EventsByIndividual(ctx, lead, 5); err == nil {
				sctx.History = history
			}
		}
		if c.Wiki != nil {
			if summary, err := c.Wiki.Lookup(ctx, lead); err == nil {
				sctx.WikiSummary = summary.Extract
			}
		}
	}
	if c.Search != nil && c.Search.Configured() && len(members) > 0 {
		if hits, err := c.Search.Search(ctx, members[0].Headline, 3); err == nil {
			for _, h := range hits {
				sctx.NewsSnippets = append(sctx.NewsSnippets, h.Title+": "+h.Snippet)
			}
		}
	}
	return sctx
}

func (c *Controller) generateOpportunities(ctx context.Context, events []models.SynthesizedEvent, items []item) []models.Opportunity {
	byID := make(map[string]models.AssessedArticle, len(items))
	for _, it := range items {
		byID[it.article.ID] = c.toAssessed(ctx, it)
	}
	var all []models.Opportunity
	for _, ev := range events {
		var members []models.AssessedArticle
		for _, id := range ev.SourceArticleIDs {
			if a, ok := byID[id]; ok {
				members = append(members, a)
			}
		}
		opps, err := c.Suite.GenerateOpportunities(ctx, ev, members)
		if err != nil {
			c.recordError(fmt.Errorf("opportunities %s: %w", ev.EventKey, err))
			continue
		}
		all = append(all, opps...)
	}
	return all
}

func (c *Controller) notifyAll(ctx context.Context, events []models.SynthesizedEvent, opportunities []models.Opportunity) []models.SynthesizedEvent {
	notifier := c.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: c.Logger}
	}
	oppsByEvent := make(map[string][]models.Opportunity)
	for _, o := range opportunities {
		oppsByEvent[o.EventKey] = append(oppsByEvent[o.EventKey], o)
	}
	for i := range events {
		if err := notifier.Notify(ctx, events[i], oppsByEvent[events[i].EventKey]); err != nil {
			c.recordError(fmt.Errorf("notify %s: %w", events[i].EventKey, err))
			continue
		}
		events[i].Emailed = true
		if c.Store != nil {
			if err := c.Store.MarkEventEmailed(ctx, events[i].EventKey); err != nil {
				c.recordError(fmt.Errorf("mark emailed %s: %w", events[i].EventKey, err))
			}
		}
	}
	return events
}

func (c *Controller) buildStats(runID string, started time.Time, acq fetch.AcquisitionResult, survivors []item, events []models.SynthesizedEvent, opportunities []models.Opportunity) *models.RunStats {
	c.mu.Lock()
	ledger := append([]models.EnrichmentOutcome(nil), c.ledger...)
	errs := append([]string(nil), c.errs...)
	c.mu.Unlock()

	stats := &models.RunStats{
		RunID:              runID,
		StartedAt:          started,
		FinishedAt:         time.Now().UTC(),
		HeadlinesScraped:   len(acq.Articles),
		RelevantHeadlines:  len(survivors),
		EventsSynthesized:  len(events),
		Opportunities:      len(opportunities),
		EnrichmentOutcomes: ledger,
		SourceHealth:       acq.Health,
		Errors:             errs,
	}
	if c.Costs != nil {
		usage, cost := c.Costs.Report()
		for _, u := range usage {
			stats.TokensUsed += u.PromptTokens + u.CompletionTokens
		}
		stats.CostEstimate = cost
	}
	return stats
}

// persist writes run output and the batched source-health update. Storage
// failures are recorded, not fatal: the run already happened.
func (c *Controller) persist(ctx context.Context, runID string, acq fetch.AcquisitionResult, events []models.SynthesizedEvent, opportunities []models.Opportunity, stats *models.RunStats) {
	if c.Store == nil {
		if c.RegistryFile != "" {
			if err := store.WriteSourcesFile(c.RegistryFile, acq.Sources); err != nil {
				c.recordError(fmt.Errorf("registry writeback: %w", err))
			}
		}
		return
	}
	if err := c.Store.UpdateSourceHealth(ctx, acq.Sources); err != nil {
		c.recordError(fmt.Errorf("source health writeback: %w", err))
	}
	if err := c.Store.SaveArticles(ctx, runID, acq.Articles); err != nil {
		c.recordError(fmt.Errorf("save articles: %w", err))
	}
	if err := c.Store.SaveEvents(ctx, runID, events); err != nil {
		c.recordError(fmt.Errorf("save events: %w", err))
	}
	if err := c.Store.SaveOpportunities(ctx, runID, opportunities); err != nil {
		c.recordError(fmt.Errorf("save opportunities: %w", err))
	}
	if err := c.Store.SaveOutcomes(ctx, runID, stats.EnrichmentOutcomes); err != nil {
		c.recordError(fmt.Errorf("save outcomes: %w", err))
	}
	stats.Errors = c.snapshotErrors()
	if err := c.Store.SaveRunStats(ctx, runID, *stats); err != nil {
		c.recordError(fmt.Errorf("save run stats: %w", err))
	}
}

// forEach runs fn over [0, n) with the controller's concurrency bound.
func (c *Controller) forEach(n int, fn func(i int)) {
	workers := c.Concurrency
	if workers <= 0 {
		workers = 4
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func (c *Controller) record(it item, outcome models.Outcome, finalScore *int, snippet string) {
	entry := models.EnrichmentOutcome{
		Link:          it.article.Link,
		Headline:      it.article.Headline,
		Newspaper:     it.article.SourceName,
		HeadlineScore: it.headline.Score,
		FinalScore:    finalScore,
		Outcome:       outcome,
	}
	if snippet = strings.TrimSpace(snippet); snippet != "" {
		entry.AssessmentSnippets = []string{snippet}
	}
	c.mu.Lock()
	c.ledger = append(c.ledger, entry)
	c.mu.Unlock()
	if c.Metrics != nil {
		c.Metrics.FunnelOutcomes.WithLabelValues(string(outcome)).Inc()
	}
}

func (c *Controller) recordError(err error) {
	if err == nil {
		return
	}
	c.Logger.Printf("[funnel] %v", err)
	c.mu.Lock()
	c.errs = append(c.errs, err.Error())
	c.mu.Unlock()
}

func (c *Controller) snapshotErrors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errs...)
}
