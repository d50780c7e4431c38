// Package app assembles the pipeline's dependency graph. Everything is
// constructed explicitly at run start and released at run end; there is no
// ambient singleton state.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/internal/assess"
	"github.com/prospero-intel/prospero/internal/cache"
	"github.com/prospero-intel/prospero/internal/enrich"
	"github.com/prospero-intel/prospero/internal/fetch"
	"github.com/prospero-intel/prospero/internal/funnel"
	"github.com/prospero-intel/prospero/internal/ragchat"
	"github.com/prospero-intel/prospero/internal/store"
	"github.com/prospero-intel/prospero/internal/telemetry"
	"github.com/prospero-intel/prospero/internal/vector"
	"github.com/prospero-intel/prospero/models"
	"github.com/prospero-intel/prospero/provider"
	"github.com/prospero-intel/prospero/provider/openai"
	"github.com/prospero-intel/prospero/tools/web_search"
	"github.com/prospero-intel/prospero/tools/wikipedia"
)

// App holds the constructed pipeline context.
type App struct {
	Cfg      *config.Config
	Logger   *log.Logger
	Provider provider.Provider
	Cache    cache.Store
	Invoker  *agent.SafeInvoker
	Suite    *assess.Suite
	Browser  *fetch.Browser // nil when disabled
	Acquirer *fetch.Acquirer
	Enricher *enrich.Enricher
	Store    *store.Store // nil without Postgres
	Metrics  *telemetry.Metrics
	Costs    *telemetry.CostTracker
	Wiki     *wikipedia.Client
	Search   web_search.Searcher
	Index    *vector.Index
}

// New builds the full dependency graph and runs preflight checks. An
// invalid AI credential or an unreachable required backend is fatal here,
// before any work starts.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(os.Stdout, "[prospero] ", log.LstdFlags)

	prov := openai.New(cfg.LLM)
	if err := prov.Verify(ctx); err != nil {
		return nil, fmt.Errorf("llm credential preflight: %w", err)
	}

	cacheStore, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("cache preflight: %w", err)
	}

	costs := telemetry.NewCostTracker(prov)
	metrics := telemetry.NewMetrics()
	invoker := agent.NewSafeInvoker(prov, cacheStore, cfg.Cache.TTL, cfg.Funnel.MaxRetries, logger)
	invoker.Usage = costs
	invoker.Observe = metrics

	var st *store.Store
	if dsn := cfg.Storage.Postgres.DSN(); cfg.Storage.Postgres.URL != "" || cfg.Storage.Postgres.Host != "" {
		st, err = store.NewWithDSN(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres preflight: %w", err)
		}
	}

	var browser *fetch.Browser
	if cfg.Browser.Enabled {
		browser, err = fetch.NewBrowser(ctx, cfg.Browser)
		if err != nil {
			logger.Printf("browser unavailable, dynamic sources will fail: %v", err)
			browser = nil
		}
	}

	var sink fetch.DebugSink = fetch.NopDebugSink{}
	if cfg.Acquisition.DebugSinkDir != "" {
		sink = &fetch.FileDebugSink{Dir: cfg.Acquisition.DebugSinkDir}
	}
	acquirer := &fetch.Acquirer{
		RSS:         fetch.NewRSSStrategy(cfg.Acquisition.FetchTimeout),
		Static:      fetch.NewStaticStrategy(cfg.Acquisition.FetchTimeout, cfg.Browser.UserAgent, sink),
		Concurrency: cfg.Acquisition.Concurrency,
		Logger:      logger,
	}
	if browser != nil {
		acquirer.Browser = fetch.NewBrowserStrategy(browser, sink)
	}

	extractors := fetch.DefaultExtractors()
	enricher := enrich.NewEnricher(cfg.Acquisition.FetchTimeout, browser, extractors,
		cfg.Acquisition.MinContentChars, cfg.Acquisition.PreviewChars, cfg.Browser.UserAgent, logger)

	index, err := vector.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("retrieval index: %w", err)
	}

	return &App{
		Cfg:      cfg,
		Logger:   logger,
		Provider: prov,
		Cache:    cacheStore,
		Invoker:  invoker,
		Suite:    assess.NewSuite(invoker, cfg.Funnel, cfg.LLM.Routing, logger),
		Browser:  browser,
		Acquirer: acquirer,
		Enricher: enricher,
		Store:    st,
		Metrics:  metrics,
		Costs:    costs,
		Wiki:     wikipedia.New(cfg.Wikipedia),
		Search:   web_search.New(cfg.Search),
		Index:    index,
	}, nil
}

// Close releases the browser and database handles.
func (a *App) Close() {
	if a.Browser != nil {
		a.Browser.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// Controller builds the funnel controller over this context.
func (a *App) Controller(watchlist []models.WatchlistEntry) *funnel.Controller {
	c := &funnel.Controller{
		Cfg:         a.Cfg.Funnel,
		Concurrency: a.Cfg.Acquisition.Concurrency,
		Acquirer:    a.Acquirer,
		Enricher:    a.Enricher,
		Suite:       a.Suite,
		Store:       a.Store,
		Wiki:        a.Wiki,
		Search:      a.Search,
		Watchlist:   watchlist,
		Metrics:     a.Metrics,
		Costs:       a.Costs,
		Logger:      a.Logger,
	}
	if a.Store == nil {
		c.RegistryFile = a.Cfg.Acquisition.SourcesFile
	}
	return c
}

// ChatOrchestrator builds the RAG orchestrator over this context.
func (a *App) ChatOrchestrator() *ragchat.Orchestrator {
	return ragchat.New(a.Cfg.Chat, a.Invoker, a.Provider, a.Cfg.LLM.Routing,
		a.Index, a.Wiki, a.Search, a.Logger)
}

// LoadSources reads the registry: Postgres when wired, the configured
// JSON file otherwise.
func (a *App) LoadSources(ctx context.Context) ([]models.SourceDescriptor, error) {
	if a.Store != nil {
		return a.Store.ListSources(ctx)
	}
	if a.Cfg.Acquisition.SourcesFile == "" {
		return nil, fmt.Errorf("no source registry: configure storage.postgres or acquisition.sources_file")
	}
	return store.LoadSourcesFile(a.Cfg.Acquisition.SourcesFile)
}

// LoadWatchlist reads the tracked-entity watchlist; missing config means
// an empty watchlist, not an error.
func (a *App) LoadWatchlist() ([]models.WatchlistEntry, error) {
	if a.Cfg.Acquisition.WatchlistFile == "" {
		return nil, nil
	}
	return store.LoadWatchlistFile(a.Cfg.Acquisition.WatchlistFile)
}

// SeedChatIndex loads recent synthesized events into the retrieval index,
// embedding their summaries for similarity search.
func (a *App) SeedChatIndex(ctx context.Context, limit int) error {
	if a.Store == nil {
		return nil
	}
	events, err := a.Store.RecentEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("load events for index: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	texts := make([]string, len(events))
	for i, ev := range events {
		texts[i] = ev.Headline + "\n" + ev.Summary
	}
	vecs, err := a.Provider.Embed(ctx, a.Cfg.LLM.Routing.Embedding, texts)
	if err != nil {
		a.Logger.Printf("embedding unavailable, chat falls back to keyword search: %v", err)
		vecs = nil
	}
	for i, ev := range events {
		doc := vector.Document{
			ID:      ev.EventKey,
			Kind:    "event",
			Title:   ev.Headline,
			Text:    ev.Summary + "\nKey individuals: " + strings.Join(ev.KeyIndividuals, ", "),
			Created: ev.CreatedAt.Format("2006-01-02"),
		}
		var vec []float32
		if vecs != nil && i < len(vecs) {
			vec = vecs[i]
		}
		if err := a.Index.Add(doc, vec); err != nil {
			return fmt.Errorf("index event %s: %w", ev.EventKey, err)
		}
	}
	a.Logger.Printf("chat index seeded with %d events", a.Index.Len())
	return nil
}
