package models

import (
	"time"
)

// SourceDescriptor identifies a single news feed and how to scrape it.
// Descriptors come from the source registry; the pipeline only writes back
// health and timestamp fields.
type SourceDescriptor struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Country         string    `json:"country"`
	BaseURL         string    `json:"base_url"`
	RSSURL          string    `json:"rss_url,omitempty"`
	LinkSelector    string    `json:"link_selector,omitempty"`    // list-page anchor selector
	ContentSelector string    `json:"content_selector,omitempty"` // article body selector
	WaitSelector    string    `json:"wait_selector,omitempty"`    // browser readiness condition
	Extractor       string    `json:"extractor,omitempty"`        // custom extractor key, exclusive when set
	Dynamic         bool      `json:"dynamic"`                    // requires a headless browser
	Disabled        bool      `json:"disabled"`
	LastScrapedAt   time.Time `json:"last_scraped_at,omitempty"`
	LastSuccessAt   time.Time `json:"last_success_at,omitempty"`
	FailureNotes    []string  `json:"failure_notes,omitempty"`
}

// CandidateArticle is one scraped headline flowing through the funnel.
// The Link field is the global dedup key.
type CandidateArticle struct {
	ID             string     `json:"id"`
	Headline       string     `json:"headline"`
	Link           string     `json:"link"`
	SourceName     string     `json:"source_name"`
	Country        string     `json:"country"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	RawContent     string     `json:"raw_content,omitempty"`
	EnrichmentErr  string     `json:"enrichment_error,omitempty"`
	ContentPreview string     `json:"content_preview,omitempty"`
}

// AssessedArticle is a candidate that survived headline scoring and carries
// the full content assessment.
type AssessedArticle struct {
	CandidateArticle

	RelevanceHeadline int      `json:"relevance_headline"` // 0-100
	RelevanceArticle  int      `json:"relevance_article"`  // 0-100
	Assessment        string   `json:"assessment"`
	Classification    string   `json:"classification,omitempty"`
	KeyIndividuals    []string `json:"key_individuals,omitempty"`
	AmountMM          float64  `json:"amount_mm,omitempty"` // monetary amount in millions, 0 when unknown
	WatchlistHits     []string `json:"watchlist_hits,omitempty"`
}

// SynthesizedEvent is the unified narrative produced for one event cluster.
// Emailed transitions false -> true only after the notifier confirms dispatch.
type SynthesizedEvent struct {
	EventKey         string    `json:"event_key"`
	Headline         string    `json:"headline"`
	Summary          string    `json:"summary"`
	Classification   string    `json:"classification"`
	KeyIndividuals   []string  `json:"key_individuals,omitempty"`
	Score            int       `json:"score"`
	SourceArticleIDs []string  `json:"source_article_ids"`
	FromSalvage      bool      `json:"from_salvage,omitempty"` // synthesized from headline alone
	Emailed          bool      `json:"emailed"`
	CreatedAt        time.Time `json:"created_at"`
}

// Opportunity is an actionable outreach record derived from an event.
// WhyContact is never empty: the generator's rationale or a backfilled one.
type Opportunity struct {
	ReachOutTo       string   `json:"reach_out_to"`
	ContactDetails   string   `json:"contact_details,omitempty"`
	WealthEstimateMM *float64 `json:"wealth_estimate_mm,omitempty"` // nil when unknown
	WhyContact       []string `json:"why_contact"`
	EventKey         string   `json:"event_key"`
	SourceArticleID  string   `json:"source_article_id"`
}

// Outcome is the terminal classification of one article in a run.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeDropped           Outcome = "dropped"
	OutcomeHighSignalFailure Outcome = "high_signal_failure"
)

// EnrichmentOutcome is one ledger entry in the funnel's append-only run
// record. It is written for reporting and never read back into the funnel.
type EnrichmentOutcome struct {
	Link               string   `json:"link"`
	Headline           string   `json:"headline"`
	Newspaper          string   `json:"newspaper"`
	HeadlineScore      int      `json:"headline_score"`
	FinalScore         *int     `json:"final_score,omitempty"`
	Outcome            Outcome  `json:"outcome"`
	AssessmentSnippets []string `json:"assessment_snippets,omitempty"`
}

// SourceHealth records one source's acquisition result for a run.
type SourceHealth struct {
	SourceID     string    `json:"source_id"`
	SourceName   string    `json:"source_name"`
	Method       string    `json:"method"`
	Success      bool      `json:"success"`
	ArticleCount int       `json:"article_count"`
	Error        string    `json:"error,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// RunStats aggregates one pipeline run for reporting consumers.
type RunStats struct {
	RunID              string              `json:"run_id"`
	StartedAt          time.Time           `json:"started_at"`
	FinishedAt         time.Time           `json:"finished_at"`
	HeadlinesScraped   int                 `json:"headlines_scraped"`
	RelevantHeadlines  int                 `json:"relevant_headlines"`
	EventsSynthesized  int                 `json:"events_synthesized"`
	Opportunities      int                 `json:"opportunities"`
	EnrichmentOutcomes []EnrichmentOutcome `json:"enrichment_outcomes"`
	SourceHealth       []SourceHealth      `json:"source_health"`
	Errors             []string            `json:"errors,omitempty"`
	TokensUsed         int64               `json:"tokens_used"`
	CostEstimate       float64             `json:"cost_estimate"`
}

// WatchlistEntry tracks an entity whose presence boosts headline relevance.
type WatchlistEntry struct {
	Name        string   `json:"name"`
	SearchTerms []string `json:"search_terms,omitempty"`
	Boost       int      `json:"boost,omitempty"` // additive headline boost, capped at 100
}
