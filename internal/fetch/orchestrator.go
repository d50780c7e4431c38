package fetch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prospero-intel/prospero/models"
)

// AcquisitionResult aggregates a full scraping pass over the registry.
type AcquisitionResult struct {
	Articles []models.CandidateArticle
	Health   []models.SourceHealth
	// Sources carries the descriptors with updated health/timestamp fields
	// for one batched registry writeback.
	Sources []models.SourceDescriptor
}

// Acquirer fans strategy execution out across all active sources with a
// bounded concurrency limit. A failed source is surfaced in its health
// record and never retried within the run.
type Acquirer struct {
	RSS         Strategy
	Static      Strategy
	Browser     Strategy
	Concurrency int
	Logger      *log.Logger
}

// Acquire scrapes every enabled source and returns globally link-deduped
// articles plus per-source health.
func (a *Acquirer) Acquire(ctx context.Context, sources []models.SourceDescriptor) AcquisitionResult {
	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	type indexed struct {
		idx    int
		src    models.SourceDescriptor
		health models.SourceHealth
		items  []models.CandidateArticle
	}

	results := make([]indexed, len(sources))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range sources {
		if sources[i].Disabled {
			results[i] = indexed{idx: i, src: sources[i]}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			src := sources[i] // private copy; strategies mutate health fields
			res := a.fetchSource(ctx, &src)
			now := time.Now().UTC()
			src.LastScrapedAt = now

			health := models.SourceHealth{
				SourceID:     src.ID,
				SourceName:   src.Name,
				Method:       res.Method,
				Success:      res.Err == nil,
				ArticleCount: len(res.Articles),
				ScrapedAt:    now,
			}
			if res.Err != nil {
				health.Error = res.Err.Error()
				a.Logger.Printf("source %s failed via %s: %v", src.Name, res.Method, res.Err)
			} else {
				src.LastSuccessAt = now
			}
			results[i] = indexed{idx: i, src: src, health: health, items: res.Articles}
		}(i)
	}
	wg.Wait()

	out := AcquisitionResult{Sources: make([]models.SourceDescriptor, 0, len(sources))}
	var all []models.CandidateArticle
	for _, r := range results {
		out.Sources = append(out.Sources, r.src)
		if r.src.Disabled {
			continue
		}
		out.Health = append(out.Health, r.health)
		all = append(all, r.items...)
	}
	out.Articles = DedupeByLink(all)
	return out
}

// fetchSource tries the source's configured strategies in priority order:
// RSS when a feed URL is present, then static HTTP, then the headless
// browser. Dynamic sources skip the static attempt. A source none of the
// strategies can serve (a dynamic source with no feed while the browser is
// unavailable) is a failure, not a silent empty success.
func (a *Acquirer) fetchSource(ctx context.Context, src *models.SourceDescriptor) Result {
	var last Result
	attempted := false
	if src.RSSURL != "" && a.RSS != nil {
		attempted = true
		last = a.RSS.Fetch(ctx, src)
		if last.Err == nil {
			return last
		}
	}
	if !src.Dynamic && a.Static != nil {
		attempted = true
		last = a.Static.Fetch(ctx, src)
		if last.Err == nil {
			return last
		}
	}
	if a.Browser != nil {
		attempted = true
		last = a.Browser.Fetch(ctx, src)
	}
	if !attempted {
		last.Err = &models.FetchError{
			Source: src.Name,
			URL:    src.BaseURL,
			Err:    errors.New("no usable fetch strategy for source"),
		}
	}
	return last
}
