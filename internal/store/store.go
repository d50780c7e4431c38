// Package store persists pipeline output to Postgres: the source
// registry's health fields, candidate articles, synthesized events,
// opportunities, the funnel outcome ledger and run statistics.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/prospero-intel/prospero/models"
)

// Store wraps the Postgres connection.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// Migrate applies schema migrations from the given directory.
// dir example: file://migrations
func Migrate(dir, dsn string) error {
	if dir == "" {
		dir = "file://migrations"
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// ListSources reads the active source registry.
func (s *Store) ListSources(ctx context.Context) ([]models.SourceDescriptor, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, country, base_url, COALESCE(rss_url,''), COALESCE(link_selector,''),
		       COALESCE(content_selector,''), COALESCE(wait_selector,''), COALESCE(extractor,''),
		       dynamic, disabled, last_scraped_at, last_success_at, failure_notes
		FROM sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.SourceDescriptor
	for rows.Next() {
		var src models.SourceDescriptor
		var lastScraped, lastSuccess sql.NullTime
		var notes pq.StringArray
		if err := rows.Scan(&src.ID, &src.Name, &src.Country, &src.BaseURL, &src.RSSURL,
			&src.LinkSelector, &src.ContentSelector, &src.WaitSelector, &src.Extractor,
			&src.Dynamic, &src.Disabled, &lastScraped, &lastSuccess, &notes); err != nil {
			return nil, err
		}
		if lastScraped.Valid {
			src.LastScrapedAt = lastScraped.Time
		}
		if lastSuccess.Valid {
			src.LastSuccessAt = lastSuccess.Time
		}
		src.FailureNotes = notes
		out = append(out, src)
	}
	return out, rows.Err()
}

// UpdateSourceHealth writes back the mutable registry fields for all
// scraped sources in one transaction. The pipeline calls this once per
// run, not once per source.
func (s *Store) UpdateSourceHealth(ctx context.Context, sources []models.SourceDescriptor) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE sources
		SET rss_url = $2, last_scraped_at = $3, last_success_at = $4, failure_notes = $5
		WHERE id = $1`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, src := range sources {
		var rss sql.NullString
		if src.RSSURL != "" {
			rss = sql.NullString{String: src.RSSURL, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, src.ID, rss,
			zeroNullTime(src.LastScrapedAt), zeroNullTime(src.LastSuccessAt),
			pq.StringArray(src.FailureNotes)); err != nil {
			return fmt.Errorf("update source %s: %w", src.ID, err)
		}
	}
	return tx.Commit()
}

// SaveArticles inserts candidate articles, skipping links already stored.
func (s *Store) SaveArticles(ctx context.Context, runID string, articles []models.CandidateArticle) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (id, run_id, headline, link, source_name, country, published_at, raw_content, enrichment_err, content_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (link) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, runID, a.Headline, a.Link, a.SourceName,
			a.Country, nullTime(a.PublishedAt), a.RawContent, a.EnrichmentErr, a.ContentPreview); err != nil {
			return fmt.Errorf("insert article %s: %w", a.Link, err)
		}
	}
	return tx.Commit()
}

// SaveEvents upserts synthesized events by event key.
func (s *Store) SaveEvents(ctx context.Context, runID string, events []models.SynthesizedEvent) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_key, run_id, headline, summary, classification, key_individuals, score, source_article_ids, from_salvage, emailed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_key) DO UPDATE SET
			headline = EXCLUDED.headline,
			summary = EXCLUDED.summary,
			classification = EXCLUDED.classification,
			key_individuals = EXCLUDED.key_individuals,
			score = EXCLUDED.score,
			source_article_ids = EXCLUDED.source_article_ids`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range events {
		created := ev.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, ev.EventKey, runID, ev.Headline, ev.Summary,
			ev.Classification, pq.StringArray(ev.KeyIndividuals), ev.Score,
			pq.StringArray(ev.SourceArticleIDs), ev.FromSalvage, ev.Emailed, created); err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.EventKey, err)
		}
	}
	return tx.Commit()
}

// MarkEventEmailed flips the emailed flag after a successful dispatch.
func (s *Store) MarkEventEmailed(ctx context.Context, eventKey string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE events SET emailed = TRUE WHERE event_key = $1`, eventKey)
	return err
}

// SaveOpportunities inserts opportunity records for a run.
func (s *Store) SaveOpportunities(ctx context.Context, runID string, opps []models.Opportunity) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities (id, run_id, reach_out_to, contact_details, wealth_estimate_mm, why_contact, event_key, source_article_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, o := range opps {
		var wealth sql.NullFloat64
		if o.WealthEstimateMM != nil {
			wealth = sql.NullFloat64{Float64: *o.WealthEstimateMM, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), runID, o.ReachOutTo, o.ContactDetails,
			wealth, pq.StringArray(o.WhyContact), o.EventKey, o.SourceArticleID); err != nil {
			return fmt.Errorf("insert opportunity for %s: %w", o.ReachOutTo, err)
		}
	}
	return tx.Commit()
}

// SaveOutcomes appends the funnel ledger for a run.
func (s *Store) SaveOutcomes(ctx context.Context, runID string, outcomes []models.EnrichmentOutcome) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (run_id, link, headline, newspaper, headline_score, final_score, outcome, assessment_snippets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, o := range outcomes {
		var final sql.NullInt64
		if o.FinalScore != nil {
			final = sql.NullInt64{Int64: int64(*o.FinalScore), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, o.Link, o.Headline, o.Newspaper,
			o.HeadlineScore, final, string(o.Outcome), pq.StringArray(o.AssessmentSnippets)); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Link, err)
		}
	}
	return tx.Commit()
}

// SaveRunStats records the aggregate statistics for a finished run.
func (s *Store) SaveRunStats(ctx context.Context, runID string, stats models.RunStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, finished_at, stats)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET finished_at = EXCLUDED.finished_at, stats = EXCLUDED.stats`,
		runID, time.Now().UTC(), payload)
	return err
}

// LatestRunStats returns the most recent run's statistics.
func (s *Store) LatestRunStats(ctx context.Context) (string, *models.RunStats, error) {
	var runID string
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, stats FROM runs ORDER BY finished_at DESC LIMIT 1`).Scan(&runID, &payload)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	var stats models.RunStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return "", nil, err
	}
	return runID, &stats, nil
}

// RecentEvents returns the newest synthesized events, used both as
// synthesis history context and to seed the chat retrieval index.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.SynthesizedEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT event_key, headline, summary, classification, key_individuals, score, source_article_ids, from_salvage, emailed, created_at
		FROM events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.SynthesizedEvent
	for rows.Next() {
		var ev models.SynthesizedEvent
		var individuals, sources pq.StringArray
		if err := rows.Scan(&ev.EventKey, &ev.Headline, &ev.Summary, &ev.Classification,
			&individuals, &ev.Score, &sources, &ev.FromSalvage, &ev.Emailed, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.KeyIndividuals = individuals
		ev.SourceArticleIDs = sources
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventsByIndividual finds prior events naming an individual, used as
// internal history context during synthesis.
func (s *Store) EventsByIndividual(ctx context.Context, name string, limit int) ([]models.SynthesizedEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT event_key, headline, summary, classification, key_individuals, score, source_article_ids, from_salvage, emailed, created_at
		FROM events WHERE $1 ILIKE ANY(key_individuals)
		ORDER BY created_at DESC LIMIT $2`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.SynthesizedEvent
	for rows.Next() {
		var ev models.SynthesizedEvent
		var individuals, sources pq.StringArray
		if err := rows.Scan(&ev.EventKey, &ev.Headline, &ev.Summary, &ev.Classification,
			&individuals, &ev.Score, &sources, &ev.FromSalvage, &ev.Emailed, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.KeyIndividuals = individuals
		ev.SourceArticleIDs = sources
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func zeroNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
