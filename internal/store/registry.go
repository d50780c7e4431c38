package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prospero-intel/prospero/models"
)

// LoadSourcesFile reads a JSON source registry from disk. It exists for
// local runs and tests that do not have Postgres wired up.
func LoadSourcesFile(path string) ([]models.SourceDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var sources []models.SourceDescriptor
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	for i, src := range sources {
		if src.ID == "" || src.BaseURL == "" {
			return nil, fmt.Errorf("sources file %s: entry %d missing id or base_url", path, i)
		}
	}
	return sources, nil
}

// WriteSourcesFile persists the registry back to disk, preserving the
// health fields the pipeline updated.
func WriteSourcesFile(path string, sources []models.SourceDescriptor) error {
	raw, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadWatchlistFile reads the tracked-entity watchlist from disk.
func LoadWatchlistFile(path string) ([]models.WatchlistEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist file: %w", err)
	}
	var entries []models.WatchlistEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse watchlist file %s: %w", path, err)
	}
	return entries, nil
}
