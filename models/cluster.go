package models

import "sort"

// EventCluster groups article ids believed to describe one real-world event.
// ArticleIDs is a set: merging clusters with the same key is a set union,
// which keeps the merge idempotent and order-independent.
type EventCluster struct {
	EventKey   string              `json:"event_key"`
	ArticleIDs map[string]struct{} `json:"-"`
}

// NewEventCluster builds a cluster from a key and its member article ids.
func NewEventCluster(eventKey string, articleIDs ...string) EventCluster {
	c := EventCluster{EventKey: eventKey, ArticleIDs: make(map[string]struct{}, len(articleIDs))}
	for _, id := range articleIDs {
		if id != "" {
			c.ArticleIDs[id] = struct{}{}
		}
	}
	return c
}

// Merge unions another cluster's article ids into this one. Clusters with
// different keys are left untouched.
func (c *EventCluster) Merge(other EventCluster) {
	if other.EventKey != c.EventKey {
		return
	}
	if c.ArticleIDs == nil {
		c.ArticleIDs = make(map[string]struct{}, len(other.ArticleIDs))
	}
	for id := range other.ArticleIDs {
		c.ArticleIDs[id] = struct{}{}
	}
}

// SortedArticleIDs returns the member ids in deterministic order.
func (c EventCluster) SortedArticleIDs() []string {
	ids := make([]string, 0, len(c.ArticleIDs))
	for id := range c.ArticleIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MergeClusters folds a batch of clusters into the accumulator map keyed by
// eventKey. Clusters emitted for the same key across batches end up as one
// entry holding the union of their article ids.
func MergeClusters(acc map[string]EventCluster, batch []EventCluster) map[string]EventCluster {
	if acc == nil {
		acc = make(map[string]EventCluster, len(batch))
	}
	for _, c := range batch {
		if c.EventKey == "" {
			continue
		}
		existing, ok := acc[c.EventKey]
		if !ok {
			existing = NewEventCluster(c.EventKey)
		}
		existing.Merge(c)
		acc[c.EventKey] = existing
	}
	return acc
}
