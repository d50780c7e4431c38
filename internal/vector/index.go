// Package vector provides the in-memory hybrid retrieval index backing
// the chat orchestrator. BM25 scoring comes from a mem-only bleve index;
// embedding similarity is brute-force cosine over the stored vectors,
// which is fine for corpora of a few thousand events.
package vector

import (
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
)

// Document is one indexed unit: a synthesized event or an article body.
type Document struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "event" or "article"
	Title   string `json:"title"`
	Text    string `json:"text"`
	Country string `json:"country"`
	Created string `json:"created"`
}

// Hit is one retrieval result.
type Hit struct {
	DocID   string
	Title   string
	Snippet string
	Score   float64
	Rank    int
}

type embedVec struct {
	docID string
	vec   []float32
}

const rrfK = 60 // reciprocal-rank-fusion constant

// Index is a thread-safe hybrid BM25 + vector index.
type Index struct {
	bleve   bleve.Index
	meta    map[string]Document
	vectors []embedVec
	mu      sync.RWMutex
}

// NewIndex builds an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]Document)}, nil
}

// Add indexes a document, optionally with its embedding vector.
func (ix *Index) Add(doc Document, vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.meta[doc.ID] = doc
	if len(vec) > 0 {
		ix.vectors = append(ix.vectors, embedVec{docID: doc.ID, vec: vec})
	}
	return ix.bleve.Index(doc.ID, doc)
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

// Get returns the stored document for an id.
func (ix *Index) Get(id string) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.meta[id]
	return doc, ok
}

// BM25Search runs a keyword query against the bleve index.
func (ix *Index) BM25Search(q string, k int) ([]Hit, error) {
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Hit
	for i, hit := range res.Hits {
		doc := ix.meta[hit.ID]
		out = append(out, Hit{
			DocID: hit.ID, Title: doc.Title, Snippet: snippet(doc.Text),
			Score: hit.Score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// VectorSearch ranks documents by cosine similarity to the query vector.
func (ix *Index) VectorSearch(q []float32, k int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	var scoreds []scored
	for _, v := range ix.vectors {
		scoreds = append(scoreds, scored{id: v.docID, score: Cosine(q, v.vec)})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []Hit
	for i, sc := range scoreds {
		doc := ix.meta[sc.id]
		out = append(out, Hit{
			DocID: sc.id, Title: doc.Title, Snippet: snippet(doc.Text),
			Score: sc.score, Rank: i + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out
}

// FuseRRF merges two ranked lists with reciprocal rank fusion.
func FuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		item  Hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.DocID]
			if !ok {
				m[h.DocID] = &agg{item: h}
				x = m[h.DocID]
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)
	items := make([]agg, 0, len(m))
	for _, v := range m {
		items = append(items, *v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })
	if k > len(items) {
		k = len(items)
	}
	out := make([]Hit, 0, k)
	for i := 0; i < k; i++ {
		h := items[i].item
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

// Cosine computes cosine similarity between two vectors. Mismatched
// lengths are truncated to the shorter one.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func snippet(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}
