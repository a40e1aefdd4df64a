// Package memory provides the optional recall index agents use to enrich
// reasoning input. Nothing in the substrate depends on it for correctness;
// a missing or failing index only degrades prompt quality.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one stored memory.
type Entry struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	StoredAt time.Time         `json:"stored_at"`
}

// SearchResult pairs an entry with its relevance score in [0,1].
type SearchResult struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// Index stores content and retrieves it by relevance to a query.
type Index interface {
	Store(ctx context.Context, content string, metadata map[string]string) (string, error)
	Search(ctx context.Context, query string, filters map[string]string, topK int) ([]SearchResult, error)
}

// TermIndex is an in-process Index scoring by term overlap between query and
// content. It stands in where no embedding backend is configured.
type TermIndex struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTermIndex creates an empty in-process index.
func NewTermIndex() *TermIndex {
	return &TermIndex{}
}

// Store appends an entry and returns its id.
func (x *TermIndex) Store(ctx context.Context, content string, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e := Entry{
		ID:       uuid.New().String(),
		Content:  content,
		Metadata: metadata,
		StoredAt: time.Now(),
	}
	x.mu.Lock()
	x.entries = append(x.entries, e)
	x.mu.Unlock()
	return e.ID, nil
}

// Search returns up to topK entries ranked by term overlap with the query.
// Every filter key must match the entry's metadata exactly. Scores of zero
// are omitted.
func (x *TermIndex) Search(ctx context.Context, query string, filters map[string]string, topK int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []SearchResult
	for _, e := range x.entries {
		if !matchesFilters(e.Metadata, filters) {
			continue
		}
		if score := overlap(terms, tokenize(e.Content)); score > 0 {
			results = append(results, SearchResult{Entry: e, Score: score})
		}
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func matchesFilters(metadata, filters map[string]string) bool {
	for k, v := range filters {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > 1 {
			out[w] = struct{}{}
		}
	}
	return out
}

// overlap is |query ∩ content| / |query|.
func overlap(query, content map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := content[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
