package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/observability"
)

// CorpusProvider supplies the live document set an index is built over. The
// vector store's collection is the source of truth; the cache is never
// authoritative.
type CorpusProvider interface {
	Count(ctx context.Context, eventID uuid.UUID) (int, error)
	AllDocumentTexts(ctx context.Context, eventID uuid.UUID) (map[string]string, error)
}

type entry struct {
	mu         sync.Mutex
	index      *Index
	corpusSize int
}

// Cache holds one BM25 index per event and rebuilds it whenever the live
// corpus size diverges from the size recorded at build time. The size-only
// check is deliberately coarse: same-size-different-content misses are an
// accepted limitation. The read-check-rebuild sequence is mutually exclusive
// per event so concurrent searches never race on a rebuild; searches of other
// events proceed unblocked.
type Cache struct {
	corpus CorpusProvider

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func NewCache(corpus CorpusProvider) *Cache {
	return &Cache{
		corpus:  corpus,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Score scores candidateIDs against queryText, normalized so the best lexical
// match in the batch is 1.0. The second return is false when no lexical signal
// exists (empty query or tokenless corpus); callers must treat that as
// "signal unavailable", not as zero relevance.
func (c *Cache) Score(ctx context.Context, eventID uuid.UUID, queryText string, candidateIDs []string) ([]float64, bool, error) {
	queryTokens := Tokenize(queryText)
	if len(queryTokens) == 0 {
		return nil, false, nil
	}

	idx, err := c.indexFor(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	if idx.Empty() {
		return nil, false, nil
	}

	raw := idx.Scores(queryTokens)

	scores := make([]float64, len(candidateIDs))
	maxScore := 0.0
	for i, id := range candidateIDs {
		scores[i] = raw[id]
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}
	if maxScore > 0 {
		for i := range scores {
			scores[i] /= maxScore
		}
	}
	return scores, true, nil
}

// indexFor returns the cached index, rebuilding it under the per-event lock
// when absent or stale.
func (c *Cache) indexFor(ctx context.Context, eventID uuid.UUID) (*Index, error) {
	c.mu.Lock()
	e, ok := c.entries[eventID]
	if !ok {
		e = &entry{}
		c.entries[eventID] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := c.corpus.Count(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lexical staleness check: %w", err)
	}

	if e.index != nil && e.corpusSize == live {
		return e.index, nil
	}

	docs, err := c.corpus.AllDocumentTexts(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lexical rebuild: %w", err)
	}

	e.index = NewIndex(docs)
	e.corpusSize = live
	observability.LexicalRebuilds.Inc()
	slog.Debug("lexical index rebuilt", "event_id", eventID, "docs", len(docs))
	return e.index, nil
}

// Invalidate drops the cached index for an event. The vector store calls this
// after every collection mutation.
func (c *Cache) Invalidate(eventID uuid.UUID) {
	c.mu.Lock()
	e, ok := c.entries[eventID]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.index = nil
	e.corpusSize = 0
	e.mu.Unlock()
}
