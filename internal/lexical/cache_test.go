package lexical

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeCorpus struct {
	docs   map[string]string
	counts int // Count calls
	builds int // AllDocumentTexts calls
}

func (f *fakeCorpus) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	f.counts++
	return len(f.docs), nil
}

func (f *fakeCorpus) AllDocumentTexts(ctx context.Context, eventID uuid.UUID) (map[string]string, error) {
	f.builds++
	out := make(map[string]string, len(f.docs))
	for k, v := range f.docs {
		out[k] = v
	}
	return out, nil
}

func TestCache_ScoreNormalizesToBatchMax(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{
		"a": "gender:m frontal close-up",
		"b": "gender:m angled",
		"c": "gender:f profile",
	}}
	cache := NewCache(corpus)
	eventID := uuid.New()

	scores, ok, err := cache.Score(context.Background(), eventID, "gender:m frontal", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, scores, 3)
	require.Equal(t, 1.0, scores[0], "best lexical match normalizes to 1.0")
	require.Greater(t, scores[0], scores[1])
	require.Zero(t, scores[2])
}

func TestCache_UnscoredWhenQueryEmpty(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "frontal"}}
	cache := NewCache(corpus)

	scores, ok, err := cache.Score(context.Background(), uuid.New(), "   ", []string{"a"})
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, scores)
	require.Zero(t, corpus.builds, "empty query never touches the corpus")
}

func TestCache_UnscoredWhenCorpusTokenless(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "", "b": " "}}
	cache := NewCache(corpus)

	_, ok, err := cache.Score(context.Background(), uuid.New(), "frontal", []string{"a"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_ReusesIndexWhileCorpusStable(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "frontal"}}
	cache := NewCache(corpus)
	eventID := uuid.New()
	ctx := context.Background()

	_, _, err := cache.Score(ctx, eventID, "frontal", []string{"a"})
	require.NoError(t, err)
	_, _, err = cache.Score(ctx, eventID, "frontal", []string{"a"})
	require.NoError(t, err)

	require.Equal(t, 1, corpus.builds, "stable corpus size means one build")
	require.Equal(t, 2, corpus.counts, "every score checks staleness")
}

func TestCache_RebuildsWhenCorpusGrows(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "frontal"}}
	cache := NewCache(corpus)
	eventID := uuid.New()
	ctx := context.Background()

	_, _, err := cache.Score(ctx, eventID, "frontal", []string{"a"})
	require.NoError(t, err)

	corpus.docs["b"] = "profile centered"

	scores, ok, err := cache.Score(ctx, eventID, "profile", []string{"b"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.0, scores[0], "new document is visible after rebuild")
	require.Equal(t, 2, corpus.builds)
}

func TestCache_InvalidateForcesRebuild(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "frontal"}}
	cache := NewCache(corpus)
	eventID := uuid.New()
	ctx := context.Background()

	_, _, err := cache.Score(ctx, eventID, "frontal", []string{"a"})
	require.NoError(t, err)

	cache.Invalidate(eventID)

	_, _, err = cache.Score(ctx, eventID, "frontal", []string{"a"})
	require.NoError(t, err)
	require.Equal(t, 2, corpus.builds)
}

func TestCache_EventsAreIndependent(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string]string{"a": "frontal"}}
	cache := NewCache(corpus)
	ctx := context.Background()

	_, _, err := cache.Score(ctx, uuid.New(), "frontal", []string{"a"})
	require.NoError(t, err)
	_, _, err = cache.Score(ctx, uuid.New(), "frontal", []string{"a"})
	require.NoError(t, err)

	require.Equal(t, 2, corpus.builds, "each event builds its own index")
}
