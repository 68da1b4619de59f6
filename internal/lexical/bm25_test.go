package lexical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"gender:m", "age:34", "frontal"}, Tokenize("Gender:M  age:34\tFRONTAL"))
	require.Empty(t, Tokenize("   "))
	require.Empty(t, Tokenize(""))
}

func TestIndex_ScoresRankByRelevance(t *testing.T) {
	idx := NewIndex(map[string]string{
		"a": "gender:m frontal close-up high-quality",
		"b": "gender:f profile background low-quality",
		"c": "gender:m angled medium-shot",
	})

	scores := idx.Scores(Tokenize("gender:m frontal"))
	require.Greater(t, scores["a"], scores["c"], "document matching both terms outranks single-term match")
	require.Zero(t, scores["b"], "document without query terms scores zero")
}

func TestIndex_RareTermOutweighsCommon(t *testing.T) {
	idx := NewIndex(map[string]string{
		"a": "frontal centered",
		"b": "frontal centered",
		"c": "frontal profile",
	})

	scores := idx.Scores(Tokenize("profile"))
	require.Greater(t, scores["c"], 0.0)

	common := idx.Scores(Tokenize("frontal"))
	require.Greater(t, scores["c"], common["a"], "rare term carries more weight than a term in every document")
}

func TestIndex_IDFNeverNegative(t *testing.T) {
	// Term present in every document still gets a non-negative idf.
	idx := NewIndex(map[string]string{
		"a": "frontal",
		"b": "frontal",
	})
	scores := idx.Scores(Tokenize("frontal"))
	require.GreaterOrEqual(t, scores["a"], 0.0)
	require.GreaterOrEqual(t, scores["b"], 0.0)
}

func TestIndex_Empty(t *testing.T) {
	require.True(t, NewIndex(nil).Empty())
	require.True(t, NewIndex(map[string]string{"a": "", "b": "  "}).Empty())
	require.False(t, NewIndex(map[string]string{"a": "frontal"}).Empty())
}

func TestIndex_DocCount(t *testing.T) {
	idx := NewIndex(map[string]string{"a": "x", "b": "y", "c": ""})
	require.Equal(t, 3, idx.DocCount())
}

func TestIndex_EmptyCorpusScores(t *testing.T) {
	idx := NewIndex(nil)
	require.Empty(t, idx.Scores(Tokenize("anything")))
}
