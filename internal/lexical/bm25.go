// Package lexical scores face descriptor documents against query text with
// BM25. An index covers one event's full corpus so ranks stay globally
// consistent across searches; the cache layer rebuilds it when the corpus
// changes size.
package lexical

import (
	"math"
	"strings"
)

// BM25 parameters (standard values).
const (
	bm25K1 = 1.2  // term frequency saturation
	bm25B  = 0.75 // length normalization
)

// Tokenize case-folds and splits on whitespace. No stemming, no stop words:
// descriptor documents are built from a controlled vocabulary, so every token
// carries signal.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Index is an immutable BM25 index over one corpus snapshot. Build it with
// NewIndex; concurrent reads need no locking.
type Index struct {
	termFreqs    map[string]map[string]int // term -> docID -> frequency
	docLengths   map[string]int
	avgDocLength float64
	docCount     int
	tokenTotal   int
}

// NewIndex builds an index over (docID, text) pairs.
func NewIndex(docs map[string]string) *Index {
	idx := &Index{
		termFreqs:  make(map[string]map[string]int),
		docLengths: make(map[string]int, len(docs)),
	}

	var totalLen int
	for id, text := range docs {
		tokens := Tokenize(text)
		idx.docLengths[id] = len(tokens)
		idx.docCount++
		totalLen += len(tokens)
		idx.tokenTotal += len(tokens)

		for _, tok := range tokens {
			if idx.termFreqs[tok] == nil {
				idx.termFreqs[tok] = make(map[string]int)
			}
			idx.termFreqs[tok][id]++
		}
	}
	if idx.docCount > 0 {
		idx.avgDocLength = float64(totalLen) / float64(idx.docCount)
	}
	return idx
}

// DocCount returns the number of indexed documents.
func (idx *Index) DocCount() int {
	return idx.docCount
}

// Empty reports whether the whole corpus tokenized to nothing, in which case
// there is no lexical signal to give.
func (idx *Index) Empty() bool {
	return idx.tokenTotal == 0
}

// Scores computes raw BM25 scores of every document against the query tokens.
// Documents without any query term score zero.
func (idx *Index) Scores(queryTokens []string) map[string]float64 {
	scores := make(map[string]float64)
	if idx.docCount == 0 || idx.avgDocLength == 0 {
		return scores
	}

	for _, term := range queryTokens {
		postings, ok := idx.termFreqs[term]
		if !ok {
			continue
		}
		idf := idx.idf(term)
		for docID, tf := range postings {
			docLen := float64(idx.docLengths[docID])
			f := float64(tf)
			num := f * (bm25K1 + 1)
			den := f + bm25K1*(1-bm25B+bm25B*(docLen/idx.avgDocLength))
			scores[docID] += idf * (num / den)
		}
	}
	return scores
}

// idf uses the Lucene/Elasticsearch BM25 variant with +1 smoothing so common
// terms never go negative.
func (idx *Index) idf(term string) float64 {
	df := float64(len(idx.termFreqs[term]))
	n := float64(idx.docCount)
	v := math.Log(1 + (n-df+0.5)/(df+0.5))
	if v < 0 {
		return 0
	}
	return v
}
