// Package search retrieves the chunks of an index most relevant to a question,
// by plain similarity or by maximal marginal relevance (diversity).
package search

import (
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/chunk"
)

// Strategy selects how results are chosen.
type Strategy string

const (
	// StrategySimilarity returns the k most similar chunks.
	StrategySimilarity Strategy = "similarity"
	// StrategyDiversity re-ranks a candidate pool with maximal marginal relevance.
	StrategyDiversity Strategy = "diversity"
)

// Defaults for retriever options.
const (
	DefaultLambda         = 0.5
	DefaultFetchK         = 20
	DefaultExactThreshold = 4096
	DefaultQueryTimeout   = 30 * time.Second

	// graphOversample is how many graph candidates are rescored per
	// requested result in approximate mode.
	graphOversample = 10
)

// ParseStrategy maps a configured name to a Strategy. "mmr" is an alias for
// diversity. The second result is false for unknown names.
func ParseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "similarity":
		return StrategySimilarity, true
	case "diversity", "mmr":
		return StrategyDiversity, true
	default:
		return "", false
	}
}

// Result is one retrieved chunk.
type Result struct {
	Chunk chunk.Chunk
	// Ordinal is the entry's position in the index (insertion order).
	Ordinal int
	// Score is the similarity between the question and the chunk.
	Score float64
}

// candidate is an ordinal with its relevance to the query.
type candidate struct {
	ord   int
	score float64
}

// better orders candidates by score descending, then ordinal ascending.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.ord < b.ord
}
