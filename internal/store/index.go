// Package store builds, persists and loads the vector index.
//
// An Index is immutable once built or loaded. Persisted snapshots are
// published through a single manifest file so readers never observe a
// partially written generation.
package store

import (
	"math"
	"math/rand"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/docrag/internal/chunk"
)

// Supported distance metrics.
const (
	MetricCosine = "cos"
	MetricL2     = "l2"
)

// Graph defaults.
const (
	DefaultM        = 16
	DefaultEfSearch = 64
	defaultMl       = 0.25

	// graphSeed fixes level assignment so equal inputs build equal layers.
	graphSeed = 0x646f63726167
)

// GraphParams are the HNSW construction and search parameters.
type GraphParams struct {
	M        int     `json:"m"`
	EfSearch int     `json:"ef_search"`
	Ml       float64 `json:"ml"`
}

func (p GraphParams) withDefaults() GraphParams {
	if p.M <= 0 {
		p.M = DefaultM
	}
	if p.EfSearch <= 0 {
		p.EfSearch = DefaultEfSearch
	}
	if p.Ml <= 0 {
		p.Ml = defaultMl
	}
	return p
}

// Index is an immutable set of chunks and their vectors, addressed by
// ordinal (insertion order), with an HNSW graph for candidate lookup.
// Safe for concurrent reads.
type Index struct {
	chunks  []chunk.Chunk
	vectors [][]float32
	graph   *hnsw.Graph[uint64]
	dims    int
	metric  string
	model   string
	params  GraphParams
}

func newGraph(metric string, params GraphParams) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	switch metric {
	case MetricL2:
		g.Distance = hnsw.EuclideanDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	g.M = params.M
	g.EfSearch = params.EfSearch
	g.Ml = params.Ml
	g.Rng = rand.New(rand.NewSource(graphSeed))
	return g
}

// newIndex assembles an index and inserts every vector into a fresh graph
// in ordinal order. Vectors must already be normalized for cosine. The
// chunks are copied so later changes by the caller do not reach the index.
func newIndex(chunks []chunk.Chunk, vectors [][]float32, metric, model string, params GraphParams) *Index {
	params = params.withDefaults()
	chunks = cloneChunks(chunks)
	graph := newGraph(metric, params)
	for ord, vec := range vectors {
		graph.Add(hnsw.MakeNode(uint64(ord), vec))
	}
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	return &Index{
		chunks:  chunks,
		vectors: vectors,
		graph:   graph,
		dims:    dims,
		metric:  metric,
		model:   model,
		params:  params,
	}
}

// Size returns the number of entries.
func (idx *Index) Size() int {
	return len(idx.chunks)
}

// Dimensions returns the vector size.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Metric returns the distance metric the index was built with.
func (idx *Index) Metric() string {
	return idx.metric
}

// Model returns the embedding model that produced the vectors.
func (idx *Index) Model() string {
	return idx.model
}

// Params returns the graph parameters.
func (idx *Index) Params() GraphParams {
	return idx.params
}

// Chunk returns a copy of the chunk at ordinal.
func (idx *Index) Chunk(ordinal int) chunk.Chunk {
	return idx.chunks[ordinal].Clone()
}

// Chunks returns a copy of all chunks in ordinal order.
func (idx *Index) Chunks() []chunk.Chunk {
	return cloneChunks(idx.chunks)
}

func cloneChunks(chunks []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.Clone()
	}
	return out
}

// Vector returns the stored vector at ordinal. The slice must not be modified.
func (idx *Index) Vector(ordinal int) []float32 {
	return idx.vectors[ordinal]
}

// PrepareQuery returns a copy of v ready for scoring against this index
// (unit length for cosine).
func (idx *Index) PrepareQuery(v []float32) []float32 {
	q := make([]float32, len(v))
	copy(q, v)
	if idx.metric == MetricCosine {
		normalize(q)
	}
	return q
}

// Score returns the similarity of a prepared query to the entry at ordinal.
// Cosine scores are in [-1, 1]; L2 scores are 1/(1+distance).
func (idx *Index) Score(query []float32, ordinal int) float64 {
	return similarity(idx.metric, query, idx.vectors[ordinal])
}

// Similarity returns the similarity between two stored entries.
func (idx *Index) Similarity(a, b int) float64 {
	return similarity(idx.metric, idx.vectors[a], idx.vectors[b])
}

// Neighbors returns up to k candidate ordinals from the HNSW graph for a
// prepared query. The order is approximate; callers rescore.
func (idx *Index) Neighbors(query []float32, k int) []int {
	if k <= 0 || idx.graph.Len() == 0 {
		return nil
	}
	nodes := idx.graph.Search(query, k)
	ords := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ords = append(ords, int(n.Key))
	}
	return ords
}

func similarity(metric string, a, b []float32) float64 {
	if metric == MetricL2 {
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1.0 / (1.0 + math.Sqrt(sum))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// normalize scales v to unit length in place. Zero vectors are left unchanged.
func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
