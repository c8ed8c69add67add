package index

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/Aman-CERP/docrag/internal/embed"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyShape indicates a count, dimension, metric or model mismatch.
	InconsistencyShape InconsistencyType = iota
	// InconsistencyRecord indicates a chunk that differs after reload.
	InconsistencyRecord
	// InconsistencyVector indicates a vector that differs after reload.
	InconsistencyVector
	// InconsistencyGraph indicates the reloaded graph answers a probe differently.
	InconsistencyGraph
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyShape:
		return "shape"
	case InconsistencyRecord:
		return "record"
	case InconsistencyVector:
		return "vector"
	case InconsistencyGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// Inconsistency is one difference between the in-memory and persisted index.
type Inconsistency struct {
	Type    InconsistencyType
	Ordinal int
	Details string
}

// CheckResult contains the outcome of a verification.
type CheckResult struct {
	// Checked is the number of entries compared.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// OK reports whether no inconsistencies were found.
func (r *CheckResult) OK() bool {
	return len(r.Inconsistencies) == 0
}

// maxProbes bounds the graph probes per verification.
const maxProbes = 8

// Verify reloads the snapshot at location and compares it entry by entry
// with idx. Probes run the same queries through both graphs. When embedder
// is non-nil one probe embeds the first chunk's text afresh.
func Verify(ctx context.Context, idx *store.Index, location string, embedder embed.Embedder) (*CheckResult, error) {
	start := time.Now()
	loaded, err := store.Load(ctx, location, idx.Dimensions())
	if err != nil {
		return nil, err
	}

	var issues []Inconsistency
	shape := func(field string, want, got any) {
		if want != got {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyShape,
				Ordinal: -1,
				Details: fmt.Sprintf("%s: memory %v, disk %v", field, want, got),
			})
		}
	}
	shape("count", idx.Size(), loaded.Size())
	shape("dimensions", idx.Dimensions(), loaded.Dimensions())
	shape("metric", idx.Metric(), loaded.Metric())
	shape("model", idx.Model(), loaded.Model())
	if len(issues) > 0 {
		return &CheckResult{Inconsistencies: issues, Duration: time.Since(start)}, nil
	}

	for ord := range idx.Size() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		want, got := idx.Chunk(ord), loaded.Chunk(ord)
		if want.ID != got.ID || want.Text != got.Text || want.SourceID != got.SourceID ||
			want.Position != got.Position || !maps.Equal(want.Metadata, got.Metadata) {
			issues = append(issues, Inconsistency{Type: InconsistencyRecord, Ordinal: ord, Details: "chunk " + want.ID})
		}
		if !slices.Equal(idx.Vector(ord), loaded.Vector(ord)) {
			issues = append(issues, Inconsistency{Type: InconsistencyVector, Ordinal: ord, Details: "chunk " + want.ID})
		}
	}

	probes := probeVectors(ctx, idx, embedder)
	for i, probe := range probes {
		want := bestScore(idx, probe)
		got := bestScore(loaded, probe)
		if math.Abs(want-got) > 1e-6 {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyGraph,
				Ordinal: -1,
				Details: fmt.Sprintf("probe %d: memory best %.6f, disk best %.6f", i, want, got),
			})
		}
	}

	slog.Debug("index_verified",
		slog.String("location", location),
		slog.Int("checked", idx.Size()),
		slog.Int("probes", len(probes)),
		slog.Int("inconsistencies", len(issues)))

	return &CheckResult{Checked: idx.Size(), Inconsistencies: issues, Duration: time.Since(start)}, nil
}

// bestScore returns the highest exact score among the graph's candidates
// for probe. Scores rather than ordinals are compared so duplicate chunks
// cannot cause false alarms.
func bestScore(idx *store.Index, probe []float32) float64 {
	query := idx.PrepareQuery(probe)
	best := math.Inf(-1)
	for _, ord := range idx.Neighbors(query, 3) {
		best = max(best, idx.Score(query, ord))
	}
	return best
}

// probeVectors picks stored vectors spread across the index, plus a fresh
// embedding of the first chunk when an embedder is available.
func probeVectors(ctx context.Context, idx *store.Index, embedder embed.Embedder) [][]float32 {
	step := max(1, idx.Size()/maxProbes)
	var probes [][]float32
	for ord := 0; ord < idx.Size() && len(probes) < maxProbes; ord += step {
		probes = append(probes, idx.Vector(ord))
	}
	if embedder != nil {
		vec, err := embedder.EmbedOne(ctx, idx.Chunk(0).Text)
		if err == nil && len(vec) == idx.Dimensions() {
			probes = append(probes, vec)
		} else if err != nil {
			slog.Debug("verify_probe_skipped", slog.String("error", err.Error()))
		}
	}
	return probes
}

// QuickCheck compares idx with the manifest at location without loading
// the data files.
func QuickCheck(idx *store.Index, location string) (bool, error) {
	m, err := store.ReadManifest(location)
	if err != nil {
		return false, err
	}
	consistent := m.Count == idx.Size() && m.Dimensions == idx.Dimensions() &&
		m.Metric == idx.Metric() && m.Model == idx.Model()
	if !consistent {
		slog.Debug("index_manifest_mismatch",
			slog.Int("manifest_count", m.Count),
			slog.Int("memory_count", idx.Size()),
			slog.Int("manifest_dims", m.Dimensions),
			slog.Int("memory_dims", idx.Dimensions()))
	}
	return consistent, nil
}

// verifyError converts a failed check into an index-corrupt error.
func verifyError(location string, result *CheckResult) error {
	first := result.Inconsistencies[0]
	return derrors.New(derrors.ErrCodeIndexCorrupt,
		fmt.Sprintf("persisted index differs from the built index (%d issues)", len(result.Inconsistencies)), nil).
		WithStage(derrors.StagePersist).
		WithDetail("location", location).
		WithDetail("first_issue", first.Type.String()+": "+first.Details).
		WithSuggestion("Rebuild the index with: docrag index")
}
