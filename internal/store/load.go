package store

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Load reads the published snapshot at location.
//
// dimHint, when positive, must match the manifest's dimensions.
// A missing manifest is ERR_INDEX_NOT_FOUND; anything inconsistent is
// ERR_INDEX_CORRUPT. Loads take no lock: published files are never rewritten.
func Load(ctx context.Context, location string, dimHint int) (*Index, error) {
	start := time.Now()

	m, err := ReadManifest(location)
	if err != nil {
		return nil, err
	}

	idx, err := loadGeneration(ctx, location, m, dimHint)
	if errors.Is(err, os.ErrNotExist) {
		// A writer may have published a newer generation and removed ours.
		if latest, mErr := ReadManifest(location); mErr == nil && latest.Generation != m.Generation {
			slog.Debug("index_generation_changed_during_load",
				slog.String("old", m.Generation),
				slog.String("new", latest.Generation))
			m = latest
			idx, err = loadGeneration(ctx, location, m, dimHint)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, ok := derrors.As(err); ok {
			return nil, err
		}
		return nil, corrupt(location, "failed to load snapshot", err).
			WithDetail("generation", m.Generation)
	}

	slog.Info("index_loaded",
		slog.String("location", location),
		slog.String("generation", m.Generation),
		slog.Int("count", idx.Size()),
		slog.Duration("elapsed", time.Since(start)))

	return idx, nil
}

func loadGeneration(ctx context.Context, location string, m *Manifest, dimHint int) (*Index, error) {
	if dimHint > 0 && dimHint != m.Dimensions {
		return nil, corrupt(location,
			fmt.Sprintf("snapshot has %d dimensions, expected %d", m.Dimensions, dimHint), nil).
			WithSuggestion("The embedding model changed; rebuild the index with: docrag index")
	}
	if m.Count <= 0 || m.Dimensions <= 0 {
		return nil, corrupt(location, "manifest has no entries", nil)
	}
	if m.Metric != MetricCosine && m.Metric != MetricL2 {
		return nil, corrupt(location, fmt.Sprintf("unsupported metric %q", m.Metric), nil)
	}

	vecPath := filepath.Join(location, m.Vectors.Name)
	data, err := os.ReadFile(vecPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectors: %w", err)
	}
	if sum := sha256.Sum256(data); hex.EncodeToString(sum[:]) != m.Vectors.SHA256 {
		return nil, corrupt(location, "vectors checksum mismatch", nil).WithDetail("file", m.Vectors.Name)
	}

	recPath := filepath.Join(location, m.Records.Name)
	ref, err := fileRef(recPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if ref.SHA256 != m.Records.SHA256 {
		return nil, corrupt(location, "records checksum mismatch", nil).WithDetail("file", m.Records.Name)
	}

	params := m.Graph.withDefaults()
	graph := newGraph(m.Metric, params)
	if err := graph.Import(bufio.NewReader(bytes.NewReader(data))); err != nil {
		return nil, corrupt(location, "failed to import graph", err).WithDetail("file", m.Vectors.Name)
	}
	if graph.Len() != m.Count {
		return nil, corrupt(location,
			fmt.Sprintf("graph has %d nodes, manifest says %d", graph.Len(), m.Count), nil)
	}

	chunks, vectors, err := readRecords(ctx, recPath, m.Count, m.Dimensions)
	if err != nil {
		return nil, corrupt(location, "failed to read records", err).WithDetail("file", m.Records.Name)
	}

	return &Index{
		chunks:  chunks,
		vectors: vectors,
		graph:   graph,
		dims:    m.Dimensions,
		metric:  m.Metric,
		model:   m.Model,
		params:  params,
	}, nil
}
