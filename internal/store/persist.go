package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/google/uuid"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// failpoint is called between persistence steps; tests set it to inject failures.
var failpoint = func(step string) error { return nil }

// Persist writes idx as a new snapshot generation at location and publishes
// it by atomically replacing the manifest.
//
// Writers are serialized by an advisory lock. On failure the new
// generation's files are removed and the previous manifest stays in place.
func Persist(ctx context.Context, idx *Index, location string) (err error) {
	if idx == nil || idx.Size() == 0 {
		return derrors.New(derrors.ErrCodeInvalidInput, "cannot persist an empty index", nil).
			WithStage(derrors.StagePersist).
			WithDetail("location", location)
	}

	persistErr := func(msg string, cause error) error {
		return derrors.New(derrors.ErrCodePersistence, msg, cause).
			WithStage(derrors.StagePersist).
			WithDetail("location", location)
	}

	if err := os.MkdirAll(location, 0755); err != nil {
		return persistErr("failed to create index directory", err)
	}

	lock := newWriterLock(location)
	if err := lock.Lock(ctx); err != nil {
		return persistErr("failed to acquire writer lock", err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("index_unlock_failed", slog.String("error", unlockErr.Error()))
		}
	}()

	start := time.Now()
	gen := uuid.New().String()
	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range written {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Warn("index_generation_cleanup_failed",
					slog.String("path", path),
					slog.String("error", rmErr.Error()))
			}
		}
		slog.Error("index_persist_failed",
			slog.String("location", location),
			slog.String("generation", gen),
			slog.String("error", err.Error()))
	}()

	vecPath := filepath.Join(location, vectorsFileName(gen))
	written = append(written, vecPath)
	vectors, err := writeVectors(vecPath, idx)
	if err != nil {
		return persistErr("failed to write vectors", err)
	}
	if err := failpoint("vectors"); err != nil {
		return persistErr("failed after writing vectors", err)
	}

	recPath := filepath.Join(location, recordsFileName(gen))
	tmpRecPath := recPath + ".tmp"
	written = append(written, tmpRecPath, recPath)
	if err := writeRecords(ctx, tmpRecPath, idx); err != nil {
		return persistErr("failed to write records", err)
	}
	records, err := fileRef(tmpRecPath)
	if err != nil {
		return persistErr("failed to checksum records", err)
	}
	records.Name = filepath.Base(recPath)
	if err := os.Rename(tmpRecPath, recPath); err != nil {
		return persistErr("failed to rename records", err)
	}
	if err := failpoint("records"); err != nil {
		return persistErr("failed after writing records", err)
	}

	manifest := Manifest{
		FormatVersion: FormatVersion,
		Generation:    gen,
		CreatedAt:     time.Now().UTC(),
		Count:         idx.Size(),
		Sources:       countSources(idx),
		Dimensions:    idx.Dimensions(),
		Metric:        idx.Metric(),
		Model:         idx.Model(),
		Graph:         idx.Params(),
		Vectors:       vectors,
		Records:       records,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return persistErr("failed to encode manifest", err)
	}
	if err := failpoint("manifest"); err != nil {
		return persistErr("failed before publishing manifest", err)
	}
	if err := renameio.WriteFile(filepath.Join(location, ManifestFileName), data, 0644); err != nil {
		return persistErr("failed to publish manifest", err)
	}

	slog.Info("index_persisted",
		slog.String("location", location),
		slog.String("generation", gen),
		slog.Int("count", manifest.Count),
		slog.Duration("elapsed", time.Since(start)))

	removeStaleGenerations(location, gen)
	return nil
}

// writeVectors exports the graph to path through a renameio pending file.
func writeVectors(path string, idx *Index) (FileRef, error) {
	pf, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return FileRef{}, err
	}
	defer func() { _ = pf.Cleanup() }()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(pf, h)}
	if err := idx.graph.Export(cw); err != nil {
		return FileRef{}, fmt.Errorf("failed to export graph: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return FileRef{}, err
	}
	return FileRef{
		Name:   filepath.Base(path),
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   cw.n,
	}, nil
}

// removeStaleGenerations deletes generation files not referenced by gen.
// Failures are logged; the new snapshot is already published.
func removeStaleGenerations(location, gen string) {
	entries, err := os.ReadDir(location)
	if err != nil {
		slog.Warn("index_stale_scan_failed", slog.String("location", location), slog.String("error", err.Error()))
		return
	}
	keep := map[string]bool{vectorsFileName(gen): true, recordsFileName(gen): true}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || keep[name] || !isGenerationFile(name) {
			continue
		}
		if err := os.Remove(filepath.Join(location, name)); err != nil {
			slog.Warn("index_stale_remove_failed", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("index_stale_removed", slog.String("file", name))
	}
}

func isGenerationFile(name string) bool {
	return (strings.HasPrefix(name, "vectors-") && strings.HasSuffix(name, ".hnsw")) ||
		(strings.HasPrefix(name, "records-") && (strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".db.tmp")))
}

func fileRef(path string) (FileRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRef{}, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{Name: filepath.Base(path), SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

func countSources(idx *Index) int {
	seen := make(map[string]struct{})
	for _, c := range idx.chunks {
		seen[c.SourceID] = struct{}{}
	}
	return len(seen)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
