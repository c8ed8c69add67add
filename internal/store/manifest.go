package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
)

// FormatVersion is the on-disk snapshot format understood by this package.
const FormatVersion = 1

// ManifestFileName is the publication point of a snapshot.
const ManifestFileName = "manifest.json"

// FileRef names a generation file and its SHA-256 digest.
type FileRef struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest describes the published snapshot generation.
type Manifest struct {
	FormatVersion int         `json:"format_version"`
	Generation    string      `json:"generation"`
	CreatedAt     time.Time   `json:"created_at"`
	Count         int         `json:"count"`
	Sources       int         `json:"sources"`
	Dimensions    int         `json:"dimensions"`
	Metric        string      `json:"metric"`
	Model         string      `json:"model"`
	Graph         GraphParams `json:"graph"`
	Vectors       FileRef     `json:"vectors"`
	Records       FileRef     `json:"records"`
}

// ReadManifest reads the manifest of the snapshot at location.
// Returns ERR_INDEX_NOT_FOUND when none is published and ERR_INDEX_CORRUPT
// when it cannot be parsed.
func ReadManifest(location string) (*Manifest, error) {
	path := filepath.Join(location, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, derrors.New(derrors.ErrCodeIndexNotFound, "no index snapshot found", err).
				WithStage(derrors.StageOpen).
				WithDetail("location", location).
				WithSuggestion("Build one with: docrag index")
		}
		return nil, derrors.New(derrors.ErrCodeIndexCorrupt, "failed to read manifest", err).
			WithStage(derrors.StageOpen).
			WithDetail("location", location)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, corrupt(location, "manifest is not valid JSON", err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, corrupt(location, fmt.Sprintf("unsupported format version %d", m.FormatVersion), nil)
	}
	if m.Vectors.Name == "" || m.Records.Name == "" || m.Generation == "" {
		return nil, corrupt(location, "manifest is incomplete", nil)
	}
	for _, name := range []string{m.Vectors.Name, m.Records.Name} {
		if !isBaseName(name) {
			return nil, corrupt(location, fmt.Sprintf("manifest names file %q outside the index", name), nil).
				WithDetail("file", name)
		}
	}
	return &m, nil
}

// isBaseName reports whether name is a plain file name inside the
// snapshot directory.
func isBaseName(name string) bool {
	return name != "." && name != ".." &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`)
}

func corrupt(location, msg string, cause error) *derrors.DocragError {
	return derrors.New(derrors.ErrCodeIndexCorrupt, msg, cause).
		WithStage(derrors.StageOpen).
		WithDetail("location", location).
		WithSuggestion("Rebuild the index with: docrag index")
}

func vectorsFileName(gen string) string { return "vectors-" + gen + ".hnsw" }
func recordsFileName(gen string) string { return "records-" + gen + ".db" }
