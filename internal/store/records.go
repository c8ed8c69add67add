package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"

	// modernc.org/sqlite is a pure Go SQLite driver (no CGO)
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/docrag/internal/chunk"
)

// recordsSchemaVersion is stored in the meta table of every records file.
const recordsSchemaVersion = "1"

const recordsSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE records (
	ordinal   INTEGER PRIMARY KEY,
	id        TEXT    NOT NULL,
	source_id TEXT    NOT NULL,
	document  INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	overlap   INTEGER NOT NULL,
	char_offset INTEGER NOT NULL,
	text      TEXT    NOT NULL,
	metadata  TEXT    NOT NULL,
	vector    BLOB    NOT NULL
);
`

// writeRecords writes every chunk and vector of idx into a new SQLite file at path.
// The file is fsynced before returning.
func writeRecords(ctx context.Context, path string, idx *Index) (err error) {
	dsn, err := recordsDSN(path, "rwc")
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open records database: %w", err)
	}
	db.SetMaxOpenConns(1)
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close records database: %w", closeErr)
		}
	}()

	// The file is private until renamed, so no journal is needed.
	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, recordsSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		"schema_version": recordsSchemaVersion,
		"dimensions":     fmt.Sprint(idx.dims),
		"metric":         idx.metric,
		"model":          idx.model,
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write meta: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(ordinal, id, source_id, document, position, overlap, char_offset, text, metadata, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for ord, c := range idx.chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for ordinal %d: %w", ord, err)
		}
		if _, err := stmt.ExecContext(ctx, ord, c.ID, c.SourceID, c.Document, c.Position,
			c.OverlapWithPrevious, c.Offset, c.Text, string(metadata), encodeVector(idx.vectors[ord])); err != nil {
			return fmt.Errorf("failed to insert ordinal %d: %w", ord, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close records database: %w", err)
	}
	return syncFile(path)
}

// recordsDSN returns a SQLite URI opening path with mode. The path is
// escaped so '?', '#' and '%' stay part of the file name.
func recordsDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve records path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=" + mode}
	return u.String(), nil
}

// readRecords loads all records from the SQLite file at path in ordinal order.
// It checks that ordinals are contiguous and every vector has dims entries.
func readRecords(ctx context.Context, path string, count, dims int) ([]chunk.Chunk, [][]float32, error) {
	dsn, err := recordsDSN(path, "ro")
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open records database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var version string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		return nil, nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != recordsSchemaVersion {
		return nil, nil, fmt.Errorf("unsupported records schema version %s", version)
	}

	rows, err := db.QueryContext(ctx, `SELECT ordinal, id, source_id, document, position, overlap, char_offset, text, metadata, vector
		FROM records ORDER BY ordinal`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]chunk.Chunk, 0, count)
	vectors := make([][]float32, 0, count)
	for rows.Next() {
		var (
			ord      int
			c        chunk.Chunk
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&ord, &c.ID, &c.SourceID, &c.Document, &c.Position,
			&c.OverlapWithPrevious, &c.Offset, &c.Text, &metadata, &blob); err != nil {
			return nil, nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if ord != len(chunks) {
			return nil, nil, fmt.Errorf("record ordinal %d out of sequence (expected %d)", ord, len(chunks))
		}
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to decode metadata for ordinal %d: %w", ord, err)
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			return nil, nil, fmt.Errorf("ordinal %d: %w", ord, err)
		}
		chunks = append(chunks, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	if len(chunks) != count {
		return nil, nil, fmt.Errorf("records file has %d entries, manifest says %d", len(chunks), count)
	}
	return chunks, vectors, nil
}

// encodeVector packs v as little-endian float32.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) ([]float32, error) {
	if len(buf) != 4*dims {
		return nil, fmt.Errorf("vector has %d bytes, expected %d", len(buf), 4*dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s for sync: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}
