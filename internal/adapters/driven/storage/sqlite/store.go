// Package sqlite provides the primary document store backed by SQLite.
// Chunk vectors are stored as little-endian float32 blobs; similarity
// is computed in process over the filtered candidate set, which is
// plenty at the per-source corpus sizes this engine targets.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tessellate-ai/contextd/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/tessellate-ai/contextd/internal/core/domain"
	"github.com/tessellate-ai/contextd/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.DocumentStore   = (*Store)(nil)
	_ driven.CheckpointStore = (*Store)(nil)
)

// Store is the SQLite-backed document and checkpoint store. WAL mode
// keeps queries readable while ingestion writes; each document upsert
// runs in one transaction so readers see either the old or the fully
// replaced chunk set, never a partial write.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the store at the given data directory.
// If dataDir is empty, defaults to ~/.contextd/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".contextd", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "contextd.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// Upsert replaces all chunks for the document in one transaction.
func (s *Store) Upsert(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, source, external_id, kind, text, metadata, last_modified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			text = excluded.text,
			metadata = excluded.metadata,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
	`, doc.ID(), doc.Source, doc.ExternalID, doc.Kind, doc.Text,
		string(metadataJSON), doc.LastModified.UTC(), time.Now().UTC())
	if err != nil {
		return storeErr("saving document", err)
	}

	// Old chunks for the document are superseded, not mutated.
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID()); err != nil {
		return storeErr("clearing chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, source, kind, content, position, embedding, metadata, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storeErr("preparing statement", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		chunkMetaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Source, chunk.Kind,
			chunk.Content, chunk.Position, float32SliceToBytes(chunk.Embedding),
			string(chunkMetaJSON), chunk.Timestamp.UTC()); err != nil {
			return storeErr("saving chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("committing transaction", err)
	}
	return nil
}

// Search returns chunks for one source, similarity-ordered when a
// vector is given and recency-ordered otherwise. The SQL filter covers
// source and time range; entity equality and cosine similarity run in
// process over the candidates.
func (s *Store) Search(ctx context.Context, filter driven.SearchFilter) ([]driven.ScoredChunk, error) {
	query := `
		SELECT id, document_id, source, kind, content, position, embedding, metadata, ts
		FROM chunks WHERE source = ?`
	args := []any{filter.Source}

	if !filter.Cutoff.IsZero() {
		if filter.Newer {
			query += " AND ts >= ?"
		} else {
			query += " AND ts <= ?"
		}
		args = append(args, filter.Cutoff.UTC())
	}
	query += " ORDER BY ts DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("querying chunks", err)
	}
	defer rows.Close()

	var results []driven.ScoredChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if !matchesEntity(chunk.Metadata, filter.Entity) {
			continue
		}

		score := 0.0
		if filter.Vector != nil {
			if len(chunk.Embedding) != len(filter.Vector) {
				continue // dimensionality mismatch, not comparable
			}
			score = cosineSimilarity(filter.Vector, chunk.Embedding)
		}
		results = append(results, driven.ScoredChunk{Chunk: *chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterating chunks", err)
	}

	if filter.Vector != nil {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			return results[i].Chunk.Timestamp.After(results[j].Chunk.Timestamp)
		})
	}

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Count returns the number of chunks stored for a source.
func (s *Store) Count(ctx context.Context, source domain.SourceID) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE source = ?", source)
	if err := row.Scan(&n); err != nil {
		return 0, storeErr("counting chunks", err)
	}
	return n, nil
}

// ==================== Checkpoint Store ====================

// Get retrieves the checkpoint for a source.
func (s *Store) Get(ctx context.Context, source domain.SourceID) (*domain.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source, last_modified, updated_at
		FROM checkpoints WHERE source = ?
	`, source)

	var cp domain.Checkpoint
	if err := row.Scan(&cp.Source, &cp.LastModified, &cp.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("scanning checkpoint", err)
	}
	return &cp, nil
}

// Save stores or updates a checkpoint.
func (s *Store) Save(ctx context.Context, cp domain.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (source, last_modified, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
	`, cp.Source, cp.LastModified.UTC(), cp.UpdatedAt.UTC())
	if err != nil {
		return storeErr("saving checkpoint", err)
	}
	return nil
}

// Delete removes the checkpoint for a source.
func (s *Store) Delete(ctx context.Context, source domain.SourceID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE source = ?", source)
	if err != nil {
		return storeErr("deleting checkpoint", err)
	}
	return nil
}

// ==================== Helpers ====================

// storeErr wraps database failures as ErrStoreUnavailable so callers
// can distinguish a dead index from an empty one.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanChunk scans one chunk row.
func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embedding []byte
	var metadataJSON string
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Source, &chunk.Kind,
		&chunk.Content, &chunk.Position, &embedding, &metadataJSON, &chunk.Timestamp); err != nil {
		return nil, storeErr("scanning chunk", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embedding)
	return &chunk, nil
}

// matchesEntity reports whether the chunk metadata satisfies every
// entity-focus equality.
func matchesEntity(metadata, entity map[string]string) bool {
	for k, v := range entity {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two vectors
// of equal length, in [-1, 1].
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
