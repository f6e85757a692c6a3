package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotBackend = (*Store)(nil)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a SQLite-based snapshot backend.
type Store struct {
	db       *sql.DB
	path     string
	maxBytes int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes rejects saves whose JSON encoding exceeds n bytes.
func WithMaxBytes(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxBytes = n
		}
	}
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sanctum/data/vectors.db.
func NewStore(dataDir string, opts ...Option) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sanctum", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Run migrations
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

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
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
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
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

// Load reads every row back into a snapshot, preserving insertion order.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id, content, embedding, metadata, created_at, updated_at
		FROM vector_documents ORDER BY collection, position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	snap := domain.NewSnapshot()
	for rows.Next() {
		collection, doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		c := domain.Collection(collection)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q in database", domain.ErrUnknownCollection, collection)
		}
		snap[c] = append(snap[c], doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if s.maxBytes > 0 {
		data, err := domain.MarshalSnapshot(snapshot)
		if err != nil {
			return err
		}
		if len(data) > s.maxBytes {
			return fmt.Errorf("%w: snapshot is %d bytes, limit is %d", domain.ErrStorageQuota, len(data), s.maxBytes)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_documents"); err != nil {
		return fmt.Errorf("clearing documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_documents
			(collection, id, position, content, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range domain.AllCollections() {
		for i, doc := range snapshot[c] {
			metadataJSON, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling metadata for %s: %w", doc.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				c.String(), doc.ID, i, doc.Content,
				float64SliceToBytes(doc.Embedding), string(metadataJSON),
				formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
			); err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float64SliceToBytes converts a []float64 to a byte slice for storage.
func float64SliceToBytes(floats []float64) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// bytesToFloat64Slice converts a byte slice back to []float64.
func bytesToFloat64Slice(data []byte) []float64 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float64, len(data)/8)
	for i := range floats {
		floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return floats
}

// formatTime keeps full precision so a save/load cycle is lossless.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// scanDocument scans one vector_documents row.
func scanDocument(rows *sql.Rows) (string, domain.VectorDocument, error) {
	var doc domain.VectorDocument
	var collection, metadataJSON, createdAt, updatedAt string
	var embedding []byte

	if err := rows.Scan(&collection, &doc.ID, &doc.Content, &embedding,
		&metadataJSON, &createdAt, &updatedAt); err != nil {
		return "", doc, fmt.Errorf("scanning document: %w", err)
	}

	doc.Embedding = bytesToFloat64Slice(embedding)
	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return "", doc, fmt.Errorf("unmarshalling metadata for %s: %w", doc.ID, err)
		}
	}

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return "", doc, fmt.Errorf("parsing created_at for %s: %w", doc.ID, err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return "", doc, fmt.Errorf("parsing updated_at for %s: %w", doc.ID, err)
	}
	return collection, doc, nil
}
