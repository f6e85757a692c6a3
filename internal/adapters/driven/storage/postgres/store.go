// Package postgres provides a PostgreSQL-backed implementation of driven.SnapshotBackend.
//
// Documents live in one table keyed by (collection, id), with JSONB metadata and
// a DOUBLE PRECISION[] embedding column. A save swaps the table contents inside a
// single transaction. Cosine ranking stays in the vector store service, so the
// pgvector extension is not required.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotBackend = (*Store)(nil)

// Store is a PostgreSQL-based snapshot backend.
type Store struct {
	db       *sql.DB
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

// NewStore connects to dsn and creates the schema if needed.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidInput)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS vector_documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding DOUBLE PRECISION[],
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_documents_order ON vector_documents (collection, position)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_documents_source ON vector_documents (collection, (metadata->>'source'))`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// Load reads every row back into a snapshot, preserving insertion order.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id, content, COALESCE(array_to_string(embedding, ','), ''),
			metadata, created_at, updated_at
		FROM vector_documents
		ORDER BY collection, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	snap := domain.NewSnapshot()
	for rows.Next() {
		var doc domain.VectorDocument
		var collection, embeddingStr string
		var metadataBytes []byte
		var createdAt, updatedAt time.Time

		if err := rows.Scan(&collection, &doc.ID, &doc.Content, &embeddingStr,
			&metadataBytes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		c := domain.Collection(collection)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q in database", domain.ErrUnknownCollection, collection)
		}

		doc.Embedding, err = parseEmbedding(embeddingStr)
		if err != nil {
			return nil, fmt.Errorf("parse embedding for %s: %w", doc.ID, err)
		}
		if len(metadataBytes) > 0 && string(metadataBytes) != "null" {
			if err := json.Unmarshal(metadataBytes, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		doc.CreatedAt = createdAt.UTC()
		doc.UpdatedAt = updatedAt.UTC()
		snap[c] = append(snap[c], doc)
	}
	return snap, rows.Err()
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
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}

	for _, c := range domain.AllCollections() {
		for i, doc := range snapshot[c] {
			metadata, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO vector_documents
					(collection, id, position, content, embedding, metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, string_to_array(NULLIF($5, ''), ',')::DOUBLE PRECISION[], $6, $7, $8)
			`, c.String(), doc.ID, i, doc.Content, formatEmbedding(doc.Embedding), string(metadata), doc.CreatedAt, doc.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert document %s: %w", doc.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatEmbedding renders a vector as comma-separated values with full precision.
func formatEmbedding(embedding []float64) string {
	if len(embedding) == 0 {
		return ""
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// parseEmbedding is the inverse of formatEmbedding.
func parseEmbedding(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}
