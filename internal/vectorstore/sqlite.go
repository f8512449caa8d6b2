// Package vectorstore is a small SQLite-backed similarity index with one
// namespace per user. Scoring is brute-force cosine similarity, which is
// adequate for the handful of profile documents each user indexes.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// registers the pure-Go "sqlite" driver
	_ "modernc.org/sqlite"

	"postgen/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
	namespace   TEXT NOT NULL,
	id          TEXT NOT NULL,
	text        TEXT NOT NULL,
	source_type TEXT NOT NULL DEFAULT '',
	embedding   TEXT NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_namespace_source ON vectors(namespace, source_type);
`

// Document is one indexed text with its embedding.
type Document struct {
	ID         string
	Namespace  string
	Text       string
	SourceType string
	Vector     []float32
}

// SQLiteStore implements domain.VectorSearcher.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the index at path. ":memory:" keeps it in memory.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("vectorstore: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open: %w", err)
	}
	// one connection: serialises writers and keeps ":memory:" a single database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces a document.
func (s *SQLiteStore) Upsert(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.Namespace) == "" || strings.TrimSpace(doc.ID) == "" {
		return errors.New("vectorstore: namespace and id are required")
	}
	if len(doc.Vector) == 0 {
		return errors.New("vectorstore: empty vector")
	}
	raw, err := json.Marshal(doc.Vector)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (namespace, id, text, source_type, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			text = excluded.text,
			source_type = excluded.source_type,
			embedding = excluded.embedding`,
		doc.Namespace, doc.ID, doc.Text, doc.SourceType, string(raw))
	if err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

// DeleteNamespace removes every document of one namespace.
func (s *SQLiteStore) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: delete namespace: %w", err)
	}
	return res.RowsAffected()
}

// Query scores documents in q.Namespace only and returns the best q.TopK in
// descending score order. The only supported filter key is source_type.
func (s *SQLiteStore) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Match, error) {
	if strings.TrimSpace(q.Namespace) == "" {
		return nil, errors.New("vectorstore: namespace is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vectorstore: empty query vector")
	}
	stmt := `SELECT id, text, embedding FROM vectors WHERE namespace = ?`
	args := []any{q.Namespace}
	for key, value := range q.Filter {
		if key != "source_type" {
			return nil, fmt.Errorf("vectorstore: unsupported filter %q", key)
		}
		stmt += ` AND source_type = ?`
		args = append(args, value)
	}
	stmt += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			id, text, raw string
			vec           []float32
		)
		if err := rows.Scan(&id, &text, &raw); err != nil {
			return nil, fmt.Errorf("vectorstore: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("vectorstore: decode %s: %w", id, err)
		}
		if len(vec) != len(q.Vector) {
			continue
		}
		matches = append(matches, domain.Match{ID: id, Text: text, Score: cosineSimilarity(q.Vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: rows: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if q.TopK > 0 && len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

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

var _ domain.VectorSearcher = (*SQLiteStore)(nil)
