package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/henkan/internal/models"
)

// SQLiteStore implements CorpusStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS corpora (
		id TEXT PRIMARY KEY,
		source TEXT,
		fingerprint TEXT,
		length INTEGER NOT NULL,
		stats TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_corpora_created_at ON corpora(created_at);

	CREATE TABLE IF NOT EXISTS framed_pairs (
		corpus_id TEXT NOT NULL,
		pair_index INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		PRIMARY KEY (corpus_id, pair_index),
		FOREIGN KEY (corpus_id) REFERENCES corpora(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCorpus inserts a corpus and all of its framed pairs in one transaction.
func (s *SQLiteStore) SaveCorpus(ctx context.Context, corpus *models.PreparedCorpus) error {
	statsJSON, err := json.Marshal(corpus.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpora (id, source, fingerprint, length, stats, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		corpus.ID, corpus.Source, corpus.Fingerprint, corpus.Length, string(statsJSON), corpus.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert corpus: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO framed_pairs (corpus_id, pair_index, question, answer) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range corpus.Pairs {
		q, err := json.Marshal(p.Question)
		if err != nil {
			return err
		}
		a, err := json.Marshal(p.Answer)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, corpus.ID, i, string(q), string(a)); err != nil {
			return fmt.Errorf("insert pair %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetCorpus returns a corpus with its framed pairs in index order.
func (s *SQLiteStore) GetCorpus(ctx context.Context, id string) (*models.PreparedCorpus, error) {
	corpus, err := s.scanCorpus(s.db.QueryRowContext(ctx,
		`SELECT id, source, fingerprint, length, stats, created_at FROM corpora WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadPairs(ctx, corpus); err != nil {
		return nil, err
	}
	return corpus, nil
}

// LatestCorpus returns the most recently prepared corpus with its pairs.
func (s *SQLiteStore) LatestCorpus(ctx context.Context) (*models.PreparedCorpus, error) {
	corpus, err := s.scanCorpus(s.db.QueryRowContext(ctx,
		`SELECT id, source, fingerprint, length, stats, created_at
		 FROM corpora ORDER BY created_at DESC, rowid DESC LIMIT 1`))
	if err != nil {
		return nil, err
	}
	if err := s.loadPairs(ctx, corpus); err != nil {
		return nil, err
	}
	return corpus, nil
}

// ListCorpora returns corpora without pairs, newest first.
func (s *SQLiteStore) ListCorpora(ctx context.Context, offset, limit int) ([]*models.PreparedCorpus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, fingerprint, length, stats, created_at
		 FROM corpora ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PreparedCorpus
	for rows.Next() {
		c, err := s.scanCorpus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCorpus removes a corpus and its pairs.
func (s *SQLiteStore) DeleteCorpus(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM corpora WHERE id = ?`, id)
	return err
}

// CountCorpora returns the number of stored corpora.
func (s *SQLiteStore) CountCorpora(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpora`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanCorpus(row scanner) (*models.PreparedCorpus, error) {
	var c models.PreparedCorpus
	var source, fingerprint, statsJSON sql.NullString
	err := row.Scan(&c.ID, &source, &fingerprint, &c.Length, &statsJSON, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("corpus: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Source = source.String
	c.Fingerprint = fingerprint.String
	if statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &c.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	return &c, nil
}

func (s *SQLiteStore) loadPairs(ctx context.Context, c *models.PreparedCorpus) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question, answer FROM framed_pairs WHERE corpus_id = ? ORDER BY pair_index`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	c.Pairs = c.Pairs[:0]
	for rows.Next() {
		var q, a string
		if err := rows.Scan(&q, &a); err != nil {
			return err
		}
		var p models.FramedPair
		if err := json.Unmarshal([]byte(q), &p.Question); err != nil {
			return fmt.Errorf("failed to unmarshal question frame: %w", err)
		}
		if err := json.Unmarshal([]byte(a), &p.Answer); err != nil {
			return fmt.Errorf("failed to unmarshal answer frame: %w", err)
		}
		c.Pairs = append(c.Pairs, p)
	}
	return rows.Err()
}
