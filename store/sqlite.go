package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/compound/plan"
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	user TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	document TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteStore keeps each user's document as a JSON text column.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init plan schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, user string) (*plan.Document, error) {
	var (
		version int
		body    string
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, document FROM plans WHERE user = ?`, user).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, user)
	}
	if err != nil {
		return nil, err
	}
	doc, err := plan.Decode(bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, err
	}
	doc.Version = version
	return doc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, user string, doc *plan.Document) (int, error) {
	out := doc.Clone()
	out.Version = doc.Version + 1
	body, err := plan.Marshal(out)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var cur int
	err = tx.QueryRowContext(ctx, `SELECT version FROM plans WHERE user = ?`, user).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plans (user, version, document, updated_at) VALUES (?, ?, ?, ?)`,
			user, out.Version, string(body), time.Now().UTC())
	case err != nil:
		return 0, err
	case cur != doc.Version:
		return 0, fmt.Errorf("%w: stored %d, saving %d", ErrVersionConflict, cur, doc.Version)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE plans SET version = ?, document = ?, updated_at = ? WHERE user = ?`,
			out.Version, string(body), time.Now().UTC(), user)
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// Users lists users with a stored document.
func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user FROM plans ORDER BY user`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
