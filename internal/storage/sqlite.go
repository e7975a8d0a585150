package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"crateprov/internal/crate"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBName is the database file created at the crate root when the
// sqlite backend is selected.
const DefaultDBName = "crate-metadata.db"

const rootEntityID = "./"

var _ crate.Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db   *sql.DB
	root string
}

// NewSQLiteStore creates or opens a SQLite database holding the metadata
// graph of the crate rooted at root.
func NewSQLiteStore(path, root string) (*SQLiteStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, root: absRoot}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	if err := s.ensureRoot(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create root dataset: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Root() string { return s.root }

func (s *SQLiteStore) GenerateID(kind crate.Kind, name string) string {
	return crate.NewID(kind, name)
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT,
			name TEXT,
			content_url TEXT,
			body JSON NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ensureRoot(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE id = ?", rootEntityID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	root := &crate.Entity{
		ID:            rootEntityID,
		Type:          crate.Values{"Dataset", crate.TypeROCrate},
		Name:          "Research Project " + time.Now().Format("20060102"),
		Author:        crate.Values{"Unknown"},
		Keywords:      crate.Values{"computation"},
		DatePublished: time.Now().Format("2006-01-02"),
	}
	body, err := json.Marshal(root)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO entities (id, kind, name, content_url, body) VALUES (?, ?, ?, ?, ?)",
		root.ID, string(root.Kind()), root.Name, "", body)
	return err
}

// ReadEntities loads every entity in insertion order.
func (s *SQLiteStore) ReadEntities(ctx context.Context) ([]*crate.Entity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, body FROM entities ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []*crate.Entity
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		var e crate.Entity
		if err := json.Unmarshal(body, &e); err != nil {
			return nil, fmt.Errorf("failed to decode entity %s: %w", id, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ReadEntityMap loads every entity, keyed by id.
func (s *SQLiteStore) ReadEntityMap(ctx context.Context) (map[string]*crate.Entity, error) {
	entities, err := s.ReadEntities(ctx)
	if err != nil {
		return nil, err
	}
	return crate.EntityMap(entities), nil
}

// AppendEntities inserts the batch and extends the root's hasPart in one
// transaction. A duplicate id aborts the whole batch.
func (s *SQLiteStore) AppendEntities(ctx context.Context, entities []*crate.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Entities
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (id, kind, name, content_url, body) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		if e == nil || e.ID == "" {
			return fmt.Errorf("entity without @id")
		}
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.Kind()), e.Name, e.ContentURL.First(), body); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.ID, err)
		}
		ids = append(ids, e.ID)
	}

	// 2. Root hasPart
	var rootBody []byte
	if err := tx.QueryRowContext(ctx, "SELECT body FROM entities WHERE id = ?", rootEntityID).Scan(&rootBody); err != nil {
		return fmt.Errorf("failed to load root dataset: %w", err)
	}
	var root crate.Entity
	if err := json.Unmarshal(rootBody, &root); err != nil {
		return fmt.Errorf("failed to decode root dataset: %w", err)
	}
	root.HasPart = append(root.HasPart, crate.NewRefs(ids...)...)
	rootBody, err = json.Marshal(&root)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE entities SET body = ? WHERE id = ?", rootBody, rootEntityID); err != nil {
		return err
	}

	return tx.Commit()
}
