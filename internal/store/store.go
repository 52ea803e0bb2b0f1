// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store is the SQLite tracking store: projects, article metadata,
// and the project-article links that serve as the deduplication oracle.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pms/pkg/types"
)

var (
	// ErrProjectExists is returned when creating a project whose ID is taken.
	ErrProjectExists = errors.New("project already exists")

	// ErrProjectNotFound is returned for lookups and deletes of unknown projects.
	ErrProjectNotFound = errors.New("project not found")
)

// filterChunk keeps IN (...) lists below SQLite's host parameter limit.
const filterChunk = 500

// Store manages the tracking database. It assumes a single writer process.
type Store struct {
	db *sql.DB
}

// Open opens or creates the tracking database at path and creates the
// schema if it does not exist. Foreign keys are enabled so deleting a
// project cascades to its links.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps the foreign_keys pragma and the WAL writer in
	// a single session.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			pmid TEXT PRIMARY KEY,
			doi TEXT,
			title TEXT,
			last_updated TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS project_articles (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			pmid TEXT NOT NULL REFERENCES articles(pmid) ON DELETE CASCADE,
			PRIMARY KEY (project_id, pmid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_project_articles_pmid ON project_articles(pmid)`,
		`CREATE INDEX IF NOT EXISTS idx_project_articles_project_id ON project_articles(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_doi ON articles(doi)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateProject inserts p. CreatedAt defaults to now. A duplicate ID
// returns ErrProjectExists.
func (s *Store) CreateProject(ctx context.Context, p types.Project) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("project id and name are required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Description), p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrProjectExists, p.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject returns the project with id, or ErrProjectNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return types.Project{}, fmt.Errorf("querying project %s: %w", id, err)
	}
	return p, nil
}

// ProjectExists reports whether a project with id exists.
func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM projects WHERE id = ?`, id,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking project %s: %w", id, err)
	}
	return n > 0, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes the project and, by cascade, its links. Article
// metadata rows are kept; other projects may still link them.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}

// UpsertArticle records or refreshes the tracked metadata for pmid. It
// updates in place rather than replacing the row, so links held by other
// projects survive.
func (s *Store) UpsertArticle(ctx context.Context, pmid string, doi *string, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (pmid, doi, title, last_updated) VALUES (?, ?, ?, ?)
		 ON CONFLICT(pmid) DO UPDATE SET
			doi=excluded.doi, title=excluded.title, last_updated=excluded.last_updated`,
		pmid, doi, title, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting article %s: %w", pmid, err)
	}
	return nil
}

// Link associates pmid with the project. Linking twice is a no-op.
func (s *Store) Link(ctx context.Context, projectID, pmid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_articles (project_id, pmid) VALUES (?, ?)`,
		projectID, pmid,
	)
	if err != nil {
		return fmt.Errorf("linking article %s to project %s: %w", pmid, projectID, err)
	}
	return nil
}

// FilterUnseen returns the ids not yet linked to the project, preserving
// their order.
func (s *Store) FilterUnseen(ctx context.Context, projectID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	for start := 0; start < len(ids); start += filterChunk {
		chunk := ids[start:min(start+filterChunk, len(ids))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, projectID)
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT pmid FROM project_articles WHERE project_id = ? AND pmid IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("filtering PMIDs for project %s: %w", projectID, err)
		}
		for rows.Next() {
			var pmid string
			if err := rows.Scan(&pmid); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning PMID: %w", err)
			}
			seen[pmid] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("filtering PMIDs for project %s: %w", projectID, err)
		}
	}

	unseen := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

// CountLinked returns the number of articles linked to the project.
func (s *Store) CountLinked(ctx context.Context, projectID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM project_articles WHERE project_id = ?`, projectID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting articles for project %s: %w", projectID, err)
	}
	return n, nil
}

// LinkedPMIDs returns the PMIDs linked to the project in PMID order.
func (s *Store) LinkedPMIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pmid FROM project_articles WHERE project_id = ? ORDER BY pmid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing articles for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var pmids []string
	for rows.Next() {
		var pmid string
		if err := rows.Scan(&pmid); err != nil {
			return nil, fmt.Errorf("scanning PMID: %w", err)
		}
		pmids = append(pmids, pmid)
	}
	return pmids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (types.Project, error) {
	var (
		p         types.Project
		desc      sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &createdAt); err != nil {
		return types.Project{}, err
	}
	p.Description = desc.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = t
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
