// Package index maintains the document version catalog in SQLite: which
// commits have stored documentation for which project, plus per-project
// settings. Object bodies live in the object store; the index only ever
// holds metadata.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Index wraps the SQLite database. Use ":memory:" for tests.
type Index struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and migrates) the index database.
func Open(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps the foreign_keys pragma effective and makes
	// ":memory:" share one database across queries.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return idx, nil
}

func (i *Index) initialize() error {
	if _, err := i.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		url TEXT NOT NULL,
		branch TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS project_settings (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		auto_generate_docs INTEGER NOT NULL DEFAULT 1,
		sealed_credential BLOB,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS document_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		commit_id TEXT NOT NULL,
		branch TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(project_id, commit_id)
	);
	CREATE INDEX IF NOT EXISTS idx_versions_project ON document_versions(project_id, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_versions_branch ON document_versions(project_id, branch, created_at DESC);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// Project is one tracked repository row.
type Project struct {
	ID        string
	Name      string
	Owner     string
	Repo      string
	URL       string
	Branch    string
	CreatedAt time.Time
}

// UpsertProject inserts or refreshes a project row, keeping the original
// created_at on conflict.
func (i *Index) UpsertProject(ctx context.Context, p Project) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner, repo, url, branch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			repo = excluded.repo,
			url = excluded.url,
			branch = excluded.branch`,
		p.ID, p.Name, p.Owner, p.Repo, p.URL, p.Branch, p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject fetches one project row.
func (i *Index) GetProject(ctx context.Context, id string) (Project, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var p Project
	var createdAt int64
	err := i.db.QueryRowContext(ctx,
		"SELECT id, name, owner, repo, url, branch, created_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Owner, &p.Repo, &p.URL, &p.Branch, &createdAt)
	if err == sql.ErrNoRows {
		return Project{}, errors.NotFoundError("project not found").WithContext("project", id).Build()
	}
	if err != nil {
		return Project{}, fmt.Errorf("query project: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return p, nil
}

// ListProjects returns all project rows ordered by id.
func (i *Index) ListProjects(ctx context.Context) ([]Project, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.QueryContext(ctx,
		"SELECT id, name, owner, repo, url, branch, created_at FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Owner, &p.Repo, &p.URL, &p.Branch, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project; settings and versions cascade.
func (i *Index) DeleteProject(ctx context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := i.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// Settings is the per-project settings row. SealedCredential is AES-GCM
// ciphertext (see seal.go); plaintext credentials never reach this table.
type Settings struct {
	ProjectID        string
	AutoGenerateDocs bool
	SealedCredential []byte
	UpdatedAt        time.Time
}

// SaveSettings inserts or replaces a project's settings row.
func (i *Index) SaveSettings(ctx context.Context, s Settings) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO project_settings (project_id, auto_generate_docs, sealed_credential, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			auto_generate_docs = excluded.auto_generate_docs,
			sealed_credential = excluded.sealed_credential,
			updated_at = excluded.updated_at`,
		s.ProjectID, boolToInt(s.AutoGenerateDocs), s.SealedCredential, s.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetSettings fetches a project's settings row.
func (i *Index) GetSettings(ctx context.Context, projectID string) (Settings, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var s Settings
	var auto int
	var updatedAt int64
	err := i.db.QueryRowContext(ctx,
		"SELECT project_id, auto_generate_docs, sealed_credential, updated_at FROM project_settings WHERE project_id = ?",
		projectID,
	).Scan(&s.ProjectID, &auto, &s.SealedCredential, &updatedAt)
	if err == sql.ErrNoRows {
		return Settings{}, errors.NotFoundError("project settings not found").WithContext("project", projectID).Build()
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	s.AutoGenerateDocs = auto != 0
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return s, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
