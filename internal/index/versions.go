package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Version is one stored documentation version row.
type Version struct {
	ProjectID   string
	CommitID    string
	Branch      string
	Title       string
	Description string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertVersion records a stored documentation version. Re-running the
// pipeline for an indexed commit overwrites the row in place; the unique
// (project_id, commit_id) guard means a commit never appears twice.
func (i *Index) UpsertVersion(ctx context.Context, v Version) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tags, err := json.Marshal(tagsOrEmpty(v.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = i.db.ExecContext(ctx, `
		INSERT INTO document_versions (project_id, commit_id, branch, title, description, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, commit_id) DO UPDATE SET
			branch = excluded.branch,
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		v.ProjectID, v.CommitID, v.Branch, v.Title, v.Description, string(tags),
		v.CreatedAt.Unix(), v.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert version: %w", err)
	}
	return nil
}

const versionColumns = "project_id, commit_id, branch, title, description, tags, created_at, updated_at"

// GetVersion fetches one version row.
func (i *Index) GetVersion(ctx context.Context, projectID, commitID string) (Version, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	row := i.db.QueryRowContext(ctx,
		"SELECT "+versionColumns+" FROM document_versions WHERE project_id = ? AND commit_id = ?",
		projectID, commitID)
	return scanVersion(row, projectID, commitID)
}

// ListVersions returns a project's versions, most recently updated first.
func (i *Index) ListVersions(ctx context.Context, projectID string) ([]Version, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.QueryContext(ctx,
		"SELECT "+versionColumns+" FROM document_versions WHERE project_id = ? ORDER BY updated_at DESC, commit_id",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LatestVersion returns the newest stored version for a project branch, used
// as the drift baseline. sql.ErrNoRows maps to not_found; first runs treat
// that as "no previous version".
func (i *Index) LatestVersion(ctx context.Context, projectID, branch string) (Version, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	row := i.db.QueryRowContext(ctx,
		"SELECT "+versionColumns+" FROM document_versions WHERE project_id = ? AND branch = ? ORDER BY created_at DESC, id DESC LIMIT 1",
		projectID, branch)
	return scanVersion(row, projectID, branch)
}

// HasVersion reports whether a commit is already indexed (head-sync guard).
func (i *Index) HasVersion(ctx context.Context, projectID, commitID string) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var n int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM document_versions WHERE project_id = ? AND commit_id = ?",
		projectID, commitID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count versions: %w", err)
	}
	return n > 0, nil
}

// UpdateTags rewrites a version's tag list and bumps updated_at.
func (i *Index) UpdateTags(ctx context.Context, projectID, commitID string, tags []string, updatedAt time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	encoded, err := json.Marshal(tagsOrEmpty(tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := i.db.ExecContext(ctx,
		"UPDATE document_versions SET tags = ?, updated_at = ? WHERE project_id = ? AND commit_id = ?",
		string(encoded), updatedAt.Unix(), projectID, commitID)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError("document version not found").
			WithContext("project", projectID).
			WithContext("commit", commitID).
			Build()
	}
	return nil
}

// DeleteVersion removes one version row.
func (i *Index) DeleteVersion(ctx context.Context, projectID, commitID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, err := i.db.ExecContext(ctx,
		"DELETE FROM document_versions WHERE project_id = ? AND commit_id = ?",
		projectID, commitID); err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row *sql.Row, projectID, hint string) (Version, error) {
	v, err := scanVersionFrom(row)
	if err == sql.ErrNoRows {
		return Version{}, errors.NotFoundError("document version not found").
			WithContext("project", projectID).
			WithContext("ref", hint).
			Build()
	}
	if err != nil {
		return Version{}, fmt.Errorf("query version: %w", err)
	}
	return v, nil
}

func scanVersionRow(rows *sql.Rows) (Version, error) {
	v, err := scanVersionFrom(rows)
	if err != nil {
		return Version{}, fmt.Errorf("scan version: %w", err)
	}
	return v, nil
}

func scanVersionFrom(s rowScanner) (Version, error) {
	var v Version
	var tags string
	var createdAt, updatedAt int64
	if err := s.Scan(&v.ProjectID, &v.CommitID, &v.Branch, &v.Title, &v.Description,
		&tags, &createdAt, &updatedAt); err != nil {
		return Version{}, err
	}
	if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil {
		return Version{}, fmt.Errorf("decode tags: %w", err)
	}
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	v.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return v, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
