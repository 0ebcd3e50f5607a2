// Package store implements the versioned artifact store: object bodies in
// an object store, the version catalog in the SQLite index. Write ordering
// is the visibility contract: artifact objects first, metadata.json next,
// the index row strictly last, so a version listed by the index is always
// fully readable. Deletion reverses the order.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/objstore"
)

// Metadata is the stored descriptor of one documentation version. The JSON
// shape is a stable interchange format; field names are camelCase and must
// not change.
type Metadata struct {
	Version     string   `json:"version"` // full commit SHA
	Branch      string   `json:"branch"`
	Commit      string   `json:"commit"` // short SHA
	CommitURL   string   `json:"commitUrl"`
	BranchURL   string   `json:"branchUrl"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"` // RFC 3339
	UpdatedAt   string   `json:"updatedAt"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// ArtifactStore combines the object backend with the version index.
type ArtifactStore struct {
	objects objstore.Store
	idx     *index.Index
	now     func() time.Time
}

// New builds an ArtifactStore.
func New(objects objstore.Store, idx *index.Index) *ArtifactStore {
	return &ArtifactStore{objects: objects, idx: idx, now: time.Now}
}

func commitPrefix(projectID, commitSHA string) string {
	return "projects/" + projectID + "/commits/" + commitSHA + "/"
}

func objectKey(projectID, commitSHA, path string) string {
	return commitPrefix(projectID, commitSHA) + path
}

const metadataName = "metadata.json"

// Upload stores a bundle for one commit. meta.Version must carry the full
// commit SHA; CreatedAt/UpdatedAt are filled here. Re-uploading an indexed
// commit replaces the stored version in place.
func (s *ArtifactStore) Upload(ctx context.Context, projectID string, b *artifact.Bundle, meta Metadata) error {
	if meta.Version == "" {
		return errors.ValidationError("metadata version (commit SHA) is required").Build()
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	now := s.now().UTC().Truncate(time.Second)
	created := now
	if existing, err := s.idx.GetVersion(ctx, projectID, meta.Version); err == nil {
		created = existing.CreatedAt
	}
	meta.CreatedAt = created.Format(time.RFC3339)
	meta.UpdatedAt = now.Format(time.RFC3339)

	// Artifact objects first, in stable order.
	for _, path := range b.Paths() {
		key := objectKey(projectID, meta.Version, path)
		if err := s.objects.Put(ctx, key, b.Files[path]); err != nil {
			return err
		}
	}

	// metadata.json is the per-commit completeness marker: written only once
	// every artifact object is durable.
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.InternalError("failed to encode metadata").Build()
	}
	if err := s.objects.Put(ctx, objectKey(projectID, meta.Version, metadataName), append(encoded, '\n')); err != nil {
		return err
	}

	// The index row lands last; a listed version is always fully readable.
	return s.idx.UpsertVersion(ctx, index.Version{
		ProjectID:   projectID,
		CommitID:    meta.Version,
		Branch:      meta.Branch,
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        meta.Tags,
		CreatedAt:   created,
		UpdatedAt:   now,
	})
}

// List returns the indexed versions for a project, most recently updated
// first.
func (s *ArtifactStore) List(ctx context.Context, projectID string) ([]index.Version, error) {
	return s.idx.ListVersions(ctx, projectID)
}

// GetMetadata reads a version's metadata.json.
func (s *ArtifactStore) GetMetadata(ctx context.Context, projectID, commitSHA string) (Metadata, error) {
	data, err := s.objects.Get(ctx, objectKey(projectID, commitSHA, metadataName))
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, errors.StoreError("stored metadata is corrupt").
			WithContext("project", projectID).
			WithContext("commit", commitSHA).
			Build()
	}
	return meta, nil
}

// GetContent reads one artifact body by its bundle-relative path.
func (s *ArtifactStore) GetContent(ctx context.Context, projectID, commitSHA, path string) ([]byte, error) {
	return s.objects.Get(ctx, objectKey(projectID, commitSHA, path))
}

// GetSummary reads the fixed-name commit summary.
func (s *ArtifactStore) GetSummary(ctx context.Context, projectID, commitSHA string) ([]byte, error) {
	return s.GetContent(ctx, projectID, commitSHA, artifact.SummaryPath)
}

// GetReadme reads the generated README.
func (s *ArtifactStore) GetReadme(ctx context.Context, projectID, commitSHA string) ([]byte, error) {
	return s.GetContent(ctx, projectID, commitSHA, artifact.ReadmePath)
}

// GetAPIDocs reads the generated API reference.
func (s *ArtifactStore) GetAPIDocs(ctx context.Context, projectID, commitSHA string) ([]byte, error) {
	return s.GetContent(ctx, projectID, commitSHA, artifact.APIReferencePath)
}

// Documents lists a stored version's markdown artifacts as drift baseline
// input. The paths come back bundle-relative.
func (s *ArtifactStore) Documents(ctx context.Context, projectID, commitSHA string) (map[string][]byte, error) {
	prefix := commitPrefix(projectID, commitSHA)
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	docs := map[string][]byte{}
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if !strings.HasSuffix(rel, ".md") {
			continue
		}
		body, err := s.objects.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		docs[rel] = body
	}
	return docs, nil
}

// UpdateTags rewrites a version's tag list in both metadata.json and the
// index row, bumping updatedAt.
func (s *ArtifactStore) UpdateTags(ctx context.Context, projectID, commitSHA string, tags []string) (Metadata, error) {
	if tags == nil {
		tags = []string{}
	}
	meta, err := s.GetMetadata(ctx, projectID, commitSHA)
	if err != nil {
		return Metadata{}, err
	}

	now := s.now().UTC().Truncate(time.Second)
	meta.Tags = tags
	meta.UpdatedAt = now.Format(time.RFC3339)

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, errors.InternalError("failed to encode metadata").Build()
	}
	if err := s.objects.Put(ctx, objectKey(projectID, commitSHA, metadataName), append(encoded, '\n')); err != nil {
		return Metadata{}, err
	}
	if err := s.idx.UpdateTags(ctx, projectID, commitSHA, tags, now); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Delete removes a stored version: artifact objects, then metadata.json,
// then the index row, so a half-deleted version is never listed as present.
func (s *ArtifactStore) Delete(ctx context.Context, projectID, commitSHA string) error {
	prefix := commitPrefix(projectID, commitSHA)
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return err
	}
	sort.Strings(keys)

	// Everything except metadata.json first.
	metaKey := objectKey(projectID, commitSHA, metadataName)
	for _, key := range keys {
		if key == metaKey {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			return err
		}
	}
	if err := s.objects.Delete(ctx, metaKey); err != nil {
		return err
	}
	return s.idx.DeleteVersion(ctx, projectID, commitSHA)
}
