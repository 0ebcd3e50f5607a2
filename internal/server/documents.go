package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMarkdown(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// project resolves a configured project; the daemon snapshot wins so hot
// reloads are visible immediately.
func (s *Server) project(id string) (config.ProjectConfig, error) {
	var projects []config.ProjectConfig
	if s.trigger != nil {
		projects = s.trigger.Projects()
	} else {
		projects = s.cfg.Projects
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return config.ProjectConfig{}, errors.NotFoundError("project not found").
		WithContext("project", id).
		Build()
}

type documentEntry struct {
	Commit      string   `json:"commit"`
	Branch      string   `json:"branch"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func toEntry(v index.Version) documentEntry {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return documentEntry{
		Commit:      v.CommitID,
		Branch:      v.Branch,
		Title:       v.Title,
		Description: v.Description,
		Tags:        tags,
		CreatedAt:   v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   v.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	versions, err := s.artifacts.List(r.Context(), id)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	entries := make([]documentEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, toEntry(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": entries})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	versions, err := s.artifacts.List(r.Context(), id)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}

	commits := make([]string, 0, len(versions))
	branchSet := map[string]bool{}
	tagSet := map[string]bool{}
	for _, v := range versions {
		commits = append(commits, v.CommitID)
		branchSet[v.Branch] = true
		for _, t := range v.Tags {
			tagSet[t] = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commits":  commits,
		"branches": sortedSet(branchSet),
		"tags":     sortedSet(tagSet),
	})
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type searchRequest struct {
	Query  string   `json:"query"`
	Branch string   `json:"branch,omitempty"`
	Commit string   `json:"commit,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("invalid search request body").Build())
		return
	}
	hits, err := s.artifacts.Search(r.Context(), id, store.SearchQuery{
		Text:   req.Query,
		Branch: req.Branch,
		Commit: req.Commit,
		Tags:   req.Tags,
		Limit:  req.Limit,
	})
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if hits == nil {
		hits = []store.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, commit := r.PathValue("id"), r.PathValue("commit")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	meta, err := s.artifacts.GetMetadata(r.Context(), id, commit)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	docs, err := s.artifacts.Documents(r.Context(), id, commit)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	writeJSON(w, http.StatusOK, map[string]any{"metadata": meta, "files": paths})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.artifacts.GetSummary)
}

func (s *Server) handleGetReadme(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, s.artifacts.GetReadme)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, projectID, commitSHA string) ([]byte, error)) {
	id, commit := r.PathValue("id"), r.PathValue("commit")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	body, err := get(r.Context(), id, commit)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeMarkdown(w, body)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	id, commit := r.PathValue("id"), r.PathValue("commit")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	meta, err := s.artifacts.GetMetadata(r.Context(), id, commit)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type tagsRequest struct {
	Tags    []string `json:"tags"`
	Version string   `json:"version,omitempty"`
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	id, commit := r.PathValue("id"), r.PathValue("commit")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("invalid tags request body").Build())
		return
	}
	if req.Version != "" {
		commit = req.Version
	}
	meta, err := s.artifacts.UpdateTags(r.Context(), id, commit, req.Tags)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, commit := r.PathValue("id"), r.PathValue("commit")
	if _, err := s.project(id); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := s.artifacts.Delete(r.Context(), id, commit); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "commit": commit})
}

type testUploadRequest struct {
	CommitHash  string            `json:"commitHash"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	Docs        map[string]string `json:"docs,omitempty"`
	Branch      string            `json:"branch,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Version     string            `json:"version,omitempty"`
}

func (s *Server) handleTestUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.project(id)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req testUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("invalid upload request body").Build())
		return
	}
	if req.CommitHash == "" || req.Title == "" || req.Summary == "" {
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("commitHash, title, and summary are required").Build())
		return
	}

	bundle := &artifact.Bundle{Files: map[string][]byte{
		artifact.SummaryPath: []byte(req.Summary),
	}}
	for name, body := range req.Docs {
		clean := path.Clean(name)
		if strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") {
			s.adapter.WriteErrorResponse(w, r, errors.ValidationError("doc path escapes the bundle").
				WithContext("path", name).
				Build())
			return
		}
		bundle.Files[clean] = []byte(body)
	}

	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	version := req.Version
	if version == "" {
		version = req.CommitHash
	}

	if err := s.idx.UpsertProject(r.Context(), index.Project{
		ID:     project.ID,
		Name:   project.Name,
		Owner:  project.Owner,
		Repo:   project.Repo,
		URL:    project.URL,
		Branch: branch,
	}); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	meta := store.Metadata{
		Version:     version,
		Branch:      branch,
		Commit:      report.ShortSHA(req.CommitHash),
		Tags:        req.Tags,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.artifacts.Upload(r.Context(), project.ID, bundle, meta); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored", "commit": version})
}

type pipelineRequest struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
}

func (s *Server) handleTriggerPipeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.trigger == nil {
		s.adapter.WriteErrorResponse(w, r, errors.DaemonError("pipeline trigger unavailable").Build())
		return
	}
	var req pipelineRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	runID, err := s.trigger.TriggerManual(r.Context(), id, req.Commit, req.Branch)
	if err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "run_id": runID})
}
