package config

import "strings"

// Snapshot is a secret-free view of the effective configuration for the
// admin status endpoint. Tokens, webhook secrets, and the sealing key are
// either elided or reduced to a presence flag.
type Snapshot struct {
	Version  string            `json:"version"`
	Server   ServerConfig      `json:"server"`
	Pipeline PipelineConfig    `json:"pipeline"`
	StoreURL string            `json:"store_url"`
	Index    IndexConfig       `json:"index"`
	Delivery DeliveryConfig    `json:"delivery"`
	Forges   []ForgeSnapshot   `json:"forges"`
	Projects []ProjectSnapshot `json:"projects"`
	Sync     SyncConfig        `json:"sync"`
}

// ForgeSnapshot elides API credentials and the webhook secret.
type ForgeSnapshot struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	APIURL     string `json:"api_url"`
	HasAuth    bool   `json:"has_auth"`
	HasWebhook bool   `json:"has_webhook"`
}

// ProjectSnapshot elides upstream credentials.
type ProjectSnapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Branch       string `json:"branch"`
	Forge        string `json:"forge,omitempty"`
	HasAuth      bool   `json:"has_auth"`
	AutoGenerate bool   `json:"auto_generate"`
	Deliver      bool   `json:"deliver"`
}

// Snapshot builds the redacted view.
func (c *Config) Snapshot() Snapshot {
	s := Snapshot{
		Version:  c.Version,
		Server:   c.Server,
		Pipeline: c.Pipeline,
		StoreURL: c.Store.URL,
		Index:    c.Index,
		Delivery: c.Delivery,
		Sync:     c.Sync,
	}
	for _, f := range c.Forges {
		s.Forges = append(s.Forges, ForgeSnapshot{
			Name:       f.Name,
			Type:       string(f.Type),
			APIURL:     f.APIURL,
			HasAuth:    f.Auth != nil && !f.Auth.IsZero(),
			HasWebhook: f.Webhook != nil && f.Webhook.Secret != "",
		})
	}
	for _, p := range c.Projects {
		s.Projects = append(s.Projects, ProjectSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			URL:          p.URL,
			Branch:       p.Branch,
			Forge:        p.Forge,
			HasAuth:      p.Auth != nil && !p.Auth.IsZero(),
			AutoGenerate: p.AutoGenerateEnabled(),
			Deliver:      p.DeliverEnabled(),
		})
	}
	return s
}

// FindProject returns the project with the given id, or nil.
func (c *Config) FindProject(id string) *ProjectConfig {
	for i := range c.Projects {
		if c.Projects[i].ID == id {
			return &c.Projects[i]
		}
	}
	return nil
}

// FindProjectByCloneURL matches a webhook repository URL against the
// configured projects. Comparison ignores a trailing ".git" and scheme case.
func (c *Config) FindProjectByCloneURL(url string) *ProjectConfig {
	want := normalizeCloneURL(url)
	if want == "" {
		return nil
	}
	for i := range c.Projects {
		if normalizeCloneURL(c.Projects[i].URL) == want {
			return &c.Projects[i]
		}
	}
	return nil
}

func normalizeCloneURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return strings.ToLower(s)
}

// ForgeFor resolves the forge configuration referenced by a project.
func (c *Config) ForgeFor(p *ProjectConfig) *ForgeConfig {
	if p == nil || p.Forge == "" {
		return nil
	}
	for _, f := range c.Forges {
		if f.Name == p.Forge {
			return f
		}
	}
	return nil
}
