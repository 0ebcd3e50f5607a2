package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the unified configuration format for daemon and CI modes.
type Config struct {
	Version    string            `yaml:"version"`
	Server     ServerConfig      `yaml:"server,omitempty"`
	Pipeline   PipelineConfig    `yaml:"pipeline,omitempty"`
	Store      StoreConfig       `yaml:"store"`
	Index      IndexConfig       `yaml:"index,omitempty"`
	Workspace  WorkspaceConfig   `yaml:"workspace,omitempty"`
	Delivery   DeliveryConfig    `yaml:"delivery,omitempty"`
	Forges     []*ForgeConfig    `yaml:"forges"`
	Projects   []ProjectConfig   `yaml:"projects"`
	API        APIConfig         `yaml:"api,omitempty"`
	Events     EventsConfig      `yaml:"events,omitempty"`
	Sync       SyncConfig        `yaml:"sync,omitempty"`
	Monitoring *MonitoringConfig `yaml:"monitoring,omitempty"`
	Settings   SettingsConfig    `yaml:"settings,omitempty"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	APIPort     int `yaml:"api_port"`     // documents API port
	WebhookPort int `yaml:"webhook_port"` // webhook reception port
	AdminPort   int `yaml:"admin_port"`   // health/status/metrics port
}

// PipelineConfig holds pipeline tuning knobs.
type PipelineConfig struct {
	// Workers caps the number of pipeline jobs processed in parallel.
	// 0 (default) means min(4, NumCPU).
	Workers int `yaml:"workers,omitempty"`
	// QueueSize bounds the number of pending jobs before enqueue rejects.
	QueueSize int `yaml:"queue_size,omitempty"`
	// ShallowDepth, when >0, performs shallow clones limited to the specified
	// number of commits. 0 means full history; change detection needs the
	// first parent, so values 1 are coerced to 2.
	ShallowDepth int `yaml:"shallow_depth,omitempty"`
	// IgnorePaths are glob patterns excluded from change detection
	// (lock files, vendored trees, build outputs).
	IgnorePaths []string `yaml:"ignore_paths,omitempty"`
	// StageTimeouts are per-stage deadlines as duration strings.
	StageTimeouts StageTimeouts `yaml:"stage_timeouts,omitempty"`
	// Retry policy for transient failures (push, upload, provider API).
	MaxRetries        int              `yaml:"max_retries,omitempty"`         // retry attempts after the first failure (default 5)
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`       // fixed|linear|exponential (default exponential)
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"` // duration string (default 2s)
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`     // cap for growth (default 10s)
}

// StageTimeouts holds per-stage deadlines as duration strings.
type StageTimeouts struct {
	Fetch    string `yaml:"fetch,omitempty"`
	Detect   string `yaml:"detect,omitempty"`
	Parse    string `yaml:"parse,omitempty"`
	Score    string `yaml:"score,omitempty"`
	Generate string `yaml:"generate,omitempty"`
	Drift    string `yaml:"drift,omitempty"`
	Store    string `yaml:"store,omitempty"`
	Deliver  string `yaml:"deliver,omitempty"`
}

// StoreConfig selects and parameterizes the artifact object store backend.
type StoreConfig struct {
	// URL selects the backend by scheme: s3://bucket/prefix, gs://bucket/prefix,
	// r2://bucket/prefix, file:///dir.
	URL string `yaml:"url"`
	// Region for S3-compatible backends.
	Region string `yaml:"region,omitempty"`
	// Endpoint overrides the S3 endpoint (R2, minio). Empty uses the default.
	Endpoint string `yaml:"endpoint,omitempty"`
	// AccountID builds the R2 endpoint when Endpoint is empty.
	AccountID string `yaml:"account_id,omitempty"`
	// Static credentials for S3-compatible backends. Empty falls back to the
	// SDK default chain.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	// UsePathStyle forces path-style addressing (minio).
	UsePathStyle bool `yaml:"use_path_style,omitempty"`
}

// IndexConfig parameterizes the document version index database.
type IndexConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file path; ":memory:" for tests
}

// WorkspaceConfig controls per-run checkout directories.
type WorkspaceConfig struct {
	Dir  string `yaml:"dir,omitempty"`  // base directory; empty uses the system temp dir
	Keep bool   `yaml:"keep,omitempty"` // keep checkouts after a run (debugging)
}

// DeliveryConfig controls the docs branch / pull request surface.
type DeliveryConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`       // default true
	BranchPrefix string `yaml:"branch_prefix,omitempty"` // default "auto/docs/"
	CommitAuthor string `yaml:"commit_author,omitempty"` // default "docdrift-bot"
	CommitEmail  string `yaml:"commit_email,omitempty"`  // default "docdrift@localhost"
	DocsRoot     string `yaml:"docs_root,omitempty"`     // default "docs"
}

// ForgeConfig represents configuration for a specific forge instance.
type ForgeConfig struct {
	Name    string         `yaml:"name"`     // friendly name referenced by projects
	Type    ForgeType      `yaml:"type"`     // typed forge kind
	APIURL  string         `yaml:"api_url"`  // API base URL
	BaseURL string         `yaml:"base_url"` // web base URL (for commit/branch links)
	Auth    *AuthConfig    `yaml:"auth"`     // API authentication
	Webhook *WebhookConfig `yaml:"webhook"`  // webhook validation
}

// WebhookConfig represents webhook configuration for a forge.
type WebhookConfig struct {
	Secret string   `yaml:"secret"`           // HMAC secret for validation
	Events []string `yaml:"events,omitempty"` // events to accept (default: push)
}

// ProjectConfig describes one tracked upstream repository.
type ProjectConfig struct {
	ID           string            `yaml:"id"`                      // stable project identifier
	Name         string            `yaml:"name,omitempty"`          // display name (defaults to ID)
	Owner        string            `yaml:"owner"`                   // forge owner/org
	Repo         string            `yaml:"repo"`                    // forge repository name
	URL          string            `yaml:"url"`                     // clone URL (no credentials)
	Branch       string            `yaml:"branch,omitempty"`        // default "main"
	Forge        string            `yaml:"forge,omitempty"`         // forge name for webhook/PR API
	DocsRoot     string            `yaml:"docs_root,omitempty"`     // overrides delivery.docs_root
	Auth         *AuthConfig       `yaml:"auth,omitempty"`          // upstream clone credentials
	AutoGenerate *bool             `yaml:"auto_generate,omitempty"` // default true
	Deliver      *bool             `yaml:"deliver,omitempty"`       // default follows delivery.enabled
	Tags         map[string]string `yaml:"tags,omitempty"`          // additional metadata
}

// AutoGenerateEnabled resolves the tri-state flag (nil means enabled).
func (p ProjectConfig) AutoGenerateEnabled() bool {
	return p.AutoGenerate == nil || *p.AutoGenerate
}

// DeliverEnabled resolves the tri-state flag (nil means enabled).
func (p ProjectConfig) DeliverEnabled() bool {
	return p.Deliver == nil || *p.Deliver
}

// APIConfig holds the static bearer-token registry for the documents API.
type APIConfig struct {
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken binds a bearer token to a role, optionally scoped to projects.
type APIToken struct {
	Token    string   `yaml:"token"`
	Role     string   `yaml:"role"`               // viewer|editor|admin
	Projects []string `yaml:"projects,omitempty"` // empty means all projects
}

// EventsConfig configures optional pipeline outcome publishing.
type EventsConfig struct {
	NATS *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig parameterizes the JetStream publisher.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty"`            // default nats://127.0.0.1:4222
	SubjectPrefix string `yaml:"subject_prefix,omitempty"` // default "docdrift.pipeline"
	Stream        string `yaml:"stream,omitempty"`         // default "DOCDRIFT"
}

// SyncConfig represents the scheduled head-sync re-scan.
type SyncConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule,omitempty"` // cron expression, default "0 */4 * * *"
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Health  MonitoringHealth  `yaml:"health"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringHealth represents health check configuration.
type MonitoringHealth struct {
	Path string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// SettingsConfig parameterizes project settings storage.
type SettingsConfig struct {
	// SealingKey is a hex-encoded 32-byte key used to seal per-project
	// upstream credentials at rest. Empty disables credential storage.
	SealingKey string `yaml:"sealing_key,omitempty"`
}

// Load loads a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env files if present; existing environment wins.
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "" && config.Version != "1.0" {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.0)", config.Version)
	}

	// Apply defaults before validation so canonical values drive the checks.
	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	enabled := true
	exampleConfig := Config{
		Version: "1.0",
		Server: ServerConfig{
			APIPort:     8080,
			WebhookPort: 8081,
			AdminPort:   8082,
		},
		Pipeline: PipelineConfig{
			Workers:           0,
			QueueSize:         100,
			IgnorePaths:       []string{"vendor/**", "node_modules/**", "dist/**", "*.lock"},
			MaxRetries:        5,
			RetryBackoff:      RetryBackoffExponential,
			RetryInitialDelay: "2s",
			RetryMaxDelay:     "10s",
		},
		Store: StoreConfig{
			URL: "file://./artifacts",
		},
		Index: IndexConfig{
			Path: "./docdrift.db",
		},
		Delivery: DeliveryConfig{
			Enabled:      &enabled,
			BranchPrefix: "auto/docs/",
			CommitAuthor: "docdrift-bot",
			CommitEmail:  "docdrift@localhost",
			DocsRoot:     "docs",
		},
		Forges: []*ForgeConfig{
			{
				Name:    "company-github",
				Type:    ForgeGitHub,
				APIURL:  "https://api.github.com",
				BaseURL: "https://github.com",
				Auth: &AuthConfig{
					Type:  AuthTypeToken,
					Token: "${GITHUB_TOKEN}",
				},
				Webhook: &WebhookConfig{
					Secret: "${GITHUB_WEBHOOK_SECRET}",
					Events: []string{"push"},
				},
			},
		},
		Projects: []ProjectConfig{
			{
				ID:     "example-service",
				Name:   "Example Service",
				Owner:  "acme",
				Repo:   "example-service",
				URL:    "https://github.com/acme/example-service.git",
				Branch: "main",
				Forge:  "company-github",
				Auth: &AuthConfig{
					Type:  AuthTypeToken,
					Token: "${GITHUB_TOKEN}",
				},
			},
		},
		API: APIConfig{
			Tokens: []APIToken{
				{Token: "${DOCDRIFT_ADMIN_TOKEN}", Role: "admin"},
				{Token: "${DOCDRIFT_READER_TOKEN}", Role: "viewer"},
			},
		},
		Sync: SyncConfig{
			Enabled:  false,
			Schedule: "0 */4 * * *",
		},
		Monitoring: &MonitoringConfig{
			Metrics: MonitoringMetrics{Enabled: true, Path: "/metrics"},
			Health:  MonitoringHealth{Path: "/healthz"},
			Logging: MonitoringLogging{Level: "info", Format: "text"},
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
