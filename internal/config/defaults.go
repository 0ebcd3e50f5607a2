package config

import "runtime"

// applyDefaults fills zero values with operational defaults, domain by domain.
func applyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyPipelineDefaults(cfg)
	applyStoreDefaults(cfg)
	applyDeliveryDefaults(cfg)
	applyProjectDefaults(cfg)
	applyEventDefaults(cfg)
	applySyncDefaults(cfg)
	applyMonitoringDefaults(cfg)
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.APIPort == 0 {
		cfg.Server.APIPort = 8080
	}
	if cfg.Server.WebhookPort == 0 {
		cfg.Server.WebhookPort = 8081
	}
	if cfg.Server.AdminPort == 0 {
		cfg.Server.AdminPort = 8082
	}
}

func applyPipelineDefaults(cfg *Config) {
	p := &cfg.Pipeline
	if p.Workers <= 0 {
		p.Workers = min(4, runtime.NumCPU())
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 100
	}
	// The detector diffs against the first parent, so a depth-1 clone is
	// never enough.
	if p.ShallowDepth == 1 {
		p.ShallowDepth = 2
	}
	if p.ShallowDepth < 0 {
		p.ShallowDepth = 0
	}

	t := &p.StageTimeouts
	if t.Fetch == "" {
		t.Fetch = "2m"
	}
	if t.Detect == "" {
		t.Detect = "1m"
	}
	if t.Parse == "" {
		t.Parse = "1m"
	}
	if t.Score == "" {
		t.Score = "1m"
	}
	if t.Generate == "" {
		t.Generate = "1m"
	}
	if t.Drift == "" {
		t.Drift = "1m"
	}
	if t.Store == "" {
		t.Store = "5m"
	}
	if t.Deliver == "" {
		t.Deliver = "2m"
	}

	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 5
	}
	if p.RetryBackoff == "" {
		p.RetryBackoff = RetryBackoffExponential
	} else if norm := NormalizeRetryBackoff(string(p.RetryBackoff)); norm != "" {
		p.RetryBackoff = norm
	} else {
		p.RetryBackoff = RetryBackoffExponential
	}
	if p.RetryInitialDelay == "" {
		p.RetryInitialDelay = "2s"
	}
	if p.RetryMaxDelay == "" {
		p.RetryMaxDelay = "10s"
	}
}

func applyStoreDefaults(cfg *Config) {
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./docdrift.db"
	}
}

func applyDeliveryDefaults(cfg *Config) {
	d := &cfg.Delivery
	if d.Enabled == nil {
		enabled := true
		d.Enabled = &enabled
	}
	if d.BranchPrefix == "" {
		d.BranchPrefix = "auto/docs/"
	}
	if d.CommitAuthor == "" {
		d.CommitAuthor = "docdrift-bot"
	}
	if d.CommitEmail == "" {
		d.CommitEmail = "docdrift@localhost"
	}
	if d.DocsRoot == "" {
		d.DocsRoot = "docs"
	}
}

func applyProjectDefaults(cfg *Config) {
	for i := range cfg.Projects {
		p := &cfg.Projects[i]
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.Branch == "" {
			p.Branch = "main"
		}
		if p.DocsRoot == "" {
			p.DocsRoot = cfg.Delivery.DocsRoot
		}
	}
}

func applyEventDefaults(cfg *Config) {
	n := cfg.Events.NATS
	if n == nil {
		return
	}
	if n.URL == "" {
		n.URL = "nats://127.0.0.1:4222"
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = "docdrift.pipeline"
	}
	if n.Stream == "" {
		n.Stream = "DOCDRIFT"
	}
}

func applySyncDefaults(cfg *Config) {
	if cfg.Sync.Schedule == "" {
		cfg.Sync.Schedule = "0 */4 * * *"
	}
}

func applyMonitoringDefaults(cfg *Config) {
	if cfg.Monitoring == nil {
		cfg.Monitoring = &MonitoringConfig{}
	}
	m := cfg.Monitoring
	if m.Metrics.Path == "" {
		m.Metrics.Path = "/metrics"
	}
	if m.Health.Path == "" {
		m.Health.Path = "/healthz"
	}
	if m.Logging.Level == "" {
		m.Logging.Level = LogLevelInfo
	} else if lvl := NormalizeLogLevel(string(m.Logging.Level)); lvl != "" {
		m.Logging.Level = lvl
	} else {
		m.Logging.Level = LogLevelInfo
	}
	if m.Logging.Format == "" {
		m.Logging.Format = LogFormatText
	} else if f := NormalizeLogFormat(string(m.Logging.Format)); f != "" {
		m.Logging.Format = f
	} else {
		m.Logging.Format = LogFormatText
	}
}
