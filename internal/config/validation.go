package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs configuration validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	if err := cv.validateStore(); err != nil {
		return err
	}
	if err := cv.validatePipeline(); err != nil {
		return err
	}
	if err := cv.validateForges(); err != nil {
		return err
	}
	if err := cv.validateProjects(); err != nil {
		return err
	}
	if err := cv.validateAPITokens(); err != nil {
		return err
	}
	if err := cv.validateSettings(); err != nil {
		return err
	}
	return nil
}

var storeSchemes = map[string]bool{"s3": true, "gs": true, "r2": true, "file": true}

func (cv *configurationValidator) validateStore() error {
	raw := cv.config.Store.URL
	if raw == "" {
		return errors.New("store.url must be configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("store.url is not a valid URL: %w", err)
	}
	if !storeSchemes[u.Scheme] {
		return fmt.Errorf("unsupported store scheme: %s (expected s3, gs, r2, or file)", u.Scheme)
	}
	if u.User != nil {
		return errors.New("store.url must not embed credentials; use access_key_id/secret_access_key")
	}
	if u.Scheme != "file" && u.Host == "" {
		return fmt.Errorf("store.url missing bucket: %s", raw)
	}
	return nil
}

func (cv *configurationValidator) validatePipeline() error {
	p := cv.config.Pipeline
	for _, tc := range []struct {
		name  string
		value string
	}{
		{"fetch", p.StageTimeouts.Fetch},
		{"detect", p.StageTimeouts.Detect},
		{"parse", p.StageTimeouts.Parse},
		{"score", p.StageTimeouts.Score},
		{"generate", p.StageTimeouts.Generate},
		{"drift", p.StageTimeouts.Drift},
		{"store", p.StageTimeouts.Store},
		{"deliver", p.StageTimeouts.Deliver},
	} {
		if _, err := time.ParseDuration(tc.value); err != nil {
			return fmt.Errorf("invalid stage timeout %s: %q", tc.name, tc.value)
		}
	}
	if _, err := time.ParseDuration(p.RetryInitialDelay); err != nil {
		return fmt.Errorf("invalid retry_initial_delay: %q", p.RetryInitialDelay)
	}
	if _, err := time.ParseDuration(p.RetryMaxDelay); err != nil {
		return fmt.Errorf("invalid retry_max_delay: %q", p.RetryMaxDelay)
	}
	return nil
}

func (cv *configurationValidator) validateForges() error {
	forgeNames := make(map[string]bool)
	for _, forge := range cv.config.Forges {
		if forge.Name == "" {
			return errors.New("forge name cannot be empty")
		}
		if forgeNames[forge.Name] {
			return fmt.Errorf("duplicate forge name: %s", forge.Name)
		}
		forgeNames[forge.Name] = true

		if forge.Type == "" {
			return fmt.Errorf("forge %s: type is required", forge.Name)
		}
		norm := NormalizeForgeType(string(forge.Type))
		if norm == "" {
			return fmt.Errorf("forge %s: unsupported forge type: %s", forge.Name, forge.Type)
		}
		forge.Type = norm

		if forge.APIURL == "" {
			return fmt.Errorf("forge %s: api_url is required", forge.Name)
		}
	}
	return nil
}

func (cv *configurationValidator) validateProjects() error {
	projectIDs := make(map[string]bool)
	forgeNames := make(map[string]bool)
	for _, f := range cv.config.Forges {
		forgeNames[f.Name] = true
	}

	for _, p := range cv.config.Projects {
		if p.ID == "" {
			return errors.New("project id cannot be empty")
		}
		if strings.ContainsAny(p.ID, "/\\ ") {
			return fmt.Errorf("project %s: id must not contain path separators or spaces", p.ID)
		}
		if projectIDs[p.ID] {
			return fmt.Errorf("duplicate project id: %s", p.ID)
		}
		projectIDs[p.ID] = true

		if p.URL == "" {
			return fmt.Errorf("project %s: url is required", p.ID)
		}
		if u, err := url.Parse(p.URL); err == nil && u.User != nil {
			return fmt.Errorf("project %s: url must not embed credentials; use auth", p.ID)
		}
		if p.Forge != "" && !forgeNames[p.Forge] {
			return fmt.Errorf("project %s: unknown forge %q", p.ID, p.Forge)
		}
	}
	return nil
}

var validRoles = map[string]bool{"viewer": true, "editor": true, "admin": true}

func (cv *configurationValidator) validateAPITokens() error {
	for i, tok := range cv.config.API.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("api.tokens[%d]: token cannot be empty", i)
		}
		if !validRoles[tok.Role] {
			return fmt.Errorf("api.tokens[%d]: unknown role %q (expected viewer, editor, or admin)", i, tok.Role)
		}
	}
	return nil
}

func (cv *configurationValidator) validateSettings() error {
	key := cv.config.Settings.SealingKey
	if key == "" {
		return nil
	}
	raw, err := hex.DecodeString(key)
	if err != nil {
		return errors.New("settings.sealing_key must be hex encoded")
	}
	if len(raw) != 32 {
		return fmt.Errorf("settings.sealing_key must be 32 bytes, got %d", len(raw))
	}
	return nil
}
