// Package auth maps upstream credential configuration to go-git transport
// auth methods. Credentials flow only through transport.AuthMethod values;
// they are never interpolated into clone URLs.
package auth

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Provider builds a transport auth method for one auth type.
type Provider interface {
	Type() config.AuthType
	Method(cfg *config.AuthConfig) (transport.AuthMethod, error)
}

// Registry dispatches on the configured auth type.
type Registry struct {
	providers map[config.AuthType]Provider
}

// NewRegistry returns a registry with the standard providers.
func NewRegistry() *Registry {
	r := &Registry{providers: map[config.AuthType]Provider{}}
	for _, p := range []Provider{noneProvider{}, tokenProvider{}, basicProvider{}, sshProvider{}} {
		r.providers[p.Type()] = p
	}
	return r
}

// Method builds the auth method for cfg. A nil or none config yields
// (nil, nil): anonymous access.
func (r *Registry) Method(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	p, ok := r.providers[cfg.Type]
	if !ok {
		return nil, errors.ConfigError("unsupported auth type").
			WithContext("type", string(cfg.Type)).
			Build()
	}
	return p.Method(cfg)
}

var defaultRegistry = NewRegistry()

// Method builds an auth method using the default registry.
func Method(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	return defaultRegistry.Method(cfg)
}

type noneProvider struct{}

func (noneProvider) Type() config.AuthType { return config.AuthTypeNone }
func (noneProvider) Method(*config.AuthConfig) (transport.AuthMethod, error) {
	return nil, nil
}

type tokenProvider struct{}

func (tokenProvider) Type() config.AuthType { return config.AuthTypeToken }
func (tokenProvider) Method(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg.Token == "" {
		return nil, errors.ConfigError("token authentication requires a token").Build()
	}
	// Forges accept any username when the password is a token.
	return &githttp.BasicAuth{Username: "token", Password: cfg.Token}, nil
}

type basicProvider struct{}

func (basicProvider) Type() config.AuthType { return config.AuthTypeBasic }
func (basicProvider) Method(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.ConfigError("basic authentication requires username and password").Build()
	}
	return &githttp.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
}

type sshProvider struct{}

func (sshProvider) Type() config.AuthType { return config.AuthTypeSSH }
func (sshProvider) Method(cfg *config.AuthConfig) (transport.AuthMethod, error) {
	keyPath := cfg.KeyPath
	if keyPath == "" {
		keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_ed25519")
		if _, err := os.Stat(keyPath); err != nil {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
	}
	keys, err := gitssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		return nil, errors.ConfigError("failed to load SSH key").
			WithContext("key_path", keyPath).
			Build()
	}
	return keys, nil
}
