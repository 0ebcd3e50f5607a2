// Package objstore provides the object storage capability behind the
// artifact store. Backends are selected by URL scheme: s3://bucket/prefix,
// r2://bucket/prefix, gs://bucket/prefix, file:///dir. Keys are
// slash-separated relative paths.
package objstore

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Store is the minimal object storage surface the artifact layer needs.
// Get on a missing key returns a not_found classified error for every
// backend.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, prefix string) error
}

// Open builds the backend selected by cfg.URL.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.ConfigError("invalid store URL").
			WithContext("url", cfg.URL).
			Build()
	}

	switch u.Scheme {
	case "file":
		// file://./artifacts parses with Host "."; rejoin it with the path.
		return NewFS(u.Host + u.Path)
	case "s3":
		return newS3(ctx, cfg, u, false)
	case "r2":
		return newS3(ctx, cfg, u, true)
	case "gs":
		return newGCS(ctx, u)
	default:
		return nil, errors.ConfigError("unsupported store scheme").
			WithContext("scheme", u.Scheme).
			WithContext("url", cfg.URL).
			Build()
	}
}

// cleanKey validates an object key: relative, slash-separated, no traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.ValidationError("object key must not be empty").Build()
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", errors.ValidationError("object key contains an invalid path segment").
				WithContext("key", key).
				Build()
		}
	}
	return key, nil
}

func notFound(key string) error {
	return errors.NotFoundError("object not found").
		WithContext("key", key).
		Build()
}

// IsNotFound reports whether err is the store's missing-object error.
func IsNotFound(err error) bool {
	return errors.HasCategory(err, errors.CategoryNotFound)
}

// errorsAs aliases the standard library; the errors identifier is taken by
// the classified-error package.
func errorsAs(err error, target any) bool { return stderrors.As(err, target) }

func joinPrefix(base, key string) string {
	if base == "" {
		return key
	}
	return base + "/" + key
}
