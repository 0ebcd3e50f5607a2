package objstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// FSStore stores objects as files under a root directory. It is the default
// backend for local runs and the test double for the remote ones.
type FSStore struct {
	root string
}

// NewFS creates the root directory if needed and returns the store.
func NewFS(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.ConfigError("file store requires a directory").Build()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.FileSystemError("failed to create store directory").
			WithContext("dir", root).
			Build()
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.StoreError("failed to create object directory").
			WithContext("key", key).
			Build()
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return errors.StoreError("failed to write object").
			WithContext("key", key).
			Build()
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.StoreError("failed to read object").
			WithContext("key", key).
			Build()
	}
	return data, nil
}

func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.StoreError("failed to list objects").
			WithContext("prefix", prefix).
			Build()
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Delete(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		p, err := s.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.StoreError("failed to delete object").
				WithContext("key", key).
				Build()
		}
		s.pruneEmptyDirs(filepath.Dir(p))
	}
	return nil
}

// pruneEmptyDirs removes now-empty parent directories up to the root.
func (s *FSStore) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		if err := os.Remove(dir); err != nil {
			return // not empty or gone already
		}
		dir = filepath.Dir(dir)
	}
}
