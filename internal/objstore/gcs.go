package objstore

import (
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// GCSStore serves gs:// URLs through the Cloud Storage client with
// application default credentials.
type GCSStore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

func newGCS(ctx context.Context, u *url.URL) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStore, "failed to create gcs client").Build()
	}
	return &GCSStore{
		bucket: client.Bucket(u.Host),
		name:   u.Host,
		prefix: strings.Trim(u.Path, "/"),
	}, nil
}

func (s *GCSStore) objectKey(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinPrefix(s.prefix, key), nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	full, err := s.objectKey(key)
	if err != nil {
		return err
	}
	w := s.bucket.Object(full).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return s.wrap(err, "failed to upload object", key)
	}
	if err := w.Close(); err != nil {
		return s.wrap(err, "failed to finalize object", key)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(full).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(key)
		}
		return nil, s.wrap(err, "failed to open object", key)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, s.wrap(err, "failed to read object", key)
	}
	return data, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	full := joinPrefix(s.prefix, strings.TrimPrefix(prefix, "/"))
	var keys []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: full})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.wrap(err, "failed to list objects", prefix)
		}
		key := attrs.Name
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *GCSStore) Delete(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		full, err := s.objectKey(key)
		if err != nil {
			return err
		}
		if err := s.bucket.Object(full).Delete(ctx); err != nil && !stderrors.Is(err, storage.ErrObjectNotExist) {
			return s.wrap(err, "failed to delete object", key)
		}
	}
	return nil
}

func (s *GCSStore) wrap(err error, msg, key string) error {
	return errors.StoreError(msg).
		WithContext("bucket", s.name).
		WithContext("key", key).
		WithContext("cause", sanitize.String(err.Error())).
		Retryable().
		Build()
}
