package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// S3Store serves s3:// and r2:// URLs through the same client; R2 and minio
// differ only in endpoint and addressing style.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3(ctx context.Context, cfg config.StoreConfig, u *url.URL, r2 bool) (*S3Store, error) {
	region := cfg.Region
	if region == "" && r2 {
		region = "auto"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStore, "failed to load object store credentials").Build()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && r2 {
		if cfg.AccountID == "" {
			return nil, errors.ConfigError("r2 store requires endpoint or account_id").Build()
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle || r2
	})

	return &S3Store{
		client: client,
		bucket: u.Host,
		prefix: strings.Trim(u.Path, "/"),
	}, nil
}

func (s *S3Store) objectKey(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return joinPrefix(s.prefix, key), nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	full, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return s.wrap(err, "failed to upload object", key)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(key)
		}
		return nil, s.wrap(err, "failed to download object", key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.wrap(err, "failed to read object body", key)
	}
	return data, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := joinPrefix(s.prefix, strings.TrimPrefix(prefix, "/"))
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrap(err, "failed to list objects", prefix)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *S3Store) Delete(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	// DeleteObjects accepts at most 1000 keys per call.
	for len(keys) > 0 {
		batch := keys
		if len(batch) > 1000 {
			batch = batch[:1000]
		}
		keys = keys[len(batch):]

		objects := make([]s3types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			full, err := s.objectKey(key)
			if err != nil {
				return err
			}
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(full)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return s.wrap(err, "failed to delete objects", prefix)
		}
	}
	return nil
}

func (s *S3Store) wrap(err error, msg, key string) error {
	// SDK errors can echo request URLs; scrub before they reach logs.
	return errors.StoreError(msg).
		WithContext("bucket", s.bucket).
		WithContext("key", key).
		WithContext("cause", sanitize.String(err.Error())).
		Retryable().
		Build()
}

func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFoundErr *s3types.NotFound
	return errorsAs(err, &noSuchKey) || errorsAs(err, &notFoundErr)
}
