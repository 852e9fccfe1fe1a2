// Package s3 implements an S3-compatible state backend.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/architect-io/stackctl/pkg/state/backend"
)

func init() {
	backend.Register("s3", NewBackend)
}

// Backend stores run state in an S3-compatible bucket.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewBackend creates an S3 backend. Settings: "bucket" (required),
// "region", "key" (object prefix), "endpoint" and "force_path_style" for
// MinIO/R2-style stores, and "access_key"/"secret_key" for static
// credentials.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	bucket := cfg["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	region := cfg["region"]
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKey := cfg["access_key"]; accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, cfg["secret_key"], ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg["force_path_style"] == "true"
		if endpoint := cfg["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Backend{
		client: client,
		bucket: bucket,
		prefix: cfg["key"],
	}, nil
}

func (b *Backend) Type() string {
	return "s3"
}

func (b *Backend) Read(ctx context.Context, statePath string) (io.ReadCloser, error) {
	key := b.objectKey(statePath)

	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", b.bucket, key, err)
	}

	return output.Body, nil
}

func (b *Backend) Write(ctx context.Context, statePath string, data io.Reader) error {
	key := b.objectKey(statePath)

	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &key,
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", b.bucket, key, err)
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, statePath string) error {
	key := b.objectKey(statePath)

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil // idempotent
		}
		return fmt.Errorf("failed to delete s3://%s/%s: %w", b.bucket, key, err)
	}

	return nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := b.objectKey(prefix)

	var paths []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: &fullPrefix,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			relPath := *obj.Key
			if b.prefix != "" {
				relPath = strings.TrimPrefix(relPath, b.prefix+"/")
			}
			paths = append(paths, relPath)
		}
	}

	return paths, nil
}

func (b *Backend) Exists(ctx context.Context, statePath string) (bool, error) {
	key := b.objectKey(statePath)

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

func (b *Backend) Lock(ctx context.Context, statePath string, info backend.LockInfo) (backend.Lock, error) {
	lockKey := b.objectKey(statePath + ".lock")

	if existing, err := b.readLock(ctx, lockKey); err == nil {
		if time.Since(existing.Created) < backend.StaleLockTimeout {
			return nil, &backend.LockError{
				Info: existing,
				Err:  backend.ErrLocked,
			}
		}
	}

	info.ID = uuid.New().String()
	info.Path = statePath
	info.Created = time.Now()

	lockData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &lockKey,
		Body:        bytes.NewReader(lockData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}

	return &s3Lock{
		backend: b,
		key:     lockKey,
		info:    info,
	}, nil
}

func (b *Backend) readLock(ctx context.Context, key string) (backend.LockInfo, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer output.Body.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(output.Body).Decode(&info); err != nil {
		return backend.LockInfo{}, err
	}

	return info, nil
}

func (b *Backend) objectKey(statePath string) string {
	if b.prefix == "" {
		return statePath
	}
	return path.Join(b.prefix, statePath)
}

// s3Lock implements the Lock interface for S3.
type s3Lock struct {
	backend *Backend
	key     string
	info    backend.LockInfo
}

func (l *s3Lock) ID() string {
	return l.info.ID
}

func (l *s3Lock) Info() backend.LockInfo {
	return l.info
}

func (l *s3Lock) Unlock(ctx context.Context) error {
	_, err := l.backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &l.backend.bucket,
		Key:    &l.key,
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
