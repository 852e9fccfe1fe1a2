// Package gcs implements a Google Cloud Storage state backend.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/architect-io/stackctl/pkg/state/backend"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	backend.Register("gcs", NewBackend)
}

// Backend stores run state as objects in a Google Cloud Storage bucket.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackend creates a GCS backend from backend settings. The "bucket"
// setting is required; "prefix", "credentials", "credentials_json" and
// "endpoint" (for emulators) are optional.
func NewBackend(settings map[string]string) (backend.Backend, error) {
	bucketName, ok := settings["bucket"]
	if !ok || bucketName == "" {
		return nil, fmt.Errorf("gcs backend requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	if credentialsFile := settings["credentials"]; credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if credentialsJSON := settings["credentials_json"]; credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	if endpoint := settings["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Backend{
		client: client,
		bucket: bucketName,
		prefix: settings["prefix"],
	}, nil
}

func (b *Backend) Type() string {
	return "gcs"
}

func (b *Backend) Read(ctx context.Context, statePath string) (io.ReadCloser, error) {
	name := b.objectName(statePath)

	reader, err := b.client.Bucket(b.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state from gs://%s/%s: %w", b.bucket, name, err)
	}

	return reader, nil
}

func (b *Backend) Write(ctx context.Context, statePath string, data io.Reader) error {
	name := b.objectName(statePath)

	writer := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write state to gs://%s/%s: %w", b.bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to write state to gs://%s/%s: %w", b.bucket, name, err)
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, statePath string) error {
	name := b.objectName(statePath)

	err := b.client.Bucket(b.bucket).Object(name).Delete(ctx)
	if err != nil {
		// Deleting a missing object is not an error.
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete state from gs://%s/%s: %w", b.bucket, name, err)
	}

	return nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{
		Prefix: b.objectName(prefix),
	})

	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		// Report paths relative to the backend prefix.
		relPath := attrs.Name
		if b.prefix != "" {
			relPath = strings.TrimPrefix(attrs.Name, b.prefix+"/")
		}
		paths = append(paths, relPath)
	}

	return paths, nil
}

func (b *Backend) Exists(ctx context.Context, statePath string) (bool, error) {
	name := b.objectName(statePath)

	_, err := b.client.Bucket(b.bucket).Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

func (b *Backend) Lock(ctx context.Context, statePath string, info backend.LockInfo) (backend.Lock, error) {
	lockName := b.objectName(statePath + ".lock")

	existing, err := b.readLock(ctx, lockName)
	if err == nil {
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

	writer := b.client.Bucket(b.bucket).Object(lockName).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(lockData); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}

	return &gcsLock{
		backend: b,
		name:    lockName,
		info:    info,
	}, nil
}

func (b *Backend) readLock(ctx context.Context, lockName string) (backend.LockInfo, error) {
	reader, err := b.client.Bucket(b.bucket).Object(lockName).NewReader(ctx)
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer reader.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(reader).Decode(&info); err != nil {
		return backend.LockInfo{}, err
	}

	return info, nil
}

func (b *Backend) objectName(statePath string) string {
	if b.prefix == "" {
		return statePath
	}
	return path.Join(b.prefix, statePath)
}

// Close closes the underlying GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}

type gcsLock struct {
	backend *Backend
	name    string
	info    backend.LockInfo
}

func (l *gcsLock) ID() string {
	return l.info.ID
}

func (l *gcsLock) Unlock(ctx context.Context) error {
	err := l.backend.client.Bucket(l.backend.bucket).Object(l.name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *gcsLock) Info() backend.LockInfo {
	return l.info
}

var _ backend.Backend = (*Backend)(nil)
