// Package azurerm implements an Azure Blob Storage state backend.
package azurerm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/architect-io/stackctl/pkg/state/backend"
	"github.com/google/uuid"
)

func init() {
	backend.Register("azurerm", NewBackend)
}

// Backend stores run state as blobs in an Azure Blob Storage container.
type Backend struct {
	client        *azblob.Client
	containerName string
	prefix        string
}

// NewBackend creates an Azure Blob Storage backend from backend settings.
// The "storage_account_name" and "container_name" settings are required.
// Authentication falls back through access_key, sas_token,
// connection_string and finally DefaultAzureCredential.
func NewBackend(settings map[string]string) (backend.Backend, error) {
	storageAccount, ok := settings["storage_account_name"]
	if !ok || storageAccount == "" {
		return nil, fmt.Errorf("azurerm backend requires 'storage_account_name' configuration")
	}

	containerName, ok := settings["container_name"]
	if !ok || containerName == "" {
		return nil, fmt.Errorf("azurerm backend requires 'container_name' configuration")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
	if endpoint := settings["endpoint"]; endpoint != "" {
		// Custom endpoint, used with the Azurite emulator.
		serviceURL = endpoint
	}

	var client *azblob.Client
	var err error

	if accessKey := settings["access_key"]; accessKey != "" {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(storageAccount, accessKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with shared key: %w", err)
		}
	} else if sasToken := settings["sas_token"]; sasToken != "" {
		sep := "?"
		if strings.Contains(serviceURL, "?") {
			sep = "&"
		}
		client, err = azblob.NewClientWithNoCredential(serviceURL+sep+strings.TrimPrefix(sasToken, "?"), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with SAS token: %w", err)
		}
	} else if connectionString := settings["connection_string"]; connectionString != "" {
		client, err = azblob.NewClientFromConnectionString(connectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client from connection string: %w", err)
		}
	} else {
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default Azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
	}

	return &Backend{
		client:        client,
		containerName: containerName,
		prefix:        settings["key"],
	}, nil
}

func (b *Backend) Type() string {
	return "azurerm"
}

func (b *Backend) Read(ctx context.Context, statePath string) (io.ReadCloser, error) {
	name := b.blobName(statePath)

	resp, err := b.client.DownloadStream(ctx, b.containerName, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state from azure://%s/%s: %w", b.containerName, name, err)
	}

	return resp.Body, nil
}

func (b *Backend) Write(ctx context.Context, statePath string, data io.Reader) error {
	name := b.blobName(statePath)

	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	_, err = b.client.UploadBuffer(ctx, b.containerName, name, content, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: toPtr("application/json"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write state to azure://%s/%s: %w", b.containerName, name, err)
	}

	return nil
}

func (b *Backend) Delete(ctx context.Context, statePath string) error {
	name := b.blobName(statePath)

	_, err := b.client.DeleteBlob(ctx, b.containerName, name, nil)
	if err != nil {
		// Deleting a missing blob is not an error.
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete state from azure://%s/%s: %w", b.containerName, name, err)
	}

	return nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := b.blobName(prefix)

	var paths []string
	pager := b.client.NewListBlobsFlatPager(b.containerName, &container.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			// Report paths relative to the backend prefix.
			relPath := *item.Name
			if b.prefix != "" {
				relPath = strings.TrimPrefix(relPath, b.prefix+"/")
			}
			paths = append(paths, relPath)
		}
	}

	return paths, nil
}

func (b *Backend) Exists(ctx context.Context, statePath string) (bool, error) {
	name := b.blobName(statePath)

	_, err := b.client.ServiceClient().NewContainerClient(b.containerName).NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return false, nil
		}
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

func (b *Backend) Lock(ctx context.Context, statePath string, info backend.LockInfo) (backend.Lock, error) {
	lockName := b.blobName(statePath + ".lock")

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

	_, err = b.client.UploadBuffer(ctx, b.containerName, lockName, lockData, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: toPtr("application/json"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}

	return &azureLock{
		backend: b,
		name:    lockName,
		info:    info,
	}, nil
}

func (b *Backend) readLock(ctx context.Context, lockName string) (backend.LockInfo, error) {
	resp, err := b.client.DownloadStream(ctx, b.containerName, lockName, nil)
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer resp.Body.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return backend.LockInfo{}, err
	}

	return info, nil
}

func (b *Backend) blobName(statePath string) string {
	if b.prefix == "" {
		return statePath
	}
	return path.Join(b.prefix, statePath)
}

type azureLock struct {
	backend *Backend
	name    string
	info    backend.LockInfo
}

func (l *azureLock) ID() string {
	return l.info.ID
}

func (l *azureLock) Unlock(ctx context.Context) error {
	_, err := l.backend.client.DeleteBlob(ctx, l.backend.containerName, l.name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *azureLock) Info() backend.LockInfo {
	return l.info
}

var _ backend.Backend = (*Backend)(nil)

func toPtr[T any](v T) *T {
	return &v
}
