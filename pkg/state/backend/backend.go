// Package backend defines the storage interface for stackctl run state.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// ErrNotFound indicates the requested state object does not exist.
var ErrNotFound = errors.New("state not found")

// ErrLocked indicates the state is locked by another operation.
var ErrLocked = errors.New("state is locked")

// Backend is a blob store for run records and locks. Paths use forward
// slashes regardless of platform.
type Backend interface {
	// Type returns the backend identifier (e.g., "local", "s3")
	Type() string

	// Read returns the object at path, or ErrNotFound.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores the object at path, creating parents as needed.
	Write(ctx context.Context, path string, data io.Reader) error

	// Delete removes the object at path. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, path string) error

	// List returns all object paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Lock acquires an advisory lock on the path, or fails with a
	// LockError wrapping ErrLocked.
	Lock(ctx context.Context, path string, info LockInfo) (Lock, error)
}

// LockInfo describes a held lock.
type LockInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Who       string    `json:"who,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Created   time.Time `json:"created"`
}

// Lock is a held advisory lock.
type Lock interface {
	ID() string
	Info() LockInfo
	Unlock(ctx context.Context) error
}

// LockError reports a failed lock acquisition together with the holder.
type LockError struct {
	Info LockInfo
	Err  error
}

func (e *LockError) Error() string {
	if e.Info.Who != "" {
		return fmt.Sprintf("state locked by %s since %s (operation: %s)", e.Info.Who, e.Info.Created.Format(time.RFC3339), e.Info.Operation)
	}
	return fmt.Sprintf("state locked since %s", e.Info.Created.Format(time.RFC3339))
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// StaleLockTimeout is how old a lock must be before a new acquisition may
// steal it. Crashed processes leave lock files behind; anything older than
// this is treated as abandoned.
const StaleLockTimeout = time.Hour

// Factory creates a backend from its configuration settings.
type Factory func(config map[string]string) (Backend, error)

// Config selects and configures a backend.
type Config struct {
	// Type names a registered backend.
	Type string

	// Settings are backend-specific (e.g., "path" for local, "bucket" for
	// the blob backends).
	Settings map[string]string
}

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register adds a backend factory. Backends register themselves from init,
// so importing a backend package makes it available.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Create instantiates the backend named by the config.
func Create(config Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := factories[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (available: %v)", config.Type, Types())
	}

	return factory(config.Settings)
}

// Types returns the registered backend names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
