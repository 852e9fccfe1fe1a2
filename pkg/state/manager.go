// Package state provides run state management for stackctl.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/architect-io/stackctl/pkg/state/backend"
	"github.com/architect-io/stackctl/pkg/state/types"
)

// Manager provides high-level state operations over a backend.
type Manager interface {
	// Run operations (stack-scoped)
	GetRun(ctx context.Context, stack, id string) (*types.RunRecord, error)
	SaveRun(ctx context.Context, record *types.RunRecord) error
	DeleteRun(ctx context.Context, stack, id string) error
	ListRuns(ctx context.Context, stack string) ([]*types.RunRecord, error)
	LatestRun(ctx context.Context, stack string) (*types.RunRecord, error)

	ListStacks(ctx context.Context) ([]string, error)

	// Locking
	Lock(ctx context.Context, scope LockScope) (backend.Lock, error)

	// Backend info
	Backend() backend.Backend
}

// LockScope defines what to lock.
type LockScope struct {
	Stack     string
	Operation string
	Who       string
}

// manager implements the Manager interface.
type manager struct {
	backend backend.Backend
}

// NewManager creates a new state manager with the given backend.
func NewManager(b backend.Backend) Manager {
	return &manager{backend: b}
}

// NewManagerFromConfig creates a new state manager from backend configuration.
func NewManagerFromConfig(config backend.Config) (Manager, error) {
	b, err := backend.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	return NewManager(b), nil
}

func (m *manager) Backend() backend.Backend {
	return m.backend
}

// Run operations

func (m *manager) GetRun(ctx context.Context, stack, id string) (*types.RunRecord, error) {
	return readJSON[types.RunRecord](ctx, m.backend, runPath(stack, id))
}

func (m *manager) SaveRun(ctx context.Context, record *types.RunRecord) error {
	return writeJSON(ctx, m.backend, runPath(record.Stack, record.ID), record)
}

func (m *manager) DeleteRun(ctx context.Context, stack, id string) error {
	return m.backend.Delete(ctx, runPath(stack, id))
}

// ListRuns returns a stack's runs, newest first.
func (m *manager) ListRuns(ctx context.Context, stack string) ([]*types.RunRecord, error) {
	prefix := path.Join("stacks", stack, "runs") + "/"
	paths, err := m.backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var runs []*types.RunRecord
	for _, p := range paths {
		record, err := readJSON[types.RunRecord](ctx, m.backend, p)
		if err != nil {
			continue // skip records that cannot be read
		}
		runs = append(runs, record)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// LatestRun returns the newest run of a stack, or ErrNotFound.
func (m *manager) LatestRun(ctx context.Context, stack string) (*types.RunRecord, error) {
	runs, err := m.ListRuns(ctx, stack)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, backend.ErrNotFound
	}
	return runs[0], nil
}

func (m *manager) ListStacks(ctx context.Context) ([]string, error) {
	paths, err := m.backend.List(ctx, "stacks/")
	if err != nil {
		return nil, err
	}

	// Path format: stacks/<stack>/runs/<id>.json
	seen := make(map[string]bool)
	for _, p := range paths {
		parts := splitPath(p)
		if len(parts) >= 2 {
			seen[parts[1]] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Locking

func (m *manager) Lock(ctx context.Context, scope LockScope) (backend.Lock, error) {
	lockPath := path.Join("stacks", scope.Stack)

	info := backend.LockInfo{
		Who:       scope.Who,
		Operation: scope.Operation,
	}

	return m.backend.Lock(ctx, lockPath, info)
}

// Path helpers

func runPath(stack, id string) string {
	return path.Join("stacks", stack, "runs", id+".json")
}

func splitPath(p string) []string {
	var parts []string
	for p != "" && p != "." && p != "/" {
		dir, file := path.Split(p)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		p = path.Clean(dir)
	}
	return parts
}

// JSON helpers

func readJSON[T any](ctx context.Context, b backend.Backend, p string) (*T, error) {
	reader, err := b.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var result T
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return &result, nil
}

func writeJSON(ctx context.Context, b backend.Backend, p string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return b.Write(ctx, p, bytes.NewReader(content))
}
