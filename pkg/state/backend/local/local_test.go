package local

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/state/backend"
)

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()
	b, err := NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	return b
}

func TestReadWriteDelete(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	path := "stacks/demo/runs/abc.json"
	require.NoError(t, b.Write(ctx, path, strings.NewReader(`{"id":"abc"}`)))

	reader, err := b.Read(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, `{"id":"abc"}`, string(data))

	exists, err := b.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, b.Delete(ctx, path))
	_, err = b.Read(ctx, path)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, b.Delete(ctx, path))
}

func TestList(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "stacks/demo/runs/a.json", strings.NewReader("{}")))
	require.NoError(t, b.Write(ctx, "stacks/demo/runs/b.json", strings.NewReader("{}")))
	require.NoError(t, b.Write(ctx, "stacks/other/runs/c.json", strings.NewReader("{}")))

	paths, err := b.List(ctx, "stacks/demo/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"stacks/demo/runs/a.json", "stacks/demo/runs/b.json"}, paths)

	paths, err = b.List(ctx, "stacks/missing/")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLock(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	lock, err := b.Lock(ctx, "stacks/demo", backend.LockInfo{Who: "tester", Operation: "deploy"})
	require.NoError(t, err)
	assert.NotEmpty(t, lock.ID())
	assert.Equal(t, "tester", lock.Info().Who)

	// Second acquisition fails while held.
	_, err = b.Lock(ctx, "stacks/demo", backend.LockInfo{Who: "other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrLocked)

	var lockErr *backend.LockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, "tester", lockErr.Info.Who)

	require.NoError(t, lock.Unlock(ctx))

	// Released lock can be re-acquired.
	lock2, err := b.Lock(ctx, "stacks/demo", backend.LockInfo{Who: "other"})
	require.NoError(t, err)
	require.NoError(t, lock2.Unlock(ctx))
}

func TestLock_StaleLockIsStolen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b1, err := NewBackend(map[string]string{"path": dir})
	require.NoError(t, err)
	lock, err := b1.Lock(ctx, "stacks/demo", backend.LockInfo{Who: "crashed"})
	require.NoError(t, err)

	// Age the lock past the stale timeout and simulate a fresh process
	// (in-memory lock table empty).
	info := lock.Info()
	info.Created = time.Now().Add(-backend.StaleLockTimeout - time.Minute)
	b2, err := NewBackend(map[string]string{"path": dir})
	require.NoError(t, err)

	agedJSON := `{"id":"` + info.ID + `","path":"stacks/demo","who":"crashed","created":"` +
		info.Created.Format(time.RFC3339) + `"}`
	require.NoError(t, b2.Write(ctx, "stacks/demo.lock", strings.NewReader(agedJSON)))

	lock2, err := b2.Lock(ctx, "stacks/demo", backend.LockInfo{Who: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", lock2.Info().Who)
	require.NoError(t, lock2.Unlock(ctx))
}

func TestDefaultsToRegisteredFactory(t *testing.T) {
	assert.Contains(t, backend.Types(), "local")

	b, err := backend.Create(backend.Config{
		Type:     "local",
		Settings: map[string]string{"path": t.TempDir()},
	})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Type())
}
