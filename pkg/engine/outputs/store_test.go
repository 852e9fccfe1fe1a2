package outputs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/errors"
)

func TestStore_PublishAndRead(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Publish("db", map[string]interface{}{"host": "db.internal"}))

	val, ok := s.Output("db", "host")
	require.True(t, ok)
	assert.Equal(t, "db.internal", val)

	_, ok = s.Output("db", "missing")
	assert.False(t, ok)
	_, ok = s.Output("cache", "host")
	assert.False(t, ok)

	assert.True(t, s.Has("db"))
	assert.False(t, s.Has("cache"))
}

func TestStore_PublishIsWriteOnce(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Publish("db", map[string]interface{}{"host": "a"}))
	err := s.Publish("db", map[string]interface{}{"host": "b"})
	require.Error(t, err)

	val, _ := s.Output("db", "host")
	assert.Equal(t, "a", val)
}

func TestStore_PublishCopiesInput(t *testing.T) {
	s := NewStore()
	vals := map[string]interface{}{"host": "a"}
	require.NoError(t, s.Publish("db", vals))

	vals["host"] = "mutated"
	got, _ := s.Output("db", "host")
	assert.Equal(t, "a", got)
}

func TestStore_ConcurrentPublish(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("inst-%d", i)
			require.NoError(t, s.Publish(name, map[string]interface{}{"n": i}))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Instances(), 50)
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Publish("db", map[string]interface{}{"host": "a"}))

	snap := s.Snapshot()
	snap["db"]["host"] = "mutated"

	got, _ := s.Output("db", "host")
	assert.Equal(t, "a", got)
}

func TestSelect_EvaluatesSelections(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Publish("db", map[string]interface{}{"host": "db.internal"}))

	out, err := Select(map[string]expr.Expr{
		"endpoint": expr.Concat{Parts: []expr.Expr{
			expr.Literal{Value: "postgres://"},
			expr.OutputRef{Instance: "db", Output: "host"},
		}},
		"region": expr.ParamRef{Name: "region"},
	}, map[string]interface{}{"region": "us-east-1"}, s)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db.internal", out["endpoint"])
	assert.Equal(t, "us-east-1", out["region"])
}

func TestSelect_UnresolvedSourceFails(t *testing.T) {
	s := NewStore()

	_, err := Select(map[string]expr.Expr{
		"host": expr.OutputRef{Instance: "db", Output: "host"},
	}, nil, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnresolvedOutput))
}

func TestSelect_ConditionalPicksOnlyChosenBranch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Publish("primary", map[string]interface{}{"url": "http://primary"}))

	// The fallback branch references an instance that never ran, but the
	// condition is true so it is never touched.
	out, err := Select(map[string]expr.Expr{
		"url": expr.Cond{
			If:   expr.Literal{Value: true},
			Then: expr.OutputRef{Instance: "primary", Output: "url"},
			Else: expr.OutputRef{Instance: "secondary", Output: "url"},
		},
	}, nil, s)
	require.NoError(t, err)
	assert.Equal(t, "http://primary", out["url"])
}
