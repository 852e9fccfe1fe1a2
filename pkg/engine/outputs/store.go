// Package outputs holds resolved instance outputs and the top-level output
// selection logic.
package outputs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/architect-io/stackctl/pkg/errors"
)

// Store is the resolved-outputs table for one deployment run. It is the only
// shared mutable resource during execution: each instance's outputs are
// published exactly once, atomically, and downstream readers always observe
// a fully-published entry or none at all.
type Store struct {
	mu     sync.RWMutex
	values map[string]map[string]interface{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]map[string]interface{}),
	}
}

// Publish records all outputs of an instance in one step. Publishing the
// same instance twice is a programming error and is rejected.
func (s *Store) Publish(instance string, vals map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[instance]; exists {
		return errors.New(errors.ErrCodeExecution, fmt.Sprintf("outputs for instance %q published twice", instance))
	}

	copied := make(map[string]interface{}, len(vals))
	for k, v := range vals {
		copied[k] = v
	}
	s.values[instance] = copied

	return nil
}

// Output returns the named output of an instance. The second return is false
// when the instance has not published or does not expose that output.
func (s *Store) Output(instance, output string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals, ok := s.values[instance]
	if !ok {
		return nil, false
	}
	v, ok := vals[output]
	return v, ok
}

// Has reports whether an instance has published its outputs.
func (s *Store) Has(instance string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[instance]
	return ok
}

// Instances returns the instances that have published, sorted by name.
func (s *Store) Instances() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all published outputs, keyed by instance.
func (s *Store) Snapshot() map[string]map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]map[string]interface{}, len(s.values))
	for instance, vals := range s.values {
		copied := make(map[string]interface{}, len(vals))
		for k, v := range vals {
			copied[k] = v
		}
		snap[instance] = copied
	}
	return snap
}
