// Package deployer provides the pluggable deployment backend framework.
package deployer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Request describes a single module deployment.
type Request struct {
	// Name is the deployment name of the instance being deployed.
	Name string

	// Source is the resolved module template location (local path or
	// fetched checkout).
	Source string

	// Params are the fully evaluated parameter values for the instance.
	Params map[string]interface{}

	// Stdout/Stderr for deployer process output. May be nil.
	Stdout io.Writer
	Stderr io.Writer
}

// Deployer executes module deployments. Implementations must be safe for
// concurrent use; the coordinator calls Deploy from multiple goroutines.
type Deployer interface {
	// Name returns the deployer identifier (e.g., "command", "static")
	Name() string

	// Deploy provisions the module and returns its output values.
	Deploy(ctx context.Context, req Request) (map[string]interface{}, error)
}

// Factory creates a deployer instance.
type Factory func() (Deployer, error)

// Registry holds registered deployer factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Deployer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Deployer),
	}
}

// Register adds a deployer factory under a name, replacing any previous
// registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.instances, name)
}

// Get returns the deployer registered under a name, instantiating it on
// first use.
func (r *Registry) Get(name string) (Deployer, error) {
	r.mu.RLock()
	if d, ok := r.instances[name]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.instances[name]; ok {
		return d, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no deployer registered with name %q", name)
	}

	d, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create deployer %q: %w", name, err)
	}
	r.instances[name] = d

	return d, nil
}

// Names returns the registered deployer names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry creates a registry with the built-in deployers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("command", func() (Deployer, error) {
		return NewCommandDeployer(CommandOptions{}), nil
	})
	r.Register("static", func() (Deployer, error) {
		return NewStaticDeployer(nil), nil
	})
	return r
}
