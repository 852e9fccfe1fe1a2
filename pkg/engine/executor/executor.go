// Package executor runs deployment plans.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/architect-io/stackctl/pkg/deployer"
	"github.com/architect-io/stackctl/pkg/engine/expr"
	"github.com/architect-io/stackctl/pkg/engine/graph"
	"github.com/architect-io/stackctl/pkg/engine/outputs"
	"github.com/architect-io/stackctl/pkg/engine/planner"
	"github.com/architect-io/stackctl/pkg/errors"
)

// Status describes the terminal state of one planned instance.
type Status string

const (
	// StatusSucceeded means the deployer completed and outputs were
	// published.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means parameter or condition evaluation errored, or the
	// deployer returned an error.
	StatusFailed Status = "failed"

	// StatusSkipped means the instance's deferred condition evaluated to
	// false at execution time.
	StatusSkipped Status = "skipped"

	// StatusAborted means the instance never started because an earlier
	// failure stopped the run.
	StatusAborted Status = "aborted"
)

// InstanceResult is the outcome for one instance.
type InstanceResult struct {
	Instance string
	Status   Status
	Outputs  map[string]interface{}
	Err      error
	Duration time.Duration
}

// Result contains the outcome of an execution.
type Result struct {
	// Success is true when no instance failed or was aborted.
	Success bool

	Duration time.Duration

	// Instances holds the per-instance results, keyed by deployment name.
	Instances map[string]*InstanceResult

	// Store holds all published outputs, for output selection afterward.
	Store *outputs.Store
}

// Options configures the executor.
type Options struct {
	// Parallelism bounds the number of concurrent Deploy calls.
	Parallelism int

	// Logger for per-instance progress. Defaults to slog.Default().
	Logger *slog.Logger

	// OnUpdate, when set, is invoked as instances reach a terminal state.
	// Called from worker goroutines; implementations must synchronize.
	OnUpdate func(instance string, status Status)
}

// DefaultOptions returns default executor options.
func DefaultOptions() Options {
	return Options{Parallelism: 10}
}

// Executor runs deployment plans against a deployer.
type Executor struct {
	deployer deployer.Deployer
	options  Options
}

// NewExecutor creates a new executor.
func NewExecutor(d deployer.Deployer, options Options) *Executor {
	if options.Parallelism <= 0 {
		options.Parallelism = 10
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Executor{deployer: d, options: options}
}

// run tracks the shared state of one execution.
type run struct {
	store  *outputs.Store
	params map[string]interface{}

	mu      sync.Mutex
	results map[string]*InstanceResult

	// stop is closed on the first failure. Instances that have not started
	// deploying abort; in-flight deployments run to completion.
	stop     chan struct{}
	stopOnce sync.Once
	firstErr error

	sem chan struct{}
}

func (r *run) fail(err error) {
	r.stopOnce.Do(func() {
		r.firstErr = err
		close(r.stop)
	})
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// Execute runs a plan. Every instance gets a goroutine that waits on its
// dependencies' completion signals, so progress is driven by completion
// rather than polling; Parallelism only bounds the deployer calls.
//
// On failure the run stops admitting new deployments, lets in-flight ones
// finish, marks everything not yet started as aborted, and returns the
// first failure.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, params map[string]interface{}) (*Result, error) {
	start := time.Now()

	r := &run{
		store:   outputs.NewStore(),
		params:  params,
		results: make(map[string]*InstanceResult, len(plan.Steps)),
		stop:    make(chan struct{}),
		sem:     make(chan struct{}, e.options.Parallelism),
	}

	done := make(map[string]chan struct{}, len(plan.Steps))
	for _, step := range plan.Steps {
		done[step.Node.ID] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, step := range plan.Steps {
		wg.Add(1)
		go func(step *planner.Step) {
			defer wg.Done()
			defer close(done[step.Node.ID])

			result := e.executeStep(ctx, r, step, done)

			r.mu.Lock()
			r.results[step.Node.ID] = result
			r.mu.Unlock()

			if result.Status == StatusFailed {
				r.fail(result.Err)
			}
			if e.options.OnUpdate != nil {
				e.options.OnUpdate(step.Node.ID, result.Status)
			}
		}(step)
	}
	wg.Wait()

	result := &Result{
		Success:   true,
		Duration:  time.Since(start),
		Instances: r.results,
		Store:     r.store,
	}
	for _, ir := range r.results {
		if ir.Status == StatusFailed || ir.Status == StatusAborted {
			result.Success = false
		}
	}

	if r.firstErr != nil {
		return result, r.firstErr
	}
	if err := ctx.Err(); err != nil {
		result.Success = false
		return result, err
	}
	return result, nil
}

// executeStep drives one instance from waiting to a terminal state.
func (e *Executor) executeStep(ctx context.Context, r *run, step *planner.Step, done map[string]chan struct{}) *InstanceResult {
	id := step.Node.ID
	log := e.options.Logger.With("instance", id)

	// Dependencies finish before their consumers start; a skipped
	// dependency still counts as finished.
	for _, depID := range step.Node.DependsOn {
		ch, planned := done[depID]
		if !planned {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return &InstanceResult{Instance: id, Status: StatusAborted, Err: ctx.Err()}
		}

		r.mu.Lock()
		depResult := r.results[depID]
		r.mu.Unlock()
		if depResult != nil && (depResult.Status == StatusFailed || depResult.Status == StatusAborted) {
			return &InstanceResult{
				Instance: id,
				Status:   StatusAborted,
				Err:      fmt.Errorf("dependency %q did not complete", depID),
			}
		}
	}

	if r.stopped() {
		return &InstanceResult{Instance: id, Status: StatusAborted}
	}
	if err := ctx.Err(); err != nil {
		return &InstanceResult{Instance: id, Status: StatusAborted, Err: err}
	}

	scope := expr.Scope{Params: r.params, Outputs: r.store}

	// Deferred conditions are evaluated now, with producer outputs
	// available.
	if step.Condition != nil {
		active, err := expr.EvalBool(step.Condition, scope)
		if err != nil {
			return &InstanceResult{
				Instance: id,
				Status:   StatusFailed,
				Err: errors.Wrap(errors.ErrCodeExpression,
					fmt.Sprintf("failed to evaluate condition of instance %q", id), err),
			}
		}
		if !active {
			log.Debug("condition false, skipping")
			return &InstanceResult{Instance: id, Status: StatusSkipped}
		}
	}

	deployParams, err := resolveParams(step.Node, scope)
	if err != nil {
		return &InstanceResult{
			Instance: id,
			Status:   StatusFailed,
			Err:      errors.ExecutionError(id, err),
		}
	}

	// Bound parallelism applies to deployer work only, not to waiting.
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return &InstanceResult{Instance: id, Status: StatusAborted, Err: ctx.Err()}
	}
	defer func() { <-r.sem }()

	if r.stopped() {
		return &InstanceResult{Instance: id, Status: StatusAborted}
	}

	log.Info("deploying", "module", step.Node.Definition.Name)
	deployStart := time.Now()

	out, err := e.deployer.Deploy(ctx, deployer.Request{
		Name:   id,
		Source: step.Node.Definition.Source,
		Params: deployParams,
	})
	duration := time.Since(deployStart)

	if err != nil {
		log.Error("deployment failed", "error", err, "duration", duration)
		return &InstanceResult{
			Instance: id,
			Status:   StatusFailed,
			Err:      errors.ExecutionError(id, err),
			Duration: duration,
		}
	}

	if err := r.store.Publish(id, out); err != nil {
		return &InstanceResult{
			Instance: id,
			Status:   StatusFailed,
			Err:      errors.ExecutionError(id, err),
			Duration: duration,
		}
	}

	log.Info("deployed", "duration", duration)
	return &InstanceResult{
		Instance: id,
		Status:   StatusSucceeded,
		Outputs:  out,
		Duration: duration,
	}
}

// resolveParams evaluates an instance's parameter expressions and fills in
// declared defaults for parameters left unbound.
func resolveParams(node *graph.Node, scope expr.Scope) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(node.Instance.Params))
	for name, ex := range node.Instance.Params {
		val, err := expr.Eval(ex, scope)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		values[name] = val
	}

	for _, spec := range node.Definition.Parameters {
		if _, bound := values[spec.Name]; !bound && spec.Default != nil {
			values[spec.Name] = spec.Default
		}
	}

	return values, nil
}
