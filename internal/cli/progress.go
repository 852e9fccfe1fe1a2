package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/architect-io/stackctl/pkg/engine/executor"
)

// InstanceStatus represents the display status of a deployment instance.
type InstanceStatus string

const (
	StatusPending   InstanceStatus = "pending"
	StatusSucceeded InstanceStatus = "succeeded"
	StatusFailed    InstanceStatus = "failed"
	StatusSkipped   InstanceStatus = "skipped"
	StatusAborted   InstanceStatus = "aborted"
)

// instanceInfo holds progress tracking state for one instance.
type instanceInfo struct {
	Name    string
	Module  string
	Status  InstanceStatus
	EndTime time.Time
	Err     error
}

// ProgressTable displays deployment progress. It prints an initial plan,
// one line per status change, and a final summary.
type ProgressTable struct {
	mu        sync.Mutex
	instances map[string]*instanceInfo
	order     []string
	writer    io.Writer
	startTime time.Time
}

// NewProgressTable creates a new progress table.
func NewProgressTable(w io.Writer) *ProgressTable {
	return &ProgressTable{
		instances: make(map[string]*instanceInfo),
		order:     []string{},
		writer:    w,
		startTime: time.Now(),
	}
}

// AddInstance adds an instance to track.
func (p *ProgressTable) AddInstance(name, moduleName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.instances[name]; !exists {
		p.order = append(p.order, name)
	}

	p.instances[name] = &instanceInfo{
		Name:   name,
		Module: moduleName,
		Status: StatusPending,
	}
}

// PrintInitial prints the deployment plan.
func (p *ProgressTable) PrintInitial() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, "Deployment plan:")
	fmt.Fprintln(p.writer, strings.Repeat("─", 60))

	for _, name := range p.order {
		inst := p.instances[name]
		fmt.Fprintf(p.writer, "  + %-24s (module %s)\n", inst.Name, inst.Module)
	}

	fmt.Fprintln(p.writer, strings.Repeat("─", 60))
	fmt.Fprintf(p.writer, "Total: %d deployments\n", len(p.order))
	fmt.Fprintln(p.writer)
}

// Update records a terminal executor status for an instance and prints a line.
func (p *ProgressTable) Update(name string, status executor.Status, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[name]
	if !ok {
		return
	}

	inst.Status = displayStatus(status)
	inst.EndTime = time.Now()
	inst.Err = err

	switch inst.Status {
	case StatusSucceeded:
		fmt.Fprintf(p.writer, "%s %s deployed\n", statusIcon(inst.Status), name)
	case StatusFailed:
		line := fmt.Sprintf("%s %s failed", statusIcon(inst.Status), name)
		if err != nil {
			line += fmt.Sprintf(": %v", err)
		}
		fmt.Fprintln(p.writer, line)
	case StatusSkipped:
		fmt.Fprintf(p.writer, "%s %s skipped (condition false)\n", statusIcon(inst.Status), name)
	case StatusAborted:
		fmt.Fprintf(p.writer, "%s %s aborted\n", statusIcon(inst.Status), name)
	}
}

// PrintFinalSummary prints the final deployment summary.
func (p *ProgressTable) PrintFinalSummary() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var succeeded, failed, skipped, aborted int
	for _, inst := range p.instances {
		switch inst.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusAborted:
			aborted++
		}
	}

	elapsed := time.Since(p.startTime).Round(time.Millisecond)

	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, strings.Repeat("─", 60))

	if failed > 0 || aborted > 0 {
		fmt.Fprintf(p.writer, "Deployment completed with errors in %s\n", elapsed)
		fmt.Fprintf(p.writer, "  ● %d succeeded, ✗ %d failed, ◌ %d skipped, − %d aborted\n",
			succeeded, failed, skipped, aborted)

		fmt.Fprintln(p.writer, "\nFailed deployments:")
		for _, name := range p.order {
			inst := p.instances[name]
			if inst.Status != StatusFailed {
				continue
			}
			fmt.Fprintf(p.writer, "  ✗ %s", inst.Name)
			if inst.Err != nil {
				fmt.Fprintf(p.writer, ": %v", inst.Err)
			}
			fmt.Fprintln(p.writer)
		}
	} else {
		fmt.Fprintf(p.writer, "Deployment completed successfully in %s\n", elapsed)
		summary := fmt.Sprintf("  ● %d deployed", succeeded)
		if skipped > 0 {
			summary += fmt.Sprintf(", ◌ %d skipped", skipped)
		}
		fmt.Fprintln(p.writer, summary)
	}
}

// RecordError attaches an error to an instance for the final summary
// without printing a status line.
func (p *ProgressTable) RecordError(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if inst, ok := p.instances[name]; ok {
		inst.Err = err
	}
}

func displayStatus(status executor.Status) InstanceStatus {
	switch status {
	case executor.StatusSucceeded:
		return StatusSucceeded
	case executor.StatusFailed:
		return StatusFailed
	case executor.StatusSkipped:
		return StatusSkipped
	case executor.StatusAborted:
		return StatusAborted
	default:
		return StatusPending
	}
}

func statusIcon(status InstanceStatus) string {
	switch status {
	case StatusPending:
		return "○"
	case StatusSucceeded:
		return "●"
	case StatusFailed:
		return "✗"
	case StatusSkipped:
		return "◌"
	case StatusAborted:
		return "−"
	default:
		return "?"
	}
}
