// Package types defines the data structures for stackctl run state.
package types

import (
	"time"
)

// RunStatus represents the overall status of a deployment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// InstanceStatus represents the terminal state of one instance in a run.
type InstanceStatus string

const (
	InstanceStatusSucceeded InstanceStatus = "succeeded"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusSkipped   InstanceStatus = "skipped"
	InstanceStatusAborted   InstanceStatus = "aborted"
)

// RunRecord represents one deployment run of a stack.
type RunRecord struct {
	// Metadata
	ID         string    `json:"id"`
	Stack      string    `json:"stack"`
	Source     string    `json:"source,omitempty"` // stack file path or reference
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Status
	Status       RunStatus `json:"status"`
	StatusReason string    `json:"status_reason,omitempty"`

	// Params are the resolved stack parameter values for this run.
	Params map[string]interface{} `json:"params,omitempty"`

	// Instances holds per-instance results, keyed by deployment name.
	Instances map[string]*InstanceRecord `json:"instances,omitempty"`

	// Outputs are the selected stack-level outputs of a successful run.
	Outputs map[string]interface{} `json:"outputs,omitempty"`
}

// InstanceRecord represents the outcome of one instance in a run.
type InstanceRecord struct {
	Name     string         `json:"name"`
	Module   string         `json:"module"`
	Status   InstanceStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ns,omitempty"`

	// Outputs published by the instance's deployment.
	Outputs map[string]interface{} `json:"outputs,omitempty"`
}
