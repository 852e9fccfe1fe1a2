// Package errors provides structured error types for stackctl.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeUnknownModule      ErrorCode = "UNKNOWN_MODULE"
	ErrCodeUnknownOutput      ErrorCode = "UNKNOWN_OUTPUT"
	ErrCodeDanglingReference  ErrorCode = "DANGLING_REFERENCE"
	ErrCodeCyclicDependency   ErrorCode = "CYCLIC_DEPENDENCY"
	ErrCodeInactiveDependency ErrorCode = "INACTIVE_DEPENDENCY"
	ErrCodeUnresolvedOutput   ErrorCode = "UNRESOLVED_OUTPUT"
	ErrCodeExpression         ErrorCode = "EXPRESSION_ERROR"
	ErrCodeExecution          ErrorCode = "EXECUTION_ERROR"
	ErrCodeDeployer           ErrorCode = "DEPLOYER_ERROR"
	ErrCodeBackend            ErrorCode = "BACKEND_ERROR"
	ErrCodeLocked             ErrorCode = "STATE_LOCKED"
)

// Error is the base error type for stackctl
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// UnknownModuleError indicates a reference to a module instance that does not
// exist in the current scope.
func UnknownModuleError(consumer, instance string) *Error {
	return &Error{
		Code:    ErrCodeUnknownModule,
		Message: fmt.Sprintf("instance %q references unknown module instance %q", consumer, instance),
		Details: map[string]interface{}{
			"consumer": consumer,
			"instance": instance,
		},
	}
}

// UnknownOutputError indicates a reference to an output not declared by the
// referenced instance's module definition.
func UnknownOutputError(consumer, instance, output string) *Error {
	return &Error{
		Code:    ErrCodeUnknownOutput,
		Message: fmt.Sprintf("instance %q references undeclared output %q of instance %q", consumer, output, instance),
		Details: map[string]interface{}{
			"consumer": consumer,
			"instance": instance,
			"output":   output,
		},
	}
}

// DanglingReferenceError aggregates every broken reference found while
// building a graph, so a user sees all of them in one pass.
func DanglingReferenceError(causes []*Error) *Error {
	msgs := make([]string, len(causes))
	for i, c := range causes {
		msgs[i] = c.Message
	}
	return &Error{
		Code:    ErrCodeDanglingReference,
		Message: fmt.Sprintf("%d unresolved reference(s):\n  - %s", len(causes), strings.Join(msgs, "\n  - ")),
		Details: map[string]interface{}{
			"count": len(causes),
		},
	}
}

// CyclicDependencyError reports a dependency cycle with the full cycle path
// (first node repeated at the end), not just the endpoints.
func CyclicDependencyError(path []string) *Error {
	return &Error{
		Code:    ErrCodeCyclicDependency,
		Message: fmt.Sprintf("dependency cycle detected: %s", strings.Join(path, " -> ")),
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// InactiveDependencyError indicates an active instance depends on an output
// of an instance whose condition makes it inactive.
func InactiveDependencyError(consumer, producer string) *Error {
	return &Error{
		Code:    ErrCodeInactiveDependency,
		Message: fmt.Sprintf("instance %q depends on inactive instance %q, which will not produce outputs", consumer, producer),
		Details: map[string]interface{}{
			"consumer": consumer,
			"producer": producer,
		},
	}
}

// UnresolvedOutputError indicates a selected output source was never executed.
func UnresolvedOutputError(instance, output string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedOutput,
		Message: fmt.Sprintf("output %q of instance %q was never resolved (the instance did not run)", output, instance),
		Details: map[string]interface{}{
			"instance": instance,
			"output":   output,
		},
	}
}

// MissingOutputError indicates an instance ran but did not publish the
// named output.
func MissingOutputError(instance, output string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedOutput,
		Message: fmt.Sprintf("instance %q ran but published no output %q", instance, output),
		Details: map[string]interface{}{
			"instance": instance,
			"output":   output,
		},
	}
}

// ExecutionError wraps a Deployer failure for a specific instance.
func ExecutionError(instance string, cause error) *Error {
	return &Error{
		Code:    ErrCodeExecution,
		Message: fmt.Sprintf("deployment of instance %q failed", instance),
		Cause:   cause,
		Details: map[string]interface{}{
			"instance": instance,
		},
	}
}

// ParseError creates a parse error
func ParseError(filePath string, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", filePath),
		Cause:   err,
		Details: map[string]interface{}{
			"file": filePath,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// Is checks if the error matches the given code
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
