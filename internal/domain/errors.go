package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConcurrentExecution = errors.New("job already has a running execution")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDryRun              = errors.New("dry-run jobs cannot be committed")
	ErrNotRunning          = errors.New("execution is not running")
)

// ValidationError carries every field-level problem of a rejected draft.
type ValidationError struct {
	Validation Validation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Validation.Errors))
	for _, issue := range e.Validation.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type PermissionDeniedError struct {
	UserID   string
	Resource string
	Action   string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %q may not %s %s", e.UserID, e.Action, e.Resource)
}

func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// ConcurrentExecutionError names the execution holding the job's slot.
type ConcurrentExecutionError struct {
	JobID       string
	ExecutionID string
}

func (e *ConcurrentExecutionError) Error() string {
	return fmt.Sprintf("job %s: execution %s is still running", e.JobID, e.ExecutionID)
}

func (e *ConcurrentExecutionError) Is(target error) bool {
	return target == ErrConcurrentExecution
}

// IntegrityError reports the failing sub-check of an artifact.
type IntegrityError struct {
	Check  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check %s failed: %s", e.Check, e.Detail)
}

// RunError is a transient failure while a job runs.
type RunError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *RunError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: execution timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
