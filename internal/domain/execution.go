package domain

import (
	"fmt"
	"time"
)

// ExecutionStatus is shared by backup executions and the one-shot export,
// import and migration jobs.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionError     ExecutionStatus = "error"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionError || s == ExecutionCancelled
}

// CanTransitionTo encodes pending -> running -> {completed|error|cancelled}.
// A pending run may also be cancelled or fail before it starts.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionPending:
		return next == ExecutionRunning || next == ExecutionCancelled || next == ExecutionError
	case ExecutionRunning:
		return next == ExecutionCompleted || next == ExecutionError || next == ExecutionCancelled
	default:
		return false
	}
}

// TransitionError is returned for a state change the lifecycle forbids.
type TransitionError struct {
	From ExecutionStatus
	To   ExecutionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Transition validates and applies a status change.
func Transition(current *ExecutionStatus, next ExecutionStatus) error {
	if !current.CanTransitionTo(next) {
		return &TransitionError{From: *current, To: next}
	}
	*current = next
	return nil
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

type ExecutionLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// BackupExecution is one run of a BackupJob.
type BackupExecution struct {
	ID               string          `json:"id"`
	JobID            string          `json:"jobId"`
	BackupFileID     string          `json:"backupFileId,omitempty"`
	StartTime        time.Time       `json:"startTime"`
	EndTime          *time.Time      `json:"endTime,omitempty"`
	Duration         time.Duration   `json:"duration,omitempty"`
	Status           ExecutionStatus `json:"status"`
	Progress         int             `json:"progress"`
	RecordsProcessed int             `json:"recordsProcessed"`
	TotalRecords     int             `json:"totalRecords"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	Trigger          string          `json:"trigger,omitempty"`
	Logs             []ExecutionLog  `json:"logs"`
}

// Log appends an entry. Entries never go backwards in time even if the
// supplied clock does.
func (e *BackupExecution) Log(level LogLevel, at time.Time, format string, args ...any) {
	if n := len(e.Logs); n > 0 && at.Before(e.Logs[n-1].Timestamp) {
		at = e.Logs[n-1].Timestamp
	}
	e.Logs = append(e.Logs, ExecutionLog{
		Timestamp: at,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	})
}

// Advance records processed records and recomputes progress. Progress never
// decreases and stays below 100 until Complete.
func (e *BackupExecution) Advance(processed, total int) {
	e.RecordsProcessed = processed
	e.TotalRecords = total
	e.Progress = max(e.Progress, ProgressOf(processed, total))
}

func (e *BackupExecution) Start(at time.Time) error {
	if err := Transition(&e.Status, ExecutionRunning); err != nil {
		return err
	}
	e.StartTime = at
	return nil
}

func (e *BackupExecution) Complete(at time.Time, fileID string) error {
	if err := Transition(&e.Status, ExecutionCompleted); err != nil {
		return err
	}
	e.Progress = 100
	e.BackupFileID = fileID
	e.finish(at)
	return nil
}

func (e *BackupExecution) Fail(at time.Time, message string) error {
	if err := Transition(&e.Status, ExecutionError); err != nil {
		return err
	}
	e.ErrorMessage = message
	e.finish(at)
	return nil
}

func (e *BackupExecution) Cancel(at time.Time) error {
	if err := Transition(&e.Status, ExecutionCancelled); err != nil {
		return err
	}
	e.finish(at)
	return nil
}

func (e *BackupExecution) finish(at time.Time) {
	e.EndTime = &at
	e.Duration = at.Sub(e.StartTime)
}

// ProgressOf maps processed/total onto 0..99. Reaching 100 is reserved for
// the completed state.
func ProgressOf(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	p := processed * 100 / total
	return min(p, 99)
}
