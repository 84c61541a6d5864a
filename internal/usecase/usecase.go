// Package usecase drives backup, export, import and migration jobs
// through their lifecycle.
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Metrics receives job outcomes. A nil Metrics is replaced by a no-op.
type Metrics interface {
	ObserveExecution(kind, status string, d time.Duration)
	AddArtifactBytes(kind string, n int64)
	AddPurged(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveExecution(string, string, time.Duration) {}
func (nopMetrics) AddArtifactBytes(string, int64)                 {}
func (nopMetrics) AddPurged(int)                                  {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// Resources and actions checked against the caller's AuthContext.
const (
	resourceSettings = "settings"
	resourceContent  = "content"
	resourceExports  = "exports"

	actionRead   = "read"
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"
)

// authorize fails fast before any state is touched.
func authorize(auth domain.AuthContext, resource, action string) error {
	if auth == nil {
		return &domain.PermissionDeniedError{Resource: resource, Action: action}
	}
	if !auth.HasPermission(resource, action) {
		return &domain.PermissionDeniedError{UserID: auth.CurrentUserID(), Resource: resource, Action: action}
	}
	return nil
}

// UploadTarget is a remote copy destination for artifacts.
type UploadTarget struct {
	Name    string
	Storage domain.ArtifactStorage
}

// contentLockKey names the write lock of one content type in one
// environment.
func contentLockKey(environment string, ct domain.ContentType) string {
	return "content:" + environment + ":" + string(ct)
}

func contentLockKeys(environment string, types []domain.ContentType) []string {
	keys := make([]string, 0, len(types))
	for _, ct := range types {
		keys = append(keys, contentLockKey(environment, ct))
	}
	return keys
}

// detached keeps ctx values but outlives the caller, for work that must
// finish once started.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// failedStatus is the terminal status of a run that ended with err. A run
// whose context was cancelled is cancelled, not failed.
func failedStatus(err error) domain.ExecutionStatus {
	if errors.Is(err, context.Canceled) {
		return domain.ExecutionCancelled
	}
	return domain.ExecutionError
}

// settle moves status to next and logs a move the lifecycle refuses.
func settle(logger Logger, name string, status *domain.ExecutionStatus, next domain.ExecutionStatus) {
	if err := domain.Transition(status, next); err != nil {
		logger.Errorf("[%s] %v", name, err)
	}
}

// slots holds the single execution slot of one-shot jobs. The zero value
// is ready to use.
type slots struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (s *slots) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[string]struct{})
	}
	if _, busy := s.held[id]; busy {
		return false
	}
	s.held[id] = struct{}{}
	return true
}

func (s *slots) release(id string) {
	s.mu.Lock()
	delete(s.held, id)
	s.mu.Unlock()
}
