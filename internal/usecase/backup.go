package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/schedule"
	"github.com/semmidev/harmony/internal/validation"
)

const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

var (
	errCancelled = errors.New("cancelled by request")
	errTimedOut  = errors.New("execution exceeded its time limit")
	errShutdown  = errors.New("service shutting down")
)

// JobScheduler is the cron runner kept in sync with the job catalog.
type JobScheduler interface {
	Schedule(key string, sched cron.Schedule, job func(context.Context) error)
	Remove(key string)
}

type BackupOptions struct {
	Format            domain.Format
	BatchSize         int
	Timeout           time.Duration
	SourceEnvironment string
}

// Backup manages backup jobs and runs their executions. Each job holds at
// most one running execution at a time.
type Backup struct {
	repo     domain.BackupRepository
	content  domain.ContentStore
	storage  domain.ArtifactStorage
	targets  []UploadTarget
	packer   *Packer
	logger   Logger
	metrics  Metrics
	opts     BackupOptions
	now      func() time.Time
	notifier domain.Notifier

	notifyFailuresOnly bool
	scheduler          JobScheduler
	system             domain.AuthContext

	base    context.Context
	stop    context.CancelCauseFunc
	mu      sync.Mutex
	closed  bool
	running map[string]*activeRun
	wg      sync.WaitGroup
}

type activeRun struct {
	execID string
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func NewBackup(
	repo domain.BackupRepository,
	content domain.ContentStore,
	storage domain.ArtifactStorage,
	packer *Packer,
	logger Logger,
	opts BackupOptions,
) *Backup {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Format == "" {
		opts.Format = domain.FormatJSON
	}
	base, stop := context.WithCancelCause(context.Background())
	return &Backup{
		repo:    repo,
		content: content,
		storage: storage,
		packer:  packer,
		logger:  logger,
		metrics: nopMetrics{},
		opts:    opts,
		now:     time.Now,
		base:    base,
		stop:    stop,
		running: make(map[string]*activeRun),
	}
}

// UseTargets mirrors every new artifact to the given remote targets.
func (b *Backup) UseTargets(targets []UploadTarget) {
	b.targets = targets
}

func (b *Backup) UseNotifier(n domain.Notifier, failuresOnly bool) {
	b.notifier = n
	b.notifyFailuresOnly = failuresOnly
}

func (b *Backup) UseMetrics(m Metrics) {
	b.metrics = metricsOrNop(m)
}

// UseScheduler registers schedulable jobs with s. Scheduled runs act as
// system.
func (b *Backup) UseScheduler(s JobScheduler, system domain.AuthContext) {
	b.scheduler = s
	b.system = system
}

func (b *Backup) CreateBackupJob(ctx context.Context, auth domain.AuthContext, draft domain.BackupJob) (*domain.BackupJob, error) {
	if err := authorize(auth, resourceSettings, actionCreate); err != nil {
		return nil, err
	}
	if v := validation.ValidateBackupJob(draft); !v.IsValid {
		return nil, &domain.ValidationError{Validation: v}
	}

	now := b.now()
	job := draft
	job.ID = uuid.NewString()
	job.ContentTypes = domain.SortContentTypes(draft.ContentTypes)
	if job.Status != domain.JobPaused {
		job.Status = domain.JobActive
	}
	job.LastRun, job.LastSuccess = nil, nil
	job.LastError = ""
	job.CreatedBy = auth.CurrentUserID()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.NextRun = nextRun(&job, now)

	if err := b.repo.CreateBackupJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create backup job: %w", err)
	}
	b.sync(&job)

	b.logger.Infof("[%s] Backup job created (%s)", job.Name, schedule.Describe(job.Schedule))
	return &job, nil
}

func (b *Backup) UpdateBackupJob(ctx context.Context, auth domain.AuthContext, id string, draft domain.BackupJob) (*domain.BackupJob, error) {
	if err := authorize(auth, resourceSettings, actionUpdate); err != nil {
		return nil, err
	}
	if v := validation.ValidateBackupJob(draft); !v.IsValid {
		return nil, &domain.ValidationError{Validation: v}
	}
	job, err := b.repo.GetBackupJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := b.now()
	job.Name = draft.Name
	job.Description = draft.Description
	job.Type = draft.Type
	job.ContentTypes = domain.SortContentTypes(draft.ContentTypes)
	job.Schedule = draft.Schedule
	job.RetentionDays = draft.RetentionDays
	job.MaxBackups = draft.MaxBackups
	job.CompressionEnabled = draft.CompressionEnabled
	job.EncryptionEnabled = draft.EncryptionEnabled
	job.UpdatedAt = now
	job.NextRun = nextRun(job, now)

	if err := b.repo.UpdateBackupJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update backup job: %w", err)
	}
	b.sync(job)

	b.logger.Infof("[%s] Backup job updated", job.Name)
	return job, nil
}

// SetBackupJobStatus pauses or resumes a job. Resuming a job in error
// clears the error status but keeps lastError until the next success.
func (b *Backup) SetBackupJobStatus(ctx context.Context, auth domain.AuthContext, id string, status domain.JobStatus) (*domain.BackupJob, error) {
	if err := authorize(auth, resourceSettings, actionUpdate); err != nil {
		return nil, err
	}
	if status != domain.JobActive && status != domain.JobPaused {
		v := domain.Validation{IsValid: true}
		v.AddError("status", fmt.Sprintf("Status can only be set to %s or %s", domain.JobActive, domain.JobPaused))
		return nil, &domain.ValidationError{Validation: v}
	}
	job, err := b.repo.GetBackupJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := b.now()
	job.Status = status
	job.UpdatedAt = now
	job.NextRun = nextRun(job, now)

	if err := b.repo.UpdateBackupJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update backup job: %w", err)
	}
	b.sync(job)

	b.logger.Infof("[%s] Backup job is now %s", job.Name, status)
	return job, nil
}

// DeleteBackupJob removes the job definition. Its files and executions
// remain as history.
func (b *Backup) DeleteBackupJob(ctx context.Context, auth domain.AuthContext, id string) error {
	if err := authorize(auth, resourceSettings, actionDelete); err != nil {
		return err
	}
	job, err := b.repo.GetBackupJob(ctx, id)
	if err != nil {
		return err
	}

	b.mu.Lock()
	r, busy := b.running[job.ID]
	b.mu.Unlock()
	if busy {
		return &domain.ConcurrentExecutionError{JobID: job.ID, ExecutionID: r.execID}
	}

	if err := b.repo.DeleteBackupJob(ctx, job.ID); err != nil {
		return fmt.Errorf("delete backup job: %w", err)
	}
	if b.scheduler != nil {
		b.scheduler.Remove(job.ID)
	}

	b.logger.Infof("[%s] Backup job deleted", job.Name)
	return nil
}

func (b *Backup) GetBackupJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return b.repo.GetBackupJob(ctx, id)
}

func (b *Backup) ListBackupJobs(ctx context.Context) ([]domain.BackupJob, error) {
	return b.repo.ListBackupJobs(ctx)
}

func (b *Backup) ListExecutions(ctx context.Context, jobID string) ([]domain.BackupExecution, error) {
	if _, err := b.repo.GetBackupJob(ctx, jobID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return b.repo.ListExecutions(ctx, jobID)
}

// ReconcileJobs creates or updates the given drafts by name.
func (b *Backup) ReconcileJobs(ctx context.Context, auth domain.AuthContext, drafts []domain.BackupJob) error {
	existing, err := b.repo.ListBackupJobs(ctx)
	if err != nil {
		return fmt.Errorf("list backup jobs: %w", err)
	}
	byName := make(map[string]domain.BackupJob, len(existing))
	for _, j := range existing {
		byName[j.Name] = j
	}

	var errs []error
	for _, draft := range drafts {
		if current, ok := byName[draft.Name]; ok {
			if _, err := b.UpdateBackupJob(ctx, auth, current.ID, draft); err != nil {
				errs = append(errs, fmt.Errorf("job %s: %w", draft.Name, err))
			}
			continue
		}
		if _, err := b.CreateBackupJob(ctx, auth, draft); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", draft.Name, err))
		}
	}
	return errors.Join(errs...)
}

// SyncSchedules registers every schedulable job with the scheduler and
// refreshes stale nextRun values.
func (b *Backup) SyncSchedules(ctx context.Context) error {
	jobs, err := b.repo.ListBackupJobs(ctx)
	if err != nil {
		return fmt.Errorf("list backup jobs: %w", err)
	}

	now := b.now()
	for i := range jobs {
		job := &jobs[i]
		next := nextRun(job, now)
		if !sameInstant(job.NextRun, next) {
			job.NextRun = next
			if err := b.repo.UpdateBackupJob(ctx, job); err != nil {
				return fmt.Errorf("update next run of %s: %w", job.Name, err)
			}
		}
		b.sync(job)
	}
	return nil
}

func (b *Backup) sync(job *domain.BackupJob) {
	if b.scheduler == nil {
		return
	}
	if !job.Schedulable() {
		b.scheduler.Remove(job.ID)
		return
	}
	id := job.ID
	b.scheduler.Schedule(id, schedule.Cron{Schedule: job.Schedule}, func(ctx context.Context) error {
		_, err := b.RunBackupJob(ctx, b.system, id, TriggerSchedule)
		return err
	})
}

// nextRun is nil for jobs the scheduler ignores or whose schedule cannot
// fire.
func nextRun(job *domain.BackupJob, now time.Time) *time.Time {
	if !job.Schedulable() {
		return nil
	}
	next, err := schedule.NextRun(job.Schedule, now)
	if err != nil {
		return nil
	}
	return &next
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// RunBackupJob starts an execution in the background and returns it in the
// running state.
func (b *Backup) RunBackupJob(ctx context.Context, auth domain.AuthContext, jobID, trigger string) (*domain.BackupExecution, error) {
	if err := authorize(auth, resourceSettings, actionUpdate); err != nil {
		return nil, err
	}
	job, err := b.repo.GetBackupJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errShutdown
	}
	if r, ok := b.running[job.ID]; ok {
		b.mu.Unlock()
		return nil, &domain.ConcurrentExecutionError{JobID: job.ID, ExecutionID: r.execID}
	}
	runCtx, cancel := context.WithCancelCause(b.base)
	r := &activeRun{execID: uuid.NewString(), cancel: cancel, done: make(chan struct{})}
	b.running[job.ID] = r
	b.wg.Add(1)
	b.mu.Unlock()

	exec := &domain.BackupExecution{
		ID:      r.execID,
		JobID:   job.ID,
		Status:  domain.ExecutionPending,
		Trigger: trigger,
		Logs:    []domain.ExecutionLog{},
	}
	now := b.now()
	if err := exec.Start(now); err != nil {
		cancel(nil)
		b.release(job.ID, r)
		return nil, err
	}
	exec.Log(domain.LogInfo, now, "Backup started by %s (%s)", auth.CurrentUserID(), trigger)

	if err := b.repo.CreateExecution(ctx, exec); err != nil {
		cancel(nil)
		b.release(job.ID, r)
		return nil, fmt.Errorf("create execution: %w", err)
	}

	snapshot := *exec
	snapshot.Logs = slices.Clone(exec.Logs)

	b.logger.Infof("[%s] Starting backup...", job.Name)
	go b.execute(runCtx, r, job, exec)

	return &snapshot, nil
}

func (b *Backup) release(jobID string, r *activeRun) {
	b.mu.Lock()
	delete(b.running, jobID)
	b.mu.Unlock()
	close(r.done)
	b.wg.Done()
}

func (b *Backup) runOf(execID string) *activeRun {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.running {
		if r.execID == execID {
			return r
		}
	}
	return nil
}

// WaitExecution blocks until the execution is terminal or ctx is done.
func (b *Backup) WaitExecution(ctx context.Context, execID string) (*domain.BackupExecution, error) {
	if r := b.runOf(execID); r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.repo.GetExecution(ctx, execID)
}

// CancelExecution asks a running execution to stop at its next batch
// boundary.
func (b *Backup) CancelExecution(ctx context.Context, auth domain.AuthContext, execID string) error {
	if err := authorize(auth, resourceSettings, actionUpdate); err != nil {
		return err
	}
	if r := b.runOf(execID); r != nil {
		r.cancel(errCancelled)
		return nil
	}
	exec, err := b.repo.GetExecution(ctx, execID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", domain.ErrNotRunning, exec.ID, exec.Status)
}

// Shutdown cancels running executions and waits for them to record their
// terminal state.
func (b *Backup) Shutdown() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.stop(errShutdown)
	b.wg.Wait()
}
