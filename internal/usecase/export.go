package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/estimator"
	"github.com/semmidev/harmony/internal/validation"
)

const kindExport = "export"

type ExportOptions struct {
	// Retention is how long a finished export stays downloadable.
	Retention time.Duration
	BatchSize int
}

// Export runs one-shot exports of filtered content.
type Export struct {
	repo    domain.ExportRepository
	content domain.ContentStore
	storage domain.ArtifactStorage
	logger  Logger
	metrics Metrics
	opts    ExportOptions
	running slots
	now     func() time.Time
}

func NewExport(repo domain.ExportRepository, content domain.ContentStore, storage domain.ArtifactStorage, logger Logger, opts ExportOptions) *Export {
	if opts.Retention <= 0 {
		opts.Retention = domain.ExportRetention
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Export{
		repo:    repo,
		content: content,
		storage: storage,
		logger:  logger,
		metrics: nopMetrics{},
		opts:    opts,
		now:     time.Now,
	}
}

func (e *Export) UseMetrics(m Metrics) {
	e.metrics = metricsOrNop(m)
}

// CreateExportJob stores a pending export with its size estimate.
func (e *Export) CreateExportJob(ctx context.Context, auth domain.AuthContext, draft domain.ExportJob) (*domain.ExportJob, error) {
	if err := authorize(auth, resourceExports, actionCreate); err != nil {
		return nil, err
	}
	if v := validation.ValidateExportJob(draft); !v.IsValid {
		return nil, &domain.ValidationError{Validation: v}
	}

	job := draft
	job.ID = uuid.NewString()
	job.ContentTypes = domain.SortContentTypes(draft.ContentTypes)
	job.Status = domain.ExecutionPending
	job.Progress = 0
	job.EstimatedSize = estimator.EstimateSize(job.ContentTypes, "")
	job.ActualSize, job.RecordCount = 0, 0
	job.Filename, job.DownloadURL, job.ErrorMessage = "", "", ""
	job.ExpiresAt, job.CompletedAt = nil, nil
	job.CreatedBy = auth.CurrentUserID()
	job.CreatedAt = e.now()

	if err := e.repo.CreateExportJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	e.logger.Infof("[%s] Export job created, estimated %s", job.Name, estimator.FormatSize(job.EstimatedSize))
	return &job, nil
}

func (e *Export) GetExportJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	return e.repo.GetExportJob(ctx, id)
}

// RunExportJob executes a pending export synchronously. A failure is
// recorded on the returned job rather than returned.
func (e *Export) RunExportJob(ctx context.Context, auth domain.AuthContext, id string) (*domain.ExportJob, error) {
	if err := authorize(auth, resourceExports, actionCreate); err != nil {
		return nil, err
	}
	job, err := e.repo.GetExportJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.running.acquire(job.ID) {
		return nil, &domain.ConcurrentExecutionError{JobID: job.ID}
	}
	defer e.running.release(job.ID)

	if err := domain.Transition(&job.Status, domain.ExecutionRunning); err != nil {
		return nil, err
	}
	if err := e.repo.UpdateExportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update export job: %w", err)
	}

	started := e.now()
	e.logger.Infof("[%s] Starting export...", job.Name)

	runErr := e.produce(ctx, job, started)

	persist := detached(ctx)
	done := e.now()
	job.CompletedAt = &done
	switch {
	case runErr == nil:
		settle(e.logger, job.Name, &job.Status, domain.ExecutionCompleted)
		job.Progress = 100
		expires := done.Add(e.opts.Retention)
		job.ExpiresAt = &expires
		e.metrics.AddArtifactBytes(kindExport, job.ActualSize)
		e.logger.Infof("[%s] Export completed: %s (%d record(s), %s)", job.Name, job.Filename, job.RecordCount, estimator.FormatSize(job.ActualSize))
	case failedStatus(runErr) == domain.ExecutionCancelled:
		settle(e.logger, job.Name, &job.Status, domain.ExecutionCancelled)
		e.logger.Warnf("[%s] Export cancelled", job.Name)
	default:
		settle(e.logger, job.Name, &job.Status, domain.ExecutionError)
		job.ErrorMessage = (&domain.RunError{Op: kindExport, Err: runErr}).Error()
		e.logger.Errorf("[%s] Export failed: %v", job.Name, runErr)
	}
	e.metrics.ObserveExecution(kindExport, string(job.Status), done.Sub(started))

	if err := e.repo.UpdateExportJob(persist, job); err != nil {
		return nil, fmt.Errorf("update export job: %w", err)
	}
	return job, nil
}

func (e *Export) produce(ctx context.Context, job *domain.ExportJob, started time.Time) error {
	c, err := codec.For(job.Format)
	if err != nil {
		return err
	}

	ds := codec.Dataset{Version: codec.DatasetVersion, Collections: make([]codec.Collection, 0, len(job.ContentTypes))}
	for i, ct := range job.ContentTypes {
		col := codec.Collection{ContentType: ct, Records: []domain.Record{}}
		err := e.content.StreamRecords(ctx, ct, e.opts.BatchSize, func(batch []domain.Record) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, rec := range batch {
				if matchesExport(rec, job) {
					col.Records = append(col.Records, project(rec, job.IncludeFields, job.ExcludeFields))
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("read %s: %w", ct, err)
		}
		ds.Collections = append(ds.Collections, col)
		job.Progress = domain.ProgressOf(i+1, len(job.ContentTypes))
	}

	payload, err := c.Encode(ds)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	filename := artifactName("exports", job.Name+" "+shortID(job.ID), started, c.Extension())
	url, err := e.storage.Put(ctx, filename, payload)
	if err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	job.Filename = filename
	job.DownloadURL = url
	job.ActualSize = int64(len(payload))
	job.RecordCount = ds.RecordCount()
	return nil
}
