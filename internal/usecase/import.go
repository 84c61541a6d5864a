package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/validation"
)

const (
	kindImport = "import"

	previewSampleSize = 5
)

// Import loads uploaded files into the content store of one environment.
type Import struct {
	repo        domain.ImportRepository
	content     domain.ContentStore
	storage     domain.ArtifactStorage
	locks       domain.Locker
	environment string
	logger      Logger
	metrics     Metrics
	now         func() time.Time
	running     slots
}

func NewImport(
	repo domain.ImportRepository,
	content domain.ContentStore,
	storage domain.ArtifactStorage,
	locks domain.Locker,
	environment string,
	logger Logger,
) *Import {
	return &Import{
		repo:        repo,
		content:     content,
		storage:     storage,
		locks:       locks,
		environment: environment,
		logger:      logger,
		metrics:     nopMetrics{},
		now:         time.Now,
	}
}

func (i *Import) UseMetrics(m Metrics) {
	i.metrics = metricsOrNop(m)
}

// decodeImport parses raw into the records of ct. Plain files decode into
// a single untyped collection, which is taken as ct.
func decodeImport(raw []byte, format domain.Format, ct domain.ContentType) ([]domain.Record, error) {
	c, err := codec.For(format)
	if err != nil {
		return nil, err
	}
	ds, err := c.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s file: %w", format, err)
	}

	var records []domain.Record
	for _, col := range ds.Collections {
		if col.ContentType == ct || col.ContentType == "" {
			records = append(records, col.Records...)
		}
	}
	return records, nil
}

// GenerateImportPreview classifies every row of raw without writing.
// Duplicates are rows whose id exists in the store or earlier in the file.
func (i *Import) GenerateImportPreview(ctx context.Context, raw []byte, format domain.Format, ct domain.ContentType) (*domain.ImportPreview, error) {
	records, err := decodeImport(raw, format, ct)
	if err != nil {
		return nil, err
	}

	preview := &domain.ImportPreview{
		TotalRecords: len(records),
		Errors:       []domain.RowError{},
		SampleData:   []domain.Record{},
	}
	seen := make(map[string]bool, len(records))
	for n, rec := range records {
		row := n + 1
		if len(preview.SampleData) < previewSampleSize {
			preview.SampleData = append(preview.SampleData, rec)
		}

		if missing := rec.MissingFields(ct); len(missing) > 0 {
			preview.InvalidRecords++
			for _, field := range missing {
				preview.Errors = append(preview.Errors, domain.RowError{
					Row:     row,
					Field:   field,
					Message: fmt.Sprintf("Missing required field %q", field),
					Data:    rec,
				})
			}
			continue
		}
		preview.ValidRecords++

		id := rec.ID()
		if id == "" {
			preview.NewRecords++
			continue
		}
		duplicate := seen[id]
		if !duplicate {
			_, found, err := i.content.Get(ctx, ct, id)
			if err != nil {
				return nil, fmt.Errorf("look up %s %s: %w", ct, id, err)
			}
			duplicate = found
		}
		seen[id] = true
		if duplicate {
			preview.DuplicateRecords++
		} else {
			preview.NewRecords++
		}
	}
	return preview, nil
}

// CreateImportJob stores the uploaded file and a pending job with its
// preview.
func (i *Import) CreateImportJob(ctx context.Context, auth domain.AuthContext, draft domain.ImportJob, raw []byte) (*domain.ImportJob, error) {
	if err := authorize(auth, resourceContent, actionCreate); err != nil {
		return nil, err
	}
	if v := validation.ValidateImportJob(draft); !v.IsValid {
		return nil, &domain.ValidationError{Validation: v}
	}
	preview, err := i.GenerateImportPreview(ctx, raw, draft.Format, draft.ContentType)
	if err != nil {
		return nil, err
	}

	now := i.now()
	job := draft
	job.ID = uuid.NewString()
	job.FileSize = int64(len(raw))
	job.Status = domain.ExecutionPending
	job.Progress = 0
	job.Preview = preview
	job.Results = nil
	job.ErrorMessage = ""
	job.CompletedAt = nil
	job.CreatedBy = auth.CurrentUserID()
	job.CreatedAt = now

	c, _ := codec.For(job.Format)
	job.SourceKey = artifactName("imports", job.Name+" "+shortID(job.ID), now, c.Extension())
	if _, err := i.storage.Put(ctx, job.SourceKey, raw); err != nil {
		return nil, fmt.Errorf("store import file: %w", err)
	}
	if err := i.repo.CreateImportJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	i.logger.Infof("[%s] Import job created: %d record(s), %d invalid, %d duplicate",
		job.Name, preview.TotalRecords, preview.InvalidRecords, preview.DuplicateRecords)
	return &job, nil
}

// GetImportJob returns the job with a preview recomputed from its stored
// file.
func (i *Import) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	job, err := i.repo.GetImportJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := i.attachPreview(ctx, job); err != nil {
		i.logger.Warnf("[%s] Preview unavailable: %v", job.Name, err)
	}
	return job, nil
}

func (i *Import) attachPreview(ctx context.Context, job *domain.ImportJob) error {
	raw, err := i.storage.Get(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("load import file: %w", err)
	}
	preview, err := i.GenerateImportPreview(ctx, raw, job.Format, job.ContentType)
	if err != nil {
		return err
	}
	job.Preview = preview
	return nil
}

// RunImportJob executes a pending job. Dry runs complete with a preview
// and never touch the content store.
func (i *Import) RunImportJob(ctx context.Context, auth domain.AuthContext, id string) (*domain.ImportJob, error) {
	if err := authorize(auth, resourceContent, actionCreate); err != nil {
		return nil, err
	}
	job, err := i.repo.GetImportJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.DryRun {
		return i.CommitImportJob(ctx, auth, id)
	}

	if !i.running.acquire(job.ID) {
		return nil, &domain.ConcurrentExecutionError{JobID: job.ID}
	}
	defer i.running.release(job.ID)

	if err := domain.Transition(&job.Status, domain.ExecutionRunning); err != nil {
		return nil, err
	}
	started := i.now()
	runErr := i.attachPreview(ctx, job)
	i.complete(job, started, runErr)

	if err := i.repo.UpdateImportJob(detached(ctx), job); err != nil {
		return nil, fmt.Errorf("update import job: %w", err)
	}
	return job, nil
}

// CommitImportJob writes the file into the content store under the content
// type's write lock.
func (i *Import) CommitImportJob(ctx context.Context, auth domain.AuthContext, id string) (*domain.ImportJob, error) {
	if err := authorize(auth, resourceContent, actionCreate); err != nil {
		return nil, err
	}
	job, err := i.repo.GetImportJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.DryRun {
		return nil, fmt.Errorf("import %s: %w", job.ID, domain.ErrDryRun)
	}

	if !i.running.acquire(job.ID) {
		return nil, &domain.ConcurrentExecutionError{JobID: job.ID}
	}
	defer i.running.release(job.ID)

	if err := domain.Transition(&job.Status, domain.ExecutionRunning); err != nil {
		return nil, err
	}
	if err := i.repo.UpdateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update import job: %w", err)
	}

	started := i.now()
	i.logger.Infof("[%s] Importing %s into %s...", job.Name, job.ContentType, i.environment)
	runErr := i.commit(ctx, job)
	i.complete(job, started, runErr)

	if err := i.repo.UpdateImportJob(detached(ctx), job); err != nil {
		return nil, fmt.Errorf("update import job: %w", err)
	}
	return job, nil
}

func (i *Import) complete(job *domain.ImportJob, started time.Time, runErr error) {
	done := i.now()
	job.CompletedAt = &done
	switch {
	case runErr != nil && failedStatus(runErr) == domain.ExecutionCancelled:
		settle(i.logger, job.Name, &job.Status, domain.ExecutionCancelled)
		i.logger.Warnf("[%s] Import cancelled", job.Name)
	case runErr != nil:
		settle(i.logger, job.Name, &job.Status, domain.ExecutionError)
		job.ErrorMessage = (&domain.RunError{Op: kindImport, Err: runErr}).Error()
		i.logger.Errorf("[%s] Import failed: %v", job.Name, runErr)
	default:
		settle(i.logger, job.Name, &job.Status, domain.ExecutionCompleted)
		job.Progress = 100
		if job.Results != nil {
			job.Results.Duration = done.Sub(started)
			i.logger.Infof("[%s] Import completed: %d created, %d updated, %d skipped, %d error(s)",
				job.Name, job.Results.RecordsCreated, job.Results.RecordsUpdated, job.Results.RecordsSkipped, len(job.Results.Errors))
		}
	}
	i.metrics.ObserveExecution(kindImport, string(job.Status), done.Sub(started))
}

func (i *Import) commit(ctx context.Context, job *domain.ImportJob) error {
	raw, err := i.storage.Get(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("load import file: %w", err)
	}
	records, err := decodeImport(raw, job.Format, job.ContentType)
	if err != nil {
		return err
	}

	release, err := i.locks.Lock(ctx, contentLockKey(i.environment, job.ContentType))
	if err != nil {
		return fmt.Errorf("lock %s: %w", job.ContentType, err)
	}
	defer release()

	results := &domain.ImportResults{Errors: []domain.RowError{}, Warnings: []string{}}
	policy := importPolicy(job.ConflictResolution)
	seen := make(map[string]bool, len(records))
	duplicates := 0

	for n, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := n + 1
		job.Progress = domain.ProgressOf(row, len(records))

		if missing := rec.MissingFields(job.ContentType); len(missing) > 0 {
			for _, field := range missing {
				results.Errors = append(results.Errors, domain.RowError{
					Row:     row,
					Field:   field,
					Message: fmt.Sprintf("Missing required field %q", field),
					Data:    rec,
				})
			}
			continue
		}

		id := rec.ID()
		if id != "" && seen[id] && job.ConflictResolution.SkipDuplicates {
			results.RecordsSkipped++
			duplicates++
			continue
		}
		if id != "" {
			seen[id] = true
		}

		var existing domain.Record
		if id != "" {
			found, ok, err := i.content.Get(ctx, job.ContentType, id)
			if err != nil {
				return fmt.Errorf("look up %s %s: %w", job.ContentType, id, err)
			}
			if ok {
				existing = found
			}
		}

		out, action := policy.resolve(rec, existing)
		if action == writeSkip {
			results.RecordsSkipped++
			continue
		}
		if err := i.content.Upsert(ctx, job.ContentType, out); err != nil {
			results.Errors = append(results.Errors, domain.RowError{Row: row, Message: err.Error(), Data: rec})
			continue
		}
		if action == writeCreate {
			results.RecordsCreated++
		} else {
			results.RecordsUpdated++
		}
	}

	results.RecordsImported = results.RecordsCreated + results.RecordsUpdated
	if duplicates > 0 {
		results.Warnings = append(results.Warnings, fmt.Sprintf("%d duplicate row(s) in the file were skipped", duplicates))
	}
	if len(results.Errors) > 0 {
		results.Warnings = append(results.Warnings, fmt.Sprintf("%d row(s) could not be imported", len(results.Errors)))
	}
	job.Results = results
	return nil
}
