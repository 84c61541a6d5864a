package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/validation"
)

const kindMigration = "migration"

// Migration copies content between named environments.
type Migration struct {
	repo         domain.MigrationRepository
	environments map[string]domain.ContentStore
	storage      domain.ArtifactStorage
	locks        domain.Locker
	logger       Logger
	metrics      Metrics
	batchSize    int
	now          func() time.Time
	running      slots
}

func NewMigration(
	repo domain.MigrationRepository,
	environments map[string]domain.ContentStore,
	storage domain.ArtifactStorage,
	locks domain.Locker,
	logger Logger,
	batchSize int,
) *Migration {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Migration{
		repo:         repo,
		environments: environments,
		storage:      storage,
		locks:        locks,
		logger:       logger,
		metrics:      nopMetrics{},
		batchSize:    batchSize,
		now:          time.Now,
	}
}

func (m *Migration) UseMetrics(mt Metrics) {
	m.metrics = metricsOrNop(mt)
}

// Environments lists the known environment names, sorted.
func (m *Migration) Environments() []string {
	names := make([]string, 0, len(m.environments))
	for name := range m.environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Migration) CreateMigrationJob(ctx context.Context, auth domain.AuthContext, draft domain.MigrationJob) (*domain.MigrationJob, error) {
	if err := authorize(auth, resourceContent, actionUpdate); err != nil {
		return nil, err
	}
	v := validation.ValidateMigrationJob(draft)
	if _, ok := m.environments[draft.SourceEnvironment]; draft.SourceEnvironment != "" && !ok {
		v.AddError("sourceEnvironment", fmt.Sprintf("Unknown environment %q", draft.SourceEnvironment))
	}
	if _, ok := m.environments[draft.TargetEnvironment]; draft.TargetEnvironment != "" && !ok {
		v.AddError("targetEnvironment", fmt.Sprintf("Unknown environment %q", draft.TargetEnvironment))
	}
	if !v.IsValid {
		return nil, &domain.ValidationError{Validation: v}
	}

	job := draft
	job.ID = uuid.NewString()
	job.ContentTypes = domain.SortContentTypes(draft.ContentTypes)
	job.Status = domain.ExecutionPending
	job.Progress = 0
	job.StartTime, job.EndTime = nil, nil
	job.Results = nil
	job.ErrorMessage = ""
	job.CreatedBy = auth.CurrentUserID()
	job.CreatedAt = m.now()

	if err := m.repo.CreateMigrationJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("create migration job: %w", err)
	}
	m.logger.Infof("[%s] Migration job created: %s -> %s", job.Name, job.SourceEnvironment, job.TargetEnvironment)
	return &job, nil
}

func (m *Migration) GetMigrationJob(ctx context.Context, id string) (*domain.MigrationJob, error) {
	return m.repo.GetMigrationJob(ctx, id)
}

// RunMigrationJob executes a pending migration synchronously. Failures are
// recorded on the returned job.
func (m *Migration) RunMigrationJob(ctx context.Context, auth domain.AuthContext, id string) (*domain.MigrationJob, error) {
	if err := authorize(auth, resourceContent, actionUpdate); err != nil {
		return nil, err
	}
	job, err := m.repo.GetMigrationJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.running.acquire(job.ID) {
		return nil, &domain.ConcurrentExecutionError{JobID: job.ID}
	}
	defer m.running.release(job.ID)

	if err := domain.Transition(&job.Status, domain.ExecutionRunning); err != nil {
		return nil, err
	}
	started := m.now()
	job.StartTime = &started
	if err := m.repo.UpdateMigrationJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update migration job: %w", err)
	}

	m.logger.Infof("[%s] Migrating %v from %s to %s (dry run: %t)...",
		job.Name, job.ContentTypes, job.SourceEnvironment, job.TargetEnvironment, job.DryRun)
	runErr := m.migrate(ctx, job, started)

	done := m.now()
	job.EndTime = &done
	switch {
	case runErr != nil && failedStatus(runErr) == domain.ExecutionCancelled:
		settle(m.logger, job.Name, &job.Status, domain.ExecutionCancelled)
		m.logger.Warnf("[%s] Migration cancelled", job.Name)
	case runErr != nil:
		settle(m.logger, job.Name, &job.Status, domain.ExecutionError)
		job.ErrorMessage = (&domain.RunError{Op: kindMigration, Err: runErr}).Error()
		m.logger.Errorf("[%s] Migration failed: %v", job.Name, runErr)
	default:
		settle(m.logger, job.Name, &job.Status, domain.ExecutionCompleted)
		job.Progress = 100
		job.Results.Duration = done.Sub(started)
		m.logger.Infof("[%s] Migration completed: %d migrated, %d skipped, %d failed",
			job.Name, job.Results.RecordsMigrated, job.Results.RecordsSkipped, job.Results.RecordsFailed)
	}
	m.metrics.ObserveExecution(kindMigration, string(job.Status), done.Sub(started))

	if err := m.repo.UpdateMigrationJob(detached(ctx), job); err != nil {
		return nil, fmt.Errorf("update migration job: %w", err)
	}
	return job, nil
}

func (m *Migration) migrate(ctx context.Context, job *domain.MigrationJob, started time.Time) error {
	source, ok := m.environments[job.SourceEnvironment]
	if !ok {
		return &domain.NotFoundError{Kind: "environment", ID: job.SourceEnvironment}
	}
	target, ok := m.environments[job.TargetEnvironment]
	if !ok {
		return &domain.NotFoundError{Kind: "environment", ID: job.TargetEnvironment}
	}

	results := &domain.MigrationResults{
		ByContentType: make(map[domain.ContentType]domain.ContentTypeResult, len(job.ContentTypes)),
		Errors:        []domain.RowError{},
		Warnings:      []string{},
	}
	job.Results = results

	if !job.DryRun {
		release, err := m.locks.Lock(ctx, contentLockKeys(job.TargetEnvironment, job.ContentTypes)...)
		if err != nil {
			return fmt.Errorf("lock target content: %w", err)
		}
		defer release()
	}

	if job.MigrationStrategy.CreateBackup && !job.DryRun {
		key, err := m.snapshot(ctx, job, target, started)
		if err != nil {
			return fmt.Errorf("back up target: %w", err)
		}
		results.BackupKey = key
		m.logger.Infof("[%s] Target backed up to %s", job.Name, key)
	}

	collections, err := readAll(ctx, source, job.ContentTypes, m.batchSize)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	ids := make(map[string]string)
	if !job.PreserveIDs {
		for _, col := range collections {
			for _, rec := range col.Records {
				if old := rec.ID(); old != "" {
					ids[old] = uuid.NewString()
				}
			}
		}
	}

	policy := conflictPolicy{strategy: job.MigrationStrategy.HandleConflicts, updateExisting: true, preserveIDs: true}
	total, processed := 0, 0
	for _, col := range collections {
		total += len(col.Records)
	}

	for _, col := range collections {
		ct := col.ContentType
		var res domain.ContentTypeResult
		for n, rec := range col.Records {
			if err := ctx.Err(); err != nil {
				return err
			}
			processed++
			job.Progress = domain.ProgressOf(processed, total)

			if job.MigrationStrategy.ValidateData {
				if missing := rec.MissingFields(ct); len(missing) > 0 {
					res.Failed++
					results.Errors = append(results.Errors, domain.RowError{
						Row:     n + 1,
						Field:   missing[0],
						Message: fmt.Sprintf("%s record %q is missing %v", ct, rec.ID(), missing),
						Data:    rec,
					})
					continue
				}
			}

			incoming := remap(rec, ids, job.MigrationStrategy.PreserveRelationships)
			if incoming.ID() == "" {
				incoming[domain.IDField] = uuid.NewString()
			}
			existing, found, err := target.Get(ctx, ct, incoming.ID())
			if err != nil {
				return fmt.Errorf("look up %s %s: %w", ct, incoming.ID(), err)
			}
			if !found {
				existing = nil
			}

			out, action := policy.resolve(incoming, existing)
			if action == writeSkip {
				res.Skipped++
				continue
			}
			if !job.DryRun {
				if err := target.Upsert(ctx, ct, out); err != nil {
					res.Failed++
					results.Errors = append(results.Errors, domain.RowError{Row: n + 1, Message: err.Error(), Data: rec})
					continue
				}
			}
			res.Migrated++
		}

		results.ByContentType[ct] = res
		results.RecordsMigrated += res.Migrated
		results.RecordsSkipped += res.Skipped
		results.RecordsFailed += res.Failed
		m.logger.Infof("[%s] %s: %d migrated, %d skipped, %d failed", job.Name, ct, res.Migrated, res.Skipped, res.Failed)
	}

	if job.DryRun {
		results.Warnings = append(results.Warnings, "Dry run: no records were written to "+job.TargetEnvironment)
	}
	if !job.PreserveIDs && !job.MigrationStrategy.PreserveRelationships {
		results.Warnings = append(results.Warnings, "Records received new ids; references between them were not rewritten")
	}
	return nil
}

// snapshot stores the current target content of the job's types as a JSON
// artifact and returns its key.
func (m *Migration) snapshot(ctx context.Context, job *domain.MigrationJob, target domain.ContentStore, at time.Time) (string, error) {
	collections, err := readAll(ctx, target, job.ContentTypes, m.batchSize)
	if err != nil {
		return "", err
	}
	payload, err := codec.JSON{}.Encode(codec.Dataset{Version: codec.DatasetVersion, Collections: collections})
	if err != nil {
		return "", err
	}
	key := artifactName("migrations", job.Name+" "+job.TargetEnvironment, at, ".json")
	if _, err := m.storage.Put(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

func readAll(ctx context.Context, store domain.ContentStore, types []domain.ContentType, batchSize int) ([]codec.Collection, error) {
	collections := make([]codec.Collection, 0, len(types))
	for _, ct := range types {
		col := codec.Collection{ContentType: ct, Records: []domain.Record{}}
		err := store.StreamRecords(ctx, ct, batchSize, func(batch []domain.Record) error {
			col.Records = append(col.Records, batch...)
			return ctx.Err()
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ct, err)
		}
		collections = append(collections, col)
	}
	return collections, nil
}

// remap gives rec its new id and, when relationships are kept, rewrites
// string references to remapped ids.
func remap(rec domain.Record, ids map[string]string, relationships bool) domain.Record {
	out := rec.Clone()
	if len(ids) == 0 {
		return out
	}
	if next, ok := ids[rec.ID()]; ok {
		out[domain.IDField] = next
	}
	if !relationships {
		return out
	}
	for k, v := range out {
		if k == domain.IDField {
			continue
		}
		out[k] = rewriteRef(v, ids)
	}
	return out
}

func rewriteRef(v any, ids map[string]string) any {
	switch x := v.(type) {
	case string:
		if next, ok := ids[x]; ok {
			return next
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = rewriteRef(e, ids)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, e := range x {
			if next, ok := ids[e]; ok {
				e = next
			}
			out[i] = e
		}
		return out
	default:
		return v
	}
}
