package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/estimator"
)

const kindBackup = "backup"

func (b *Backup) execute(ctx context.Context, r *activeRun, job *domain.BackupJob, exec *domain.BackupExecution) {
	defer b.release(job.ID, r)
	defer r.cancel(nil)

	if b.opts.Timeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, b.opts.Timeout, errTimedOut)
		defer stop()
	}

	file, err := b.produce(ctx, job, exec)

	persist := detached(ctx)
	now := b.now()
	cause := context.Cause(ctx)
	switch {
	case err == nil:
		exec.Log(domain.LogInfo, now, "Backup completed: %s (%s)", file.Filename, file.SizeFormatted)
		if err := exec.Complete(now, file.ID); err != nil {
			b.logger.Errorf("[%s] %v", job.Name, err)
		}
		b.logger.Infof("[%s] Backup completed: %s (%s)", job.Name, file.Filename, file.SizeFormatted)
	case ctx.Err() != nil && (errors.Is(cause, errCancelled) || errors.Is(cause, errShutdown)):
		exec.Log(domain.LogWarning, now, "Backup cancelled: %v", cause)
		if err := exec.Cancel(now); err != nil {
			b.logger.Errorf("[%s] %v", job.Name, err)
		}
		file = nil
		b.logger.Warnf("[%s] Backup cancelled: %v", job.Name, cause)
	default:
		msg := b.failure(ctx, err)
		exec.Log(domain.LogError, now, "%s", msg)
		if err := exec.Fail(now, msg); err != nil {
			b.logger.Errorf("[%s] %v", job.Name, err)
		}
		file = nil
		b.logger.Errorf("[%s] Backup failed: %s", job.Name, msg)
	}

	b.finish(persist, job, exec, file)
}

// failure renders the error message stored on a failed execution.
func (b *Backup) failure(ctx context.Context, err error) string {
	if errors.Is(context.Cause(ctx), errTimedOut) {
		te := &domain.RunError{Op: kindBackup, Timeout: true, Err: fmt.Errorf("exceeded %s", b.opts.Timeout)}
		return te.Error()
	}
	var ee *domain.RunError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	return (&domain.RunError{Op: kindBackup, Err: err}).Error()
}

// produce reads every scoped content type in batches, then encodes, packs
// and stores the artifact. Cancellation is honoured at batch boundaries.
func (b *Backup) produce(ctx context.Context, job *domain.BackupJob, exec *domain.BackupExecution) (*domain.BackupFile, error) {
	types := domain.SortContentTypes(job.Type.ScopedContentTypes(job.ContentTypes))

	if err := b.content.Ping(ctx); err != nil {
		return nil, &domain.RunError{Op: "connect content store", Err: err}
	}

	total := 0
	for _, ct := range types {
		n, err := b.content.Count(ctx, ct)
		if err != nil {
			return nil, &domain.RunError{Op: "count " + string(ct), Err: err}
		}
		total += n
	}
	exec.Advance(0, total)
	exec.Log(domain.LogInfo, b.now(), "Backing up %d record(s) across %d content type(s)", total, len(types))
	b.save(ctx, exec)

	var since *time.Time
	if job.Type == domain.BackupIncremental {
		since = job.LastSuccess
	}

	ds := codec.Dataset{Version: codec.DatasetVersion, Collections: make([]codec.Collection, 0, len(types))}
	processed := 0
	for _, ct := range types {
		col := codec.Collection{ContentType: ct, Records: []domain.Record{}}
		err := b.content.StreamRecords(ctx, ct, b.opts.BatchSize, func(batch []domain.Record) error {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			for _, rec := range batch {
				if changedSince(rec, since) {
					col.Records = append(col.Records, rec)
				}
			}
			processed += len(batch)
			exec.Advance(processed, total)
			b.save(ctx, exec)
			return nil
		})
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		if err != nil {
			return nil, &domain.RunError{Op: "read " + string(ct), Err: err}
		}
		ds.Collections = append(ds.Collections, col)
		exec.Log(domain.LogInfo, b.now(), "Processed %d %s record(s)", len(col.Records), ct)
		b.save(ctx, exec)
	}

	c, err := codec.For(b.opts.Format)
	if err != nil {
		return nil, &domain.RunError{Op: "encode", Err: err}
	}
	payload, err := c.Encode(ds)
	if err != nil {
		return nil, &domain.RunError{Op: "encode", Err: err}
	}
	stored, err := b.packer.Pack(payload, job.CompressionEnabled, job.EncryptionEnabled)
	if err != nil {
		return nil, &domain.RunError{Op: "pack", Err: err}
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	filename := artifactName("backups", job.Name+" "+shortID(exec.ID), exec.StartTime, Extension(c, job.CompressionEnabled, job.EncryptionEnabled))
	url, err := b.storage.Put(ctx, filename, stored)
	if err != nil {
		return nil, &domain.RunError{Op: "store artifact", Err: err}
	}
	if ctx.Err() != nil {
		b.discard(detached(ctx), filename)
		return nil, context.Cause(ctx)
	}

	failures := mirror(ctx, b.targets, filename, stored, b.logger, job.Name)
	for target, ferr := range failures {
		exec.Log(domain.LogWarning, b.now(), "Upload to %s failed: %v", target, ferr)
	}

	size := int64(len(stored))
	return &domain.BackupFile{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		ExecutionID:   exec.ID,
		Name:          fmt.Sprintf("%s %s", job.Name, exec.StartTime.UTC().Format("2006-01-02 15:04")),
		Filename:      filename,
		Size:          size,
		SizeFormatted: estimator.FormatSize(size),
		CreatedAt:     b.now(),
		Type:          job.Type,
		ContentTypes:  types,
		Format:        c.Format(),
		Checksum:      estimator.ComputeChecksum(stored),
		Compressed:    job.CompressionEnabled,
		Encrypted:     job.EncryptionEnabled,
		DownloadURL:   url,
		Metadata: domain.FileMetadata{
			RecordCount:       ds.RecordCount(),
			Version:           codec.DatasetVersion,
			SourceEnvironment: b.opts.SourceEnvironment,
		},
	}, nil
}

// save persists progress. A failed progress write does not fail the run.
func (b *Backup) save(ctx context.Context, exec *domain.BackupExecution) {
	if err := b.repo.UpdateExecution(detached(ctx), exec); err != nil {
		b.logger.Warnf("Failed to save progress of execution %s: %v", exec.ID, err)
	}
}

func (b *Backup) discard(ctx context.Context, filename string) {
	if err := b.storage.Delete(ctx, filename); err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.logger.Warnf("Failed to discard artifact %s: %v", filename, err)
	}
	unmirror(ctx, b.targets, filename, b.logger)
}

// finish records the terminal execution together with the job's schedule
// state and the produced file.
func (b *Backup) finish(ctx context.Context, job *domain.BackupJob, exec *domain.BackupExecution, file *domain.BackupFile) {
	current, err := b.repo.GetBackupJob(ctx, job.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		current = nil
	case err != nil:
		b.logger.Warnf("[%s] Failed to reload job, using the copy taken at start: %v", job.Name, err)
		current = job
	}
	if current != nil {
		b.applyOutcome(current, exec)
	}

	err = b.repo.FinishExecution(ctx, exec, current, file)
	if errors.Is(err, domain.ErrNotFound) && current != nil {
		// deleted while finishing; the file is kept as history
		err = b.repo.FinishExecution(ctx, exec, nil, file)
	}
	if err != nil {
		b.logger.Errorf("[%s] Failed to record execution %s: %v", job.Name, exec.ID, err)
		if file != nil {
			b.discard(ctx, file.Filename)
		}
		return
	}

	b.metrics.ObserveExecution(kindBackup, string(exec.Status), exec.Duration)
	if file != nil {
		b.metrics.AddArtifactBytes(kindBackup, file.Size)
	}
	b.notify(ctx, job, exec)
}

// applyOutcome moves lastRun and nextRun forward whatever the outcome. A
// failure marks the job as errored, a success clears it. Only a success
// moves lastSuccess, the cutoff of the next incremental backup.
func (b *Backup) applyOutcome(job *domain.BackupJob, exec *domain.BackupExecution) {
	now := b.now()
	started := exec.StartTime
	job.LastRun = &started
	job.UpdatedAt = now

	switch exec.Status {
	case domain.ExecutionCompleted:
		job.LastSuccess = &started
		job.LastError = ""
		if job.Status == domain.JobError {
			job.Status = domain.JobActive
		}
	case domain.ExecutionError:
		job.LastError = exec.ErrorMessage
		if job.Status != domain.JobPaused {
			job.Status = domain.JobError
		}
	}
	job.NextRun = nextRun(job, now)
}

func (b *Backup) notify(ctx context.Context, job *domain.BackupJob, exec *domain.BackupExecution) {
	if b.notifier == nil {
		return
	}
	if b.notifyFailuresOnly && exec.Status == domain.ExecutionCompleted {
		return
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Backup %s: %s\n", job.Name, exec.Status)
	fmt.Fprintf(&msg, "Execution %s processed %d of %d record(s) in %s", exec.ID, exec.RecordsProcessed, exec.TotalRecords, exec.Duration.Round(time.Millisecond))
	if exec.ErrorMessage != "" {
		fmt.Fprintf(&msg, "\nError: %s", exec.ErrorMessage)
	}

	if err := b.notifier.Notify(ctx, msg.String()); err != nil {
		b.logger.Warnf("[%s] Failed to send notification: %v", job.Name, err)
	}
}
