package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/retention"
)

// strayGrace keeps recent remote copies that the catalog may not list yet.
const strayGrace = 24 * time.Hour

// Cleanup applies retention to backup files and expires old exports.
type Cleanup struct {
	backups       domain.BackupRepository
	exports       domain.ExportRepository
	storage       domain.ArtifactStorage
	uploadTargets []UploadTarget
	logger        Logger
	metrics       Metrics
	now           func() time.Time
}

func NewCleanup(
	backups domain.BackupRepository,
	exports domain.ExportRepository,
	storage domain.ArtifactStorage,
	uploadTargets []UploadTarget,
	logger Logger,
) *Cleanup {
	return &Cleanup{
		backups:       backups,
		exports:       exports,
		storage:       storage,
		uploadTargets: uploadTargets,
		logger:        logger,
		metrics:       nopMetrics{},
		now:           time.Now,
	}
}

func (uc *Cleanup) UseMetrics(m Metrics) {
	uc.metrics = metricsOrNop(m)
}

// CleanupEligibleFiles lists the job's files that retention flags, oldest
// first. Nothing is deleted.
func (uc *Cleanup) CleanupEligibleFiles(ctx context.Context, auth domain.AuthContext, jobID string) ([]domain.BackupFile, error) {
	if err := authorize(auth, resourceSettings, actionRead); err != nil {
		return nil, err
	}
	job, err := uc.backups.GetBackupJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	files, err := uc.backups.ListBackupFiles(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list backup files: %w", err)
	}
	return retention.EligibleFiles(files, retention.PolicyOf(job), uc.now()), nil
}

// PurgeEligibleFiles deletes the job's flagged files from storage, remote
// targets and the catalog. It returns the number of files removed.
func (uc *Cleanup) PurgeEligibleFiles(ctx context.Context, auth domain.AuthContext, jobID string) (int, error) {
	if err := authorize(auth, resourceSettings, actionDelete); err != nil {
		return 0, err
	}
	job, err := uc.backups.GetBackupJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	return uc.purge(ctx, job)
}

func (uc *Cleanup) purge(ctx context.Context, job *domain.BackupJob) (int, error) {
	files, err := uc.backups.ListBackupFiles(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("list backup files: %w", err)
	}

	now := uc.now()
	deleted := 0
	for _, f := range retention.EligibleFiles(files, retention.PolicyOf(job), now) {
		if !retention.ShouldCleanup(f, job.RetentionDays, job.MaxBackups, files, now) {
			continue
		}
		uc.logger.Infof("[%s] Deleting old backup: %s", job.Name, f.Filename)
		if err := uc.purgeFile(ctx, f); err != nil {
			uc.logger.Errorf("[%s] Failed to delete %s: %v", job.Name, f.Filename, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		uc.metrics.AddPurged(deleted)
		uc.logger.Infof("[%s] Deleted %d old backup(s)", job.Name, deleted)
	}
	return deleted, nil
}

func (uc *Cleanup) purgeFile(ctx context.Context, f domain.BackupFile) error {
	if err := uc.storage.Delete(ctx, f.Filename); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	unmirror(ctx, uc.uploadTargets, f.Filename, uc.logger)
	if err := uc.backups.DeleteBackupFile(ctx, f.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	return nil
}

// PurgeExpiredExports deletes the artifacts of exports past their download
// window. The jobs stay as history without a download link.
func (uc *Cleanup) PurgeExpiredExports(ctx context.Context) (int, error) {
	jobs, err := uc.exports.ListExpiredExports(ctx, uc.now())
	if err != nil {
		return 0, fmt.Errorf("list expired exports: %w", err)
	}

	purged := 0
	for i := range jobs {
		job := &jobs[i]
		if job.Filename != "" {
			if err := uc.storage.Delete(ctx, job.Filename); err != nil && !errors.Is(err, domain.ErrNotFound) {
				uc.logger.Errorf("[%s] Failed to delete expired export %s: %v", job.Name, job.Filename, err)
				continue
			}
		}
		uc.logger.Infof("[%s] Export expired, removed %s", job.Name, job.Filename)
		job.Filename = ""
		job.DownloadURL = ""
		job.ExpiresAt = nil
		if err := uc.exports.UpdateExportJob(ctx, job); err != nil {
			uc.logger.Errorf("[%s] Failed to update expired export: %v", job.Name, err)
			continue
		}
		purged++
	}
	return purged, nil
}

// Execute is the scheduled cleanup task.
func (uc *Cleanup) Execute(ctx context.Context) error {
	uc.logger.Infof("Starting cleanup")

	jobs, err := uc.backups.ListBackupJobs(ctx)
	if err != nil {
		return fmt.Errorf("list backup jobs: %w", err)
	}
	total := 0
	for i := range jobs {
		n, err := uc.purge(ctx, &jobs[i])
		if err != nil {
			uc.logger.Errorf("[%s] Cleanup failed: %v", jobs[i].Name, err)
			continue
		}
		total += n
	}

	expired, err := uc.PurgeExpiredExports(ctx)
	if err != nil {
		uc.logger.Errorf("Export cleanup failed: %v", err)
	}

	if len(uc.uploadTargets) > 0 {
		if err := uc.cleanupTargets(ctx); err != nil {
			uc.logger.Errorf("Remote cleanup failed: %v", err)
		}
	}

	uc.logger.Infof("Cleanup completed: %d backup(s), %d export(s) removed", total, expired)
	return nil
}

// cleanupTargets removes remote backup copies the catalog no longer knows.
func (uc *Cleanup) cleanupTargets(ctx context.Context) error {
	files, err := uc.backups.ListAllBackupFiles(ctx)
	if err != nil {
		return fmt.Errorf("list backup files: %w", err)
	}
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f.Filename] = true
	}
	cutoff := uc.now().Add(-strayGrace)

	var wg sync.WaitGroup
	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			if err := uc.cleanupTarget(ctx, t, known, cutoff); err != nil {
				uc.logger.Errorf("Cleanup failed for %s: %v", t.Name, err)
			}
		}(target)
	}
	wg.Wait()
	return nil
}

func (uc *Cleanup) cleanupTarget(ctx context.Context, target UploadTarget, known map[string]bool, cutoff time.Time) error {
	names, err := target.Storage.List(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	deleted := 0
	for _, filename := range names {
		if !strings.HasPrefix(filename, "backups/") || known[filename] {
			continue
		}
		timestamp, err := extractTimestamp(filename)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", filename, err)
			continue
		}
		if !timestamp.Before(cutoff) {
			continue
		}

		uc.logger.Infof("Deleting stray backup from %s: %s", target.Name, filename)
		if err := target.Storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", filename, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d stray backup(s) from %s", deleted, target.Name)
	return nil
}
