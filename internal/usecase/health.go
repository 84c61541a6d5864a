package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/semmidev/harmony/internal/domain"
)

const (
	quotaWarnRatio = 0.8
	overdueAfter   = time.Hour
)

// Health computes the backup health report on demand.
type Health struct {
	repo    domain.BackupRepository
	storage domain.ArtifactStorage
	quota   int64
	now     func() time.Time
}

// NewHealth takes the storage quota in bytes; zero disables the quota
// check.
func NewHealth(repo domain.BackupRepository, storage domain.ArtifactStorage, quotaBytes int64) *Health {
	return &Health{repo: repo, storage: storage, quota: quotaBytes, now: time.Now}
}

func (h *Health) HealthCheck(ctx context.Context) (*domain.BackupHealthCheck, error) {
	now := h.now()
	check := &domain.BackupHealthCheck{CheckedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := h.storageHealth(ctx)
		check.Storage = s
		return err
	})
	g.Go(func() error {
		s, err := h.scheduleHealth(ctx, now)
		check.Schedule = s
		return err
	})
	g.Go(func() error {
		v, err := h.verificationHealth(ctx)
		check.Verification = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	check.OverallHealth = domain.WorstHealth(check.Storage.Health, check.Schedule.Health, check.Verification.Health)
	return check, nil
}

func (h *Health) storageHealth(ctx context.Context) (domain.StorageHealth, error) {
	s := domain.StorageHealth{Health: domain.HealthHealthy, QuotaBytes: h.quota}

	files, err := h.repo.ListAllBackupFiles(ctx)
	if err != nil {
		return s, fmt.Errorf("list backup files: %w", err)
	}
	s.FileCount = len(files)
	for _, f := range files {
		s.UsedBytes += f.Size
	}

	levels := []domain.Health{}
	if h.quota > 0 {
		switch used := float64(s.UsedBytes); {
		case s.UsedBytes > h.quota:
			levels = append(levels, domain.HealthCritical)
			s.Issues = append(s.Issues, fmt.Sprintf("Storage quota exceeded: %s of %s", humanize.IBytes(uint64(s.UsedBytes)), humanize.IBytes(uint64(h.quota))))
		case used >= quotaWarnRatio*float64(h.quota):
			levels = append(levels, domain.HealthWarning)
			s.Issues = append(s.Issues, fmt.Sprintf("Storage usage at %.0f%% of quota", 100*used/float64(h.quota)))
		}
	}

	names, err := h.storage.List(ctx)
	if err != nil {
		levels = append(levels, domain.HealthCritical)
		s.Issues = append(s.Issues, fmt.Sprintf("Artifact storage unreachable: %v", err))
	} else {
		present := make(map[string]bool, len(names))
		for _, n := range names {
			present[n] = true
		}
		missing := 0
		for _, f := range files {
			if !present[f.Filename] {
				missing++
			}
		}
		if missing > 0 {
			levels = append(levels, domain.HealthWarning)
			s.Issues = append(s.Issues, fmt.Sprintf("%d backup file(s) missing from storage", missing))
		}
	}

	s.Health = domain.WorstHealth(levels...)
	return s, nil
}

func (h *Health) scheduleHealth(ctx context.Context, now time.Time) (domain.ScheduleHealth, error) {
	s := domain.ScheduleHealth{Health: domain.HealthHealthy}

	jobs, err := h.repo.ListBackupJobs(ctx)
	if err != nil {
		return s, fmt.Errorf("list backup jobs: %w", err)
	}

	levels := []domain.Health{}
	for _, job := range jobs {
		switch job.Status {
		case domain.JobPaused:
			s.PausedJobs++
			continue
		case domain.JobError:
			s.FailedJobs++
			s.Issues = append(s.Issues, fmt.Sprintf("Job %s failed: %s", job.Name, job.LastError))
		default:
			s.ActiveJobs++
		}
		if job.Schedule.Enabled && job.NextRun != nil && now.Sub(*job.NextRun) > overdueAfter {
			s.OverdueJobs++
			s.Issues = append(s.Issues, fmt.Sprintf("Job %s is overdue since %s", job.Name, humanize.Time(*job.NextRun)))
		}
	}

	if s.FailedJobs > 0 {
		levels = append(levels, domain.HealthCritical)
	}
	if s.OverdueJobs > 0 {
		levels = append(levels, domain.HealthWarning)
	}
	if s.ActiveJobs == 0 && s.FailedJobs == 0 {
		levels = append(levels, domain.HealthWarning)
		s.Issues = append(s.Issues, "No active backup jobs")
	}

	s.Health = domain.WorstHealth(levels...)
	return s, nil
}

func (h *Health) verificationHealth(ctx context.Context) (domain.VerificationHealth, error) {
	v := domain.VerificationHealth{Health: domain.HealthHealthy}

	files, err := h.repo.ListAllBackupFiles(ctx)
	if err != nil {
		return v, fmt.Errorf("list backup files: %w", err)
	}

	for _, f := range files {
		latest, err := h.repo.LatestVerification(ctx, f.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			v.UnverifiedFiles++
		case err != nil:
			return v, fmt.Errorf("latest verification of %s: %w", f.ID, err)
		case latest.Status == domain.VerificationFailed:
			v.FailedVerifications++
			v.Issues = append(v.Issues, fmt.Sprintf("Backup %s failed verification (score %d)", f.Name, latest.Score))
		default:
			v.VerifiedFiles++
		}
	}

	levels := []domain.Health{}
	if v.FailedVerifications > 0 {
		levels = append(levels, domain.HealthCritical)
	}
	if v.UnverifiedFiles > 0 {
		levels = append(levels, domain.HealthWarning)
		v.Issues = append(v.Issues, fmt.Sprintf("%d backup file(s) never verified", v.UnverifiedFiles))
	}

	v.Health = domain.WorstHealth(levels...)
	return v, nil
}
