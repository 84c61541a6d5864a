// Package retention decides which backup files a job no longer needs.
// It only flags files; deletion is the caller's explicit action.
package retention

import (
	"sort"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

// Policy is the retention rule of one backup job.
type Policy struct {
	RetentionDays int
	MaxBackups    int
}

// PolicyOf reads the policy of a job.
func PolicyOf(job *domain.BackupJob) Policy {
	return Policy{RetentionDays: job.RetentionDays, MaxBackups: job.MaxBackups}
}

// sortNewestFirst orders files by creation time, newest first. Ties are
// broken by id so ranks are stable.
func sortNewestFirst(files []domain.BackupFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
}

// expired reports whether file is older than the retention window.
func expired(file domain.BackupFile, days int, now time.Time) bool {
	if days <= 0 {
		return false
	}
	return now.Sub(file.CreatedAt) > time.Duration(days)*24*time.Hour
}

// ShouldCleanup reports whether file is older than retentionDays or ranks
// at maxBackups or beyond among its job's files by recency. Files of other
// jobs in allFiles are ignored.
func ShouldCleanup(file domain.BackupFile, retentionDays, maxBackups int, allFiles []domain.BackupFile, now time.Time) bool {
	if expired(file, retentionDays, now) {
		return true
	}
	if maxBackups <= 0 {
		return false
	}

	siblings := make([]domain.BackupFile, 0, len(allFiles))
	seen := false
	for _, f := range allFiles {
		if f.JobID != file.JobID {
			continue
		}
		if f.ID == file.ID {
			seen = true
		}
		siblings = append(siblings, f)
	}
	if !seen {
		siblings = append(siblings, file)
	}
	sortNewestFirst(siblings)

	for rank, f := range siblings {
		if f.ID == file.ID {
			return rank >= maxBackups
		}
	}
	return false
}

// EligibleFiles returns the files of one job that ShouldCleanup flags,
// oldest first.
func EligibleFiles(files []domain.BackupFile, p Policy, now time.Time) []domain.BackupFile {
	sorted := make([]domain.BackupFile, len(files))
	copy(sorted, files)
	sortNewestFirst(sorted)

	var eligible []domain.BackupFile
	for rank, f := range sorted {
		if expired(f, p.RetentionDays, now) || (p.MaxBackups > 0 && rank >= p.MaxBackups) {
			eligible = append(eligible, f)
		}
	}

	for i, j := 0, len(eligible)-1; i < j; i, j = i+1, j-1 {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	return eligible
}
