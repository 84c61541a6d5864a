package app

import (
	"fmt"

	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
)

// jobsFromConfig turns the declared jobs into drafts for ReconcileJobs.
// Field validation is left to the backup use case.
func jobsFromConfig(jobs []config.JobConfig) ([]domain.BackupJob, error) {
	drafts := make([]domain.BackupJob, 0, len(jobs))
	for i, jc := range jobs {
		job := domain.BackupJob{
			Name:        jc.Name,
			Description: jc.Description,
			Type:        domain.BackupType(jc.Type),
			Schedule: domain.BackupSchedule{
				Frequency:  domain.Frequency(jc.Frequency),
				Time:       jc.Time,
				DayOfWeek:  jc.DayOfWeek,
				DayOfMonth: jc.DayOfMonth,
				CustomCron: jc.CustomCron,
				Timezone:   jc.Timezone,
				Enabled:    jc.Enabled,
			},
			RetentionDays:      jc.RetentionDays,
			MaxBackups:         jc.MaxBackups,
			CompressionEnabled: jc.Compression,
			EncryptionEnabled:  jc.Encryption,
		}
		if job.Type == "" {
			job.Type = domain.BackupFull
		}
		if job.Schedule.Frequency == "" {
			job.Schedule.Frequency = domain.FrequencyDaily
		}
		if job.Schedule.Timezone == "" {
			job.Schedule.Timezone = "UTC"
		}

		for _, name := range jc.ContentTypes {
			ct := domain.ContentType(name)
			if !ct.Valid() {
				return nil, fmt.Errorf("jobs[%d]: unknown content type %q", i, name)
			}
			job.ContentTypes = append(job.ContentTypes, ct)
		}
		drafts = append(drafts, job)
	}
	return drafts, nil
}
