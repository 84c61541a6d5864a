// Package validation checks job drafts before anything is scheduled or run.
// Every function accepts partial drafts and never panics; unset fields are
// reported, not defaulted.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/schedule"
)

const (
	maxRetentionDays = 365
	maxExportSpan    = 365 * 24 * time.Hour
)

func newValidation() domain.Validation {
	return domain.Validation{
		IsValid:  true,
		Errors:   []domain.FieldIssue{},
		Warnings: []domain.FieldIssue{},
	}
}

// ValidateBackupJob checks a backup job draft.
func ValidateBackupJob(draft domain.BackupJob) domain.Validation {
	v := newValidation()

	if strings.TrimSpace(draft.Name) == "" {
		v.AddError("name", "Name is required")
	}

	switch {
	case draft.Type == "":
		v.AddError("type", "Backup type is required")
	case !draft.Type.Valid():
		v.AddError("type", fmt.Sprintf("Unknown backup type %q", draft.Type))
	}

	checkContentTypes(&v, draft.ContentTypes)
	checkSchedule(&v, draft.Schedule)

	if draft.RetentionDays < 1 {
		v.AddError("retentionDays", "Retention must be at least 1 day")
	} else if draft.RetentionDays > maxRetentionDays {
		v.AddWarning("retentionDays", "Retention over 365 days increases storage costs")
	}
	if draft.MaxBackups < 1 {
		v.AddError("maxBackups", "At least 1 backup must be kept")
	}

	if draft.Schedule.Frequency == domain.FrequencyDaily && domain.ContainsContentType(draft.ContentTypes, domain.ContentSettings) {
		v.AddWarning("schedule.frequency", "Settings change rarely; daily backups are likely excessive")
	}
	if !draft.EncryptionEnabled && domain.ContainsContentType(draft.ContentTypes, domain.ContentUsers) {
		v.AddWarning("encryptionEnabled", "User data is sensitive and should be encrypted")
	}

	return v
}

func checkContentTypes(v *domain.Validation, types []domain.ContentType) {
	if len(types) == 0 {
		v.AddError("contentTypes", "Select at least one content type")
		return
	}
	for _, ct := range types {
		if !ct.Valid() {
			v.AddError("contentTypes", fmt.Sprintf("Unknown content type %q", ct))
			return
		}
	}
}

func checkSchedule(v *domain.Validation, s domain.BackupSchedule) {
	switch {
	case s.Frequency == "":
		v.AddError("schedule.frequency", "Frequency is required")
	case !s.Frequency.Valid():
		v.AddError("schedule.frequency", fmt.Sprintf("Unknown frequency %q", s.Frequency))
	}

	if strings.TrimSpace(s.Time) == "" {
		v.AddError("schedule.time", "Time is required")
	} else if _, _, err := schedule.ParseClock(s.Time); err != nil {
		v.AddError("schedule.time", "Time must use the HH:MM format")
	}

	switch s.Frequency {
	case domain.FrequencyWeekly:
		if s.DayOfWeek == nil || *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			v.AddError("schedule.dayOfWeek", "Day of week must be between 0 (Sunday) and 6")
		}
	case domain.FrequencyMonthly:
		if s.DayOfMonth == nil || *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			v.AddError("schedule.dayOfMonth", "Day of month must be between 1 and 31")
		} else if *s.DayOfMonth > 28 {
			v.AddWarning("schedule.dayOfMonth", "Shorter months run on their last day")
		}
	case domain.FrequencyCustom:
		if _, err := schedule.ParseCron(s.CustomCron, ""); err != nil {
			v.AddError("schedule.customCron", "Custom schedules need a valid 5-field cron expression")
		}
	}

	if _, err := schedule.Location(s.Timezone); err != nil {
		v.AddError("schedule.timezone", fmt.Sprintf("Unknown timezone %q", s.Timezone))
	}
}

// ValidateExportJob checks an export job draft.
func ValidateExportJob(draft domain.ExportJob) domain.Validation {
	v := newValidation()

	if strings.TrimSpace(draft.Name) == "" {
		v.AddError("name", "Name is required")
	}
	checkContentTypes(&v, draft.ContentTypes)

	switch {
	case draft.Format == "":
		v.AddError("format", "Export format is required")
	case !draft.Format.Valid():
		v.AddError("format", fmt.Sprintf("Unknown format %q", draft.Format))
	}

	if r := draft.DateRange; r != nil {
		if !r.StartDate.Before(r.EndDate) {
			v.AddError("dateRange", "Start date must be before end date")
		} else if r.EndDate.Sub(r.StartDate) > maxExportSpan {
			v.AddWarning("dateRange", "Date ranges over a year produce large exports")
		}
	}

	for _, field := range draft.IncludeFields {
		for _, excluded := range draft.ExcludeFields {
			if field == excluded {
				v.AddWarning("excludeFields", fmt.Sprintf("Field %q is both included and excluded; it will be excluded", field))
			}
		}
	}

	return v
}

// ValidateImportJob checks an import job draft.
func ValidateImportJob(draft domain.ImportJob) domain.Validation {
	v := newValidation()

	if strings.TrimSpace(draft.Name) == "" {
		v.AddError("name", "Name is required")
	}
	if strings.TrimSpace(draft.Filename) == "" {
		v.AddError("filename", "Select a file to import")
	}
	switch {
	case draft.Format == "":
		v.AddError("format", "Import format is required")
	case draft.Format == domain.FormatPDF:
		v.AddError("format", "PDF files cannot be imported")
	case !draft.Format.Valid():
		v.AddError("format", fmt.Sprintf("Unknown format %q", draft.Format))
	}
	switch {
	case draft.ContentType == "":
		v.AddError("contentType", "Content type is required")
	case !draft.ContentType.Valid():
		v.AddError("contentType", fmt.Sprintf("Unknown content type %q", draft.ContentType))
	}

	cr := draft.ConflictResolution
	if !cr.Strategy.Valid() {
		v.AddError("conflictResolution.strategy", "Choose skip, overwrite, merge or create_new")
	}
	if (cr.Strategy == domain.ConflictOverwrite || cr.Strategy == domain.ConflictMerge) && !cr.UpdateExisting {
		v.AddWarning("conflictResolution.updateExisting", "Existing records will be skipped because updates are disabled")
	}
	if cr.Strategy == domain.ConflictOverwrite && draft.ContentType == domain.ContentUsers {
		v.AddWarning("conflictResolution.strategy", "Overwriting users replaces their stored profile")
	}

	return v
}

// ValidateMigrationJob checks a migration job draft.
func ValidateMigrationJob(draft domain.MigrationJob) domain.Validation {
	v := newValidation()

	if strings.TrimSpace(draft.Name) == "" {
		v.AddError("name", "Name is required")
	}
	if draft.SourceEnvironment == "" {
		v.AddError("sourceEnvironment", "Source environment is required")
	}
	if draft.TargetEnvironment == "" {
		v.AddError("targetEnvironment", "Target environment is required")
	}
	if draft.SourceEnvironment != "" && draft.SourceEnvironment == draft.TargetEnvironment {
		v.AddError("targetEnvironment", "Source and target must differ")
	}
	checkContentTypes(&v, draft.ContentTypes)

	s := draft.MigrationStrategy
	switch s.HandleConflicts {
	case domain.ConflictSkip, domain.ConflictOverwrite, domain.ConflictMerge:
	default:
		v.AddError("migrationStrategy.handleConflicts", "Choose skip, overwrite or merge")
	}
	if !draft.DryRun && !s.CreateBackup {
		v.AddWarning("migrationStrategy.createBackup", "No backup of the target will be taken before writing")
	}
	if !draft.PreserveIDs && !s.PreserveRelationships {
		v.AddWarning("migrationStrategy.preserveRelationships", "References between records will point at old ids")
	}

	return v
}
