package validation

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func validBackupDraft() domain.BackupJob {
	return domain.BackupJob{
		Name:         "Nightly",
		Type:         domain.BackupFull,
		ContentTypes: []domain.ContentType{domain.ContentAnimals, domain.ContentBlog},
		Schedule: domain.BackupSchedule{
			Frequency: domain.FrequencyDaily,
			Time:      "02:00",
			Timezone:  "UTC",
			Enabled:   true,
		},
		RetentionDays: 30,
		MaxBackups:    5,
	}
}

func errorFields(v domain.Validation) []string {
	fields := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidateBackupJob(t *testing.T) {
	Convey("Given a backup job draft", t, func() {
		Convey("When no rule is violated", func() {
			v := ValidateBackupJob(validBackupDraft())

			Convey("It should be valid without warnings", func() {
				So(v.IsValid, ShouldBeTrue)
				So(v.Errors, ShouldBeEmpty)
				So(v.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When exactly one rule is violated it should flag only that field", func() {
			cases := []struct {
				field  string
				mutate func(*domain.BackupJob)
			}{
				{"name", func(d *domain.BackupJob) { d.Name = "   " }},
				{"type", func(d *domain.BackupJob) { d.Type = "" }},
				{"contentTypes", func(d *domain.BackupJob) { d.ContentTypes = nil }},
				{"schedule.frequency", func(d *domain.BackupJob) { d.Schedule.Frequency = "" }},
				{"schedule.time", func(d *domain.BackupJob) { d.Schedule.Time = "" }},
				{"retentionDays", func(d *domain.BackupJob) { d.RetentionDays = 0 }},
				{"maxBackups", func(d *domain.BackupJob) { d.MaxBackups = 0 }},
			}

			for _, tc := range cases {
				draft := validBackupDraft()
				tc.mutate(&draft)
				v := ValidateBackupJob(draft)

				So(v.IsValid, ShouldBeFalse)
				So(errorFields(v), ShouldResemble, []string{tc.field})
			}
		})

		Convey("When retention exceeds a year", func() {
			draft := validBackupDraft()
			draft.RetentionDays = 400
			v := ValidateBackupJob(draft)

			Convey("It should warn but stay valid", func() {
				So(v.IsValid, ShouldBeTrue)
				So(v.HasWarning("retentionDays"), ShouldBeTrue)
			})
		})

		Convey("When settings are backed up daily", func() {
			draft := validBackupDraft()
			draft.ContentTypes = append(draft.ContentTypes, domain.ContentSettings)
			v := ValidateBackupJob(draft)

			So(v.IsValid, ShouldBeTrue)
			So(v.HasWarning("schedule.frequency"), ShouldBeTrue)
		})

		Convey("When users are backed up without encryption", func() {
			draft := validBackupDraft()
			draft.ContentTypes = []domain.ContentType{domain.ContentUsers}
			v := ValidateBackupJob(draft)

			So(v.IsValid, ShouldBeTrue)
			So(v.HasWarning("encryptionEnabled"), ShouldBeTrue)

			draft.EncryptionEnabled = true
			So(ValidateBackupJob(draft).HasWarning("encryptionEnabled"), ShouldBeFalse)
		})

		Convey("When the schedule is structurally incomplete", func() {
			draft := validBackupDraft()
			draft.Schedule.Frequency = domain.FrequencyWeekly
			So(ValidateBackupJob(draft).HasError("schedule.dayOfWeek"), ShouldBeTrue)

			draft.Schedule.Frequency = domain.FrequencyCustom
			draft.Schedule.CustomCron = "every tuesday"
			So(ValidateBackupJob(draft).HasError("schedule.customCron"), ShouldBeTrue)

			draft = validBackupDraft()
			draft.Schedule.Frequency = domain.FrequencyCustom
			draft.Schedule.CustomCron = "30 4 * * 1"
			So(ValidateBackupJob(draft).IsValid, ShouldBeTrue)

			draft.Schedule.Time = ""
			So(ValidateBackupJob(draft).HasError("schedule.time"), ShouldBeTrue)

			draft = validBackupDraft()
			draft.Schedule.Timezone = "Nowhere/Special"
			So(ValidateBackupJob(draft).HasError("schedule.timezone"), ShouldBeTrue)
		})

		Convey("When the draft is completely empty it should not panic", func() {
			So(func() { ValidateBackupJob(domain.BackupJob{}) }, ShouldNotPanic)
			So(ValidateBackupJob(domain.BackupJob{}).IsValid, ShouldBeFalse)
		})
	})
}

func TestValidateExportJob(t *testing.T) {
	Convey("Given an export job draft", t, func() {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		draft := domain.ExportJob{
			Name:         "Animals CSV",
			ContentTypes: []domain.ContentType{domain.ContentAnimals},
			Format:       domain.FormatCSV,
			DateRange:    &domain.DateRange{StartDate: start, EndDate: start.AddDate(0, 1, 0)},
		}

		So(ValidateExportJob(draft).IsValid, ShouldBeTrue)

		Convey("When the range is inverted", func() {
			draft.DateRange = &domain.DateRange{StartDate: start, EndDate: start}
			v := ValidateExportJob(draft)
			So(errorFields(v), ShouldResemble, []string{"dateRange"})
		})

		Convey("When the range spans more than a year", func() {
			draft.DateRange = &domain.DateRange{StartDate: start, EndDate: start.AddDate(2, 0, 0)}
			v := ValidateExportJob(draft)
			So(v.IsValid, ShouldBeTrue)
			So(v.HasWarning("dateRange"), ShouldBeTrue)
		})

		Convey("When name, content types and format are missing", func() {
			v := ValidateExportJob(domain.ExportJob{})
			So(errorFields(v), ShouldResemble, []string{"name", "contentTypes", "format"})
		})
	})
}

func TestValidateImportAndMigration(t *testing.T) {
	Convey("Given import and migration drafts", t, func() {
		imp := domain.ImportJob{
			Name:               "Volunteers",
			Filename:           "volunteers.csv",
			Format:             domain.FormatCSV,
			ContentType:        domain.ContentVolunteers,
			ConflictResolution: domain.ConflictResolution{Strategy: domain.ConflictSkip},
		}
		So(ValidateImportJob(imp).IsValid, ShouldBeTrue)

		imp.Format = domain.FormatPDF
		So(ValidateImportJob(imp).HasError("format"), ShouldBeTrue)

		mig := domain.MigrationJob{
			Name:              "Promote",
			SourceEnvironment: "staging",
			TargetEnvironment: "staging",
			ContentTypes:      []domain.ContentType{domain.ContentBlog},
			MigrationStrategy: domain.MigrationStrategy{HandleConflicts: domain.ConflictMerge, CreateBackup: true, PreserveRelationships: true},
		}
		So(ValidateMigrationJob(mig).HasError("targetEnvironment"), ShouldBeTrue)

		mig.TargetEnvironment = "production"
		So(ValidateMigrationJob(mig).IsValid, ShouldBeTrue)

		mig.MigrationStrategy.HandleConflicts = domain.ConflictCreateNew
		So(ValidateMigrationJob(mig).HasError("migrationStrategy.handleConflicts"), ShouldBeTrue)
	})
}
