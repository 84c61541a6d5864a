package usecase

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func TestHealthCheck(t *testing.T) {
	Convey("Given an empty catalog", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		now := f.clock.Now()

		h := NewHealth(f.backups, f.storage, 0)
		h.now = f.clock.Now

		Convey("The schedule should warn that nothing is active", func() {
			check, err := h.HealthCheck(ctx)
			So(err, ShouldBeNil)
			So(check.Storage.Health, ShouldEqual, domain.HealthHealthy)
			So(check.Verification.Health, ShouldEqual, domain.HealthHealthy)
			So(check.Schedule.Health, ShouldEqual, domain.HealthWarning)
			So(check.OverallHealth, ShouldEqual, domain.HealthWarning)
		})

		Convey("With an active job and a verified file", func() {
			job := storeJob(t, f, "job-1", 5)
			next := now.Add(time.Hour)
			job.NextRun = &next
			So(f.backups.UpdateBackupJob(ctx, job), ShouldBeNil)

			file := storeFile(t, f, job.ID, "f1", now.Add(-time.Hour))
			So(f.backups.AddVerification(ctx, &domain.BackupVerification{
				ID:           "v1",
				BackupFileID: file.ID,
				VerifiedAt:   now,
				Status:       domain.VerificationPassed,
				Score:        100,
			}, true), ShouldBeNil)

			Convey("Everything should be healthy", func() {
				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.OverallHealth, ShouldEqual, domain.HealthHealthy)
				So(check.Storage.FileCount, ShouldEqual, 1)
				So(check.Storage.UsedBytes, ShouldEqual, int64(32))
				So(check.Schedule.ActiveJobs, ShouldEqual, 1)
				So(check.Verification.VerifiedFiles, ShouldEqual, 1)
			})

			Convey("A missed run should make the schedule warn", func() {
				f.clock.Set(now.Add(3 * time.Hour))
				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.Schedule.OverdueJobs, ShouldEqual, 1)
				So(check.Schedule.Health, ShouldEqual, domain.HealthWarning)
			})

			Convey("A missing artifact should make storage warn", func() {
				So(f.storage.Delete(ctx, file.Filename), ShouldBeNil)
				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.Storage.Health, ShouldEqual, domain.HealthWarning)
				So(check.Storage.Issues, ShouldNotBeEmpty)
			})

			Convey("Exceeding the quota should be critical", func() {
				h.quota = 16
				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.Storage.Health, ShouldEqual, domain.HealthCritical)
				So(check.OverallHealth, ShouldEqual, domain.HealthCritical)
			})

			Convey("Nearing the quota should warn", func() {
				h.quota = 36
				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.Storage.Health, ShouldEqual, domain.HealthWarning)
			})

			Convey("A failed job and a failed verdict should be critical", func() {
				job.Status = domain.JobError
				job.LastError = "boom"
				So(f.backups.UpdateBackupJob(ctx, job), ShouldBeNil)
				So(f.backups.AddVerification(ctx, &domain.BackupVerification{
					ID:           "v2",
					BackupFileID: file.ID,
					VerifiedAt:   now.Add(time.Minute),
					Status:       domain.VerificationFailed,
					Score:        40,
				}, false), ShouldBeNil)

				check, err := h.HealthCheck(ctx)
				So(err, ShouldBeNil)
				So(check.Schedule.FailedJobs, ShouldEqual, 1)
				So(check.Schedule.Health, ShouldEqual, domain.HealthCritical)
				So(check.Verification.FailedVerifications, ShouldEqual, 1)
				So(check.Verification.Health, ShouldEqual, domain.HealthCritical)
				So(check.OverallHealth, ShouldEqual, domain.HealthCritical)
			})
		})
	})
}
