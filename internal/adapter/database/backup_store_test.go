package database

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func openTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

var base = time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

func testJob(id string) *domain.BackupJob {
	return &domain.BackupJob{
		ID:           id,
		Name:         "Nightly " + id,
		Type:         domain.BackupFull,
		ContentTypes: []domain.ContentType{domain.ContentAnimals},
		Schedule: domain.BackupSchedule{
			Frequency: domain.FrequencyDaily,
			Time:      "02:00",
			Timezone:  "UTC",
			Enabled:   true,
		},
		Status:        domain.JobActive,
		RetentionDays: 30,
		MaxBackups:    5,
		CreatedAt:     base,
		UpdatedAt:     base,
	}
}

func testFile(id, jobID string, at time.Time) *domain.BackupFile {
	return &domain.BackupFile{
		ID:           id,
		JobID:        jobID,
		ExecutionID:  "exec-" + id,
		Name:         "file " + id,
		Filename:     id + ".json",
		Size:         42,
		CreatedAt:    at,
		Type:         domain.BackupFull,
		ContentTypes: []domain.ContentType{domain.ContentAnimals},
		Format:       domain.FormatJSON,
		Checksum:     "abc",
	}
}

func TestBackupJobs(t *testing.T) {
	Convey("Given an empty catalog", t, func() {
		store := openTestDB(t)
		ctx := context.Background()

		Convey("When a job is created", func() {
			job := testJob("job-1")
			day := 3
			job.Schedule.DayOfWeek = &day
			So(store.CreateBackupJob(ctx, job), ShouldBeNil)

			Convey("It should read back unchanged", func() {
				got, err := store.GetBackupJob(ctx, "job-1")
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, job.Name)
				So(got.ContentTypes, ShouldResemble, job.ContentTypes)
				So(*got.Schedule.DayOfWeek, ShouldEqual, 3)
				So(got.CreatedAt.Equal(base), ShouldBeTrue)
			})

			Convey("It should reflect updates", func() {
				job.Status = domain.JobPaused
				So(store.UpdateBackupJob(ctx, job), ShouldBeNil)

				got, err := store.GetBackupJob(ctx, "job-1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, domain.JobPaused)
			})

			Convey("It should be gone after delete", func() {
				So(store.DeleteBackupJob(ctx, "job-1"), ShouldBeNil)

				_, err := store.GetBackupJob(ctx, "job-1")
				So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When jobs are listed they should come back in creation order", func() {
			second := testJob("job-b")
			second.CreatedAt = base.Add(time.Hour)
			So(store.CreateBackupJob(ctx, second), ShouldBeNil)
			So(store.CreateBackupJob(ctx, testJob("job-a")), ShouldBeNil)

			jobs, err := store.ListBackupJobs(ctx)
			So(err, ShouldBeNil)
			So(len(jobs), ShouldEqual, 2)
			So(jobs[0].ID, ShouldEqual, "job-a")
			So(jobs[1].ID, ShouldEqual, "job-b")
		})

		Convey("When a missing job is touched it should report not found", func() {
			_, err := store.GetBackupJob(ctx, "nope")
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
			So(errors.Is(store.UpdateBackupJob(ctx, testJob("nope")), domain.ErrNotFound), ShouldBeTrue)
			So(errors.Is(store.DeleteBackupJob(ctx, "nope"), domain.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestFinishExecution(t *testing.T) {
	Convey("Given a job with a running execution", t, func() {
		store := openTestDB(t)
		ctx := context.Background()

		job := testJob("job-1")
		So(store.CreateBackupJob(ctx, job), ShouldBeNil)

		exec := &domain.BackupExecution{ID: "exec-1", JobID: job.ID, Status: domain.ExecutionPending, Logs: []domain.ExecutionLog{}}
		So(exec.Start(base), ShouldBeNil)
		So(store.CreateExecution(ctx, exec), ShouldBeNil)

		Convey("When it completes", func() {
			end := base.Add(time.Minute)
			file := testFile("file-1", job.ID, end)
			So(exec.Complete(end, file.ID), ShouldBeNil)
			job.LastRun = &end
			next := base.Add(24 * time.Hour)
			job.NextRun = &next

			So(store.FinishExecution(ctx, exec, job, file), ShouldBeNil)

			Convey("It should store execution, job and file together", func() {
				gotExec, err := store.GetExecution(ctx, "exec-1")
				So(err, ShouldBeNil)
				So(gotExec.Status, ShouldEqual, domain.ExecutionCompleted)
				So(gotExec.BackupFileID, ShouldEqual, "file-1")

				gotJob, err := store.GetBackupJob(ctx, job.ID)
				So(err, ShouldBeNil)
				So(gotJob.NextRun.Equal(next), ShouldBeTrue)

				gotFile, err := store.GetBackupFile(ctx, "file-1")
				So(err, ShouldBeNil)
				So(gotFile.Verified, ShouldBeFalse)
			})
		})

		Convey("When the job vanished meanwhile", func() {
			So(store.DeleteBackupJob(ctx, job.ID), ShouldBeNil)
			So(exec.Fail(base.Add(time.Second), "boom"), ShouldBeNil)
			err := store.FinishExecution(ctx, exec, job, nil)

			Convey("It should roll back the execution update", func() {
				So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)

				gotExec, err := store.GetExecution(ctx, "exec-1")
				So(err, ShouldBeNil)
				So(gotExec.Status, ShouldEqual, domain.ExecutionRunning)
			})
		})
	})
}

func TestBackupFilesAndVerifications(t *testing.T) {
	Convey("Given stored backup files", t, func() {
		store := openTestDB(t)
		ctx := context.Background()
		So(store.CreateBackupJob(ctx, testJob("job-1")), ShouldBeNil)

		for i, id := range []string{"f1", "f2", "f3"} {
			exec := &domain.BackupExecution{ID: "exec-" + id, JobID: "job-1", Status: domain.ExecutionRunning, StartTime: base}
			So(store.CreateExecution(ctx, exec), ShouldBeNil)
			So(store.FinishExecution(ctx, exec, nil, testFile(id, "job-1", base.Add(time.Duration(i)*time.Hour))), ShouldBeNil)
		}
		other := &domain.BackupExecution{ID: "exec-other", JobID: "job-2", Status: domain.ExecutionRunning, StartTime: base}
		So(store.CreateExecution(ctx, other), ShouldBeNil)
		So(store.FinishExecution(ctx, other, nil, testFile("g1", "job-2", base)), ShouldBeNil)

		Convey("When listed per job they should be newest first", func() {
			files, err := store.ListBackupFiles(ctx, "job-1")
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 3)
			So(files[0].ID, ShouldEqual, "f3")
			So(files[2].ID, ShouldEqual, "f1")

			all, err := store.ListAllBackupFiles(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)
		})

		Convey("When a verification is added", func() {
			at := base.Add(48 * time.Hour)
			v := &domain.BackupVerification{
				ID:           "v1",
				BackupFileID: "f2",
				VerifiedAt:   at,
				Status:       domain.VerificationPassed,
				Score:        100,
				Issues:       []domain.VerificationIssue{},
			}
			So(store.AddVerification(ctx, v, true), ShouldBeNil)

			Convey("It should flag the file as verified", func() {
				file, err := store.GetBackupFile(ctx, "f2")
				So(err, ShouldBeNil)
				So(file.Verified, ShouldBeTrue)
				So(file.VerifiedAt.Equal(at), ShouldBeTrue)
			})

			Convey("It should be the latest until a newer one arrives", func() {
				latest, err := store.LatestVerification(ctx, "f2")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "v1")

				failed := &domain.BackupVerification{
					ID:           "v2",
					BackupFileID: "f2",
					VerifiedAt:   at.Add(time.Hour),
					Status:       domain.VerificationFailed,
				}
				So(store.AddVerification(ctx, failed, false), ShouldBeNil)

				latest, err = store.LatestVerification(ctx, "f2")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "v2")

				file, err := store.GetBackupFile(ctx, "f2")
				So(err, ShouldBeNil)
				So(file.Verified, ShouldBeFalse)

				list, err := store.ListVerifications(ctx, "f2")
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
			})

			Convey("It should disappear with its file", func() {
				So(store.DeleteBackupFile(ctx, "f2"), ShouldBeNil)

				_, err := store.GetBackupFile(ctx, "f2")
				So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
				list, err := store.ListVerifications(ctx, "f2")
				So(err, ShouldBeNil)
				So(list, ShouldBeEmpty)
			})
		})

		Convey("When verifying an unknown file it should report not found", func() {
			err := store.AddVerification(ctx, &domain.BackupVerification{ID: "v9", BackupFileID: "nope", VerifiedAt: base}, true)
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)

			_, err = store.LatestVerification(ctx, "f1")
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
		})

		Convey("When executions are listed they should be newest first", func() {
			later := &domain.BackupExecution{ID: "exec-late", JobID: "job-1", Status: domain.ExecutionRunning, StartTime: base.Add(time.Hour)}
			So(store.CreateExecution(ctx, later), ShouldBeNil)

			execs, err := store.ListExecutions(ctx, "job-1")
			So(err, ShouldBeNil)
			So(len(execs), ShouldEqual, 4)
			So(execs[0].ID, ShouldEqual, "exec-late")
		})
	})
}
