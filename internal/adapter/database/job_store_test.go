package database

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func openJobStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewJobStore(db)
}

func TestExportJobs(t *testing.T) {
	Convey("Given stored export jobs", t, func() {
		store := openJobStore(t)
		ctx := context.Background()

		expired := base.Add(-time.Hour)
		live := base.Add(time.Hour)
		jobs := []*domain.ExportJob{
			{ID: "old", Name: "old", Status: domain.ExecutionCompleted, ExpiresAt: &expired, CreatedAt: base},
			{ID: "live", Name: "live", Status: domain.ExecutionCompleted, ExpiresAt: &live, CreatedAt: base},
			{ID: "pending", Name: "pending", Status: domain.ExecutionPending, CreatedAt: base},
		}
		for _, j := range jobs {
			So(store.CreateExportJob(ctx, j), ShouldBeNil)
		}

		Convey("When expired exports are listed", func() {
			list, err := store.ListExpiredExports(ctx, base)

			Convey("It should return only completed exports past their expiry", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				So(list[0].ID, ShouldEqual, "old")
			})
		})

		Convey("When an export is updated", func() {
			jobs[2].Status = domain.ExecutionCompleted
			jobs[2].ExpiresAt = &expired
			jobs[2].Filters = domain.ExportFilters{Tags: []string{"goats"}}
			So(store.UpdateExportJob(ctx, jobs[2]), ShouldBeNil)

			got, err := store.GetExportJob(ctx, "pending")
			So(err, ShouldBeNil)
			So(got.Filters.Tags, ShouldResemble, []string{"goats"})

			list, err := store.ListExpiredExports(ctx, base)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
		})

		Convey("When a missing export is read it should report not found", func() {
			_, err := store.GetExportJob(ctx, "nope")
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestImportAndMigrationJobs(t *testing.T) {
	Convey("Given the job store", t, func() {
		store := openJobStore(t)
		ctx := context.Background()

		Convey("Import jobs should round trip without their preview", func() {
			job := &domain.ImportJob{
				ID:          "imp-1",
				Name:        "volunteers",
				Format:      domain.FormatCSV,
				ContentType: domain.ContentVolunteers,
				Status:      domain.ExecutionPending,
				Preview:     &domain.ImportPreview{TotalRecords: 3},
				CreatedAt:   base,
			}
			So(store.CreateImportJob(ctx, job), ShouldBeNil)

			job.Status = domain.ExecutionCompleted
			job.Results = &domain.ImportResults{RecordsImported: 3, RecordsCreated: 3}
			So(store.UpdateImportJob(ctx, job), ShouldBeNil)

			got, err := store.GetImportJob(ctx, "imp-1")
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, domain.ExecutionCompleted)
			So(got.Results.RecordsCreated, ShouldEqual, 3)
			So(got.Preview, ShouldBeNil)
		})

		Convey("Migration jobs should round trip", func() {
			job := &domain.MigrationJob{
				ID:                "mig-1",
				Name:              "promote",
				SourceEnvironment: "staging",
				TargetEnvironment: "production",
				ContentTypes:      []domain.ContentType{domain.ContentBlog},
				Status:            domain.ExecutionPending,
				CreatedAt:         base,
			}
			So(store.CreateMigrationJob(ctx, job), ShouldBeNil)

			job.Results = &domain.MigrationResults{
				RecordsMigrated: 2,
				ByContentType:   map[domain.ContentType]domain.ContentTypeResult{domain.ContentBlog: {Migrated: 2}},
			}
			So(store.UpdateMigrationJob(ctx, job), ShouldBeNil)

			got, err := store.GetMigrationJob(ctx, "mig-1")
			So(err, ShouldBeNil)
			So(got.Results.ByContentType[domain.ContentBlog].Migrated, ShouldEqual, 2)

			err = store.UpdateMigrationJob(ctx, &domain.MigrationJob{ID: "nope"})
			So(errors.Is(err, domain.ErrNotFound), ShouldBeTrue)
		})
	})
}
