package retention

import (
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func filesNewestFirst(jobID string, n int, now time.Time, step time.Duration) []domain.BackupFile {
	files := make([]domain.BackupFile, n)
	for i := range files {
		files[i] = domain.BackupFile{
			ID:        fmt.Sprintf("%s-%d", jobID, i),
			JobID:     jobID,
			CreatedAt: now.Add(-time.Duration(i+1) * step),
		}
	}
	return files
}

func TestShouldCleanup(t *testing.T) {
	Convey("Given five files of one job, newest first", t, func() {
		now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		files := filesNewestFirst("job", 5, now, time.Hour)

		Convey("With maxBackups=3 only the two oldest are flagged", func() {
			var flagged []string
			for _, f := range files {
				if ShouldCleanup(f, 30, 3, files, now) {
					flagged = append(flagged, f.ID)
				}
			}
			So(flagged, ShouldResemble, []string{"job-3", "job-4"})
		})

		Convey("Files of other jobs do not count towards the rank", func() {
			others := filesNewestFirst("other", 5, now, time.Minute)
			all := append(append([]domain.BackupFile{}, others...), files...)
			So(ShouldCleanup(files[2], 30, 3, all, now), ShouldBeFalse)
		})

		Convey("A file past the retention window is flagged regardless of rank", func() {
			old := domain.BackupFile{ID: "old", JobID: "job", CreatedAt: now.Add(-48 * time.Hour)}
			So(ShouldCleanup(old, 1, 100, []domain.BackupFile{old}, now), ShouldBeTrue)
		})

		Convey("A file exactly at the window edge is kept", func() {
			edge := domain.BackupFile{ID: "edge", JobID: "job", CreatedAt: now.Add(-24 * time.Hour)}
			So(ShouldCleanup(edge, 1, 100, nil, now), ShouldBeFalse)
		})
	})
}

func TestEligibleFiles(t *testing.T) {
	Convey("Given a job keeping three backups for thirty days", t, func() {
		now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		files := filesNewestFirst("job", 5, now, time.Hour)
		policy := PolicyOf(&domain.BackupJob{RetentionDays: 30, MaxBackups: 3})

		Convey("It should return exactly the two oldest, oldest first", func() {
			eligible := EligibleFiles(files, policy, now)

			So(eligible, ShouldHaveLength, 2)
			So(eligible[0].ID, ShouldEqual, "job-4")
			So(eligible[1].ID, ShouldEqual, "job-3")
		})

		Convey("It should not depend on input order", func() {
			shuffled := []domain.BackupFile{files[3], files[0], files[4], files[2], files[1]}
			So(EligibleFiles(shuffled, policy, now), ShouldResemble, EligibleFiles(files, policy, now))
		})

		Convey("It should agree with ShouldCleanup", func() {
			eligible := EligibleFiles(files, policy, now)
			for _, f := range files {
				flagged := ShouldCleanup(f, policy.RetentionDays, policy.MaxBackups, files, now)
				found := false
				for _, e := range eligible {
					found = found || e.ID == f.ID
				}
				So(flagged, ShouldEqual, found)
			}
		})

		Convey("It should return nothing when under both limits", func() {
			So(EligibleFiles(files[:2], policy, now), ShouldBeEmpty)
		})
	})
}
