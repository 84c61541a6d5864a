package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func TestArtifactNames(t *testing.T) {
	Convey("Artifact names should round-trip their timestamp", t, func() {
		at := time.Date(2024, 3, 5, 7, 8, 9, 0, time.FixedZone("WIB", 7*3600))
		name := artifactName("backups", "Nightly Blog & Animals!", at, ".json.gz")
		So(name, ShouldEqual, "backups/nightly-blog-animals_20240305_000809.json.gz")

		got, err := extractTimestamp(name)
		So(err, ShouldBeNil)
		So(got.Equal(at), ShouldBeTrue)
	})

	Convey("Names without letters should fall back to a default slug", t, func() {
		So(slugify("!!!"), ShouldEqual, "job")
	})

	Convey("Files without a timestamp should be reported", t, func() {
		_, err := extractTimestamp("backups/readme.txt")
		So(err, ShouldNotBeNil)
	})

	Convey("Short ids should keep the first uuid block", t, func() {
		So(shortID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"), ShouldEqual, "1b4e28ba")
		So(shortID("plain"), ShouldEqual, "plain")
	})
}

type errorLog struct {
	nopLogger
	lines []string
}

func (l *errorLog) Errorf(template string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(template, args...))
}

func TestRunOutcome(t *testing.T) {
	Convey("A cancelled context should end a run cancelled, anything else in error", t, func() {
		So(failedStatus(fmt.Errorf("read blog: %w", context.Canceled)), ShouldEqual, domain.ExecutionCancelled)
		So(failedStatus(context.DeadlineExceeded), ShouldEqual, domain.ExecutionError)
		So(failedStatus(errors.New("disk full")), ShouldEqual, domain.ExecutionError)
	})

	Convey("Settling a finished run again should be logged, not dropped", t, func() {
		log := &errorLog{}
		status := domain.ExecutionRunning

		settle(log, "Blog", &status, domain.ExecutionCompleted)
		So(status, ShouldEqual, domain.ExecutionCompleted)
		So(log.lines, ShouldBeEmpty)

		settle(log, "Blog", &status, domain.ExecutionError)
		So(status, ShouldEqual, domain.ExecutionCompleted)
		So(len(log.lines), ShouldEqual, 1)
		So(log.lines[0], ShouldContainSubstring, "[Blog] invalid status transition completed -> error")
	})
}
