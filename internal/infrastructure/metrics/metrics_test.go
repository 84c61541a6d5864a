package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetrics(t *testing.T) {
	Convey("Given fresh metrics", t, func() {
		m := New()

		Convey("When executions are observed", func() {
			m.ObserveExecution("backup", "completed", 2*time.Second)
			m.ObserveExecution("backup", "completed", time.Second)
			m.ObserveExecution("backup", "error", time.Second)
			m.AddArtifactBytes("backup", 2048)
			m.AddArtifactBytes("backup", -1)
			m.AddPurged(3)

			Convey("It should count per kind and status", func() {
				So(testutil.ToFloat64(m.executionsTotal.WithLabelValues("backup", "completed")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.executionsTotal.WithLabelValues("backup", "error")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.artifactBytes.WithLabelValues("backup")), ShouldEqual, 2048)
				So(testutil.ToFloat64(m.filesPurged), ShouldEqual, 3)
			})

			Convey("It should expose them over HTTP", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

				So(rec.Code, ShouldEqual, 200)
				So(rec.Body.String(), ShouldContainSubstring, `harmony_executions_total{kind="backup",status="completed"} 2`)
			})
		})
	})
}
