package lock

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMemory(t *testing.T) {
	Convey("Given an in-memory locker", t, func() {
		l := NewMemory()
		ctx := context.Background()

		Convey("When disjoint keys are locked", func() {
			releaseA, err := l.Lock(ctx, "animals")
			So(err, ShouldBeNil)
			releaseB, err := l.Lock(ctx, "blog")
			So(err, ShouldBeNil)

			Convey("Both should be held at once", func() {
				releaseA()
				releaseB()
			})
		})

		Convey("When an overlapping key is already held", func() {
			release, err := l.Lock(ctx, "blog", "animals")
			So(err, ShouldBeNil)

			Convey("A second writer should wait until it is released", func() {
				acquired := make(chan struct{})
				go func() {
					r, err := l.Lock(ctx, "animals", "faq")
					if err == nil {
						close(acquired)
						r()
					}
				}()

				select {
				case <-acquired:
					t.Fatal("lock acquired while held")
				case <-time.After(50 * time.Millisecond):
				}

				release()

				select {
				case <-acquired:
				case <-time.After(time.Second):
					t.Fatal("lock not acquired after release")
				}
			})

			Convey("A writer whose context ends should give up and hold nothing", func() {
				tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()

				_, err := l.Lock(tctx, "faq", "blog")
				So(err, ShouldEqual, context.DeadlineExceeded)

				release()

				r, err := l.Lock(ctx, "faq")
				So(err, ShouldBeNil)
				r()
			})
		})

		Convey("Releasing twice is harmless", func() {
			release, err := l.Lock(ctx, "users", "users")
			So(err, ShouldBeNil)
			release()
			release()

			r, err := l.Lock(ctx, "users")
			So(err, ShouldBeNil)
			r()
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Keys are sorted and de-duplicated", t, func() {
		So(normalize([]string{"users", "animals", "users"}), ShouldResemble, []string{"animals", "users"})
	})
}
