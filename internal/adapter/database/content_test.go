package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func TestSQLiteContent(t *testing.T) {
	Convey("Given a sqlite content store", t, func() {
		db, err := Open(":memory:")
		So(err, ShouldBeNil)
		defer db.Close()

		content := NewSQLiteContent(db)
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			r := domain.Record{"id": fmt.Sprintf("a%d", i), "name": fmt.Sprintf("Goat %d", i), "species": "goat", "age": i}
			So(content.Upsert(ctx, domain.ContentAnimals, r), ShouldBeNil)
		}
		So(content.Upsert(ctx, domain.ContentBlog, domain.Record{"id": "p1", "title": "Hello"}), ShouldBeNil)

		Convey("Count should be per content type", func() {
			n, err := content.Count(ctx, domain.ContentAnimals)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)

			n, err = content.Count(ctx, domain.ContentFAQ)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("StreamRecords should page in id order", func() {
			var sizes []int
			var ids []string
			err := content.StreamRecords(ctx, domain.ContentAnimals, 2, func(batch []domain.Record) error {
				sizes = append(sizes, len(batch))
				for _, r := range batch {
					ids = append(ids, r.ID())
				}
				return nil
			})
			So(err, ShouldBeNil)
			So(sizes, ShouldResemble, []int{2, 2, 1})
			So(ids, ShouldResemble, []string{"a1", "a2", "a3", "a4", "a5"})
		})

		Convey("StreamRecords should stop on a callback error", func() {
			stop := errors.New("stop")
			calls := 0
			err := content.StreamRecords(ctx, domain.ContentAnimals, 2, func([]domain.Record) error {
				calls++
				return stop
			})
			So(errors.Is(err, stop), ShouldBeTrue)
			So(calls, ShouldEqual, 1)
		})

		Convey("Get should keep numbers exact and report absence", func() {
			r, ok, err := content.Get(ctx, domain.ContentAnimals, "a3")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(r["age"], ShouldEqual, json.Number("3"))

			_, ok, err = content.Get(ctx, domain.ContentAnimals, "zz")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Upsert should replace an existing record", func() {
			So(content.Upsert(ctx, domain.ContentAnimals, domain.Record{"id": "a1", "name": "Renamed", "species": "goat"}), ShouldBeNil)

			r, _, err := content.Get(ctx, domain.ContentAnimals, "a1")
			So(err, ShouldBeNil)
			So(r["name"], ShouldEqual, "Renamed")
			_, hasAge := r["age"]
			So(hasAge, ShouldBeFalse)

			n, _ := content.Count(ctx, domain.ContentAnimals)
			So(n, ShouldEqual, 5)
		})

		Convey("Upsert should reject records without an id", func() {
			err := content.Upsert(ctx, domain.ContentAnimals, domain.Record{"name": "Anon"})
			So(errors.Is(err, ErrMissingID), ShouldBeTrue)
		})

		Convey("Ping should succeed", func() {
			So(content.Ping(ctx), ShouldBeNil)
		})
	})
}
