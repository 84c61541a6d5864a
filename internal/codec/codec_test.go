package codec

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/harmony/internal/domain"
)

func sampleDataset() Dataset {
	return Dataset{
		Version: DatasetVersion,
		Collections: []Collection{
			{
				ContentType: domain.ContentAnimals,
				Records: []domain.Record{
					{"id": "a1", "name": "Bella", "species": "cow"},
					{"id": "a2", "name": "O'Malley, Jr.", "species": "goat", "notes": "line one\nline two"},
				},
			},
			{
				ContentType: domain.ContentBlog,
				Records: []domain.Record{
					{"id": "b1", "title": `Say "moo"`},
				},
			},
		},
	}
}

func TestTextCodecsRoundTrip(t *testing.T) {
	Convey("Given a dataset of string-valued records", t, func() {
		ds := sampleDataset()

		for _, format := range []domain.Format{domain.FormatJSON, domain.FormatCSV, domain.FormatXML, domain.FormatSQL} {
			c, err := For(format)
			So(err, ShouldBeNil)

			data, err := c.Encode(ds)
			So(err, ShouldBeNil)

			decoded, err := c.Decode(data)
			So(err, ShouldBeNil)
			So(decoded.RecordCount(), ShouldEqual, 3)
			So(decoded.Records(domain.ContentAnimals), ShouldResemble, ds.Collections[0].Records)
			So(decoded.Records(domain.ContentBlog), ShouldResemble, ds.Collections[1].Records)
		}
	})
}

func TestJSONCodec(t *testing.T) {
	Convey("Given the JSON codec", t, func() {
		c := JSON{}

		Convey("When decoding a bare array of records", func() {
			ds, err := c.Decode([]byte(`[{"id":"v1","email":"a@b.c","hours":12}]`))

			Convey("It should produce one untyped collection", func() {
				So(err, ShouldBeNil)
				So(ds.Collections, ShouldHaveLength, 1)
				So(ds.Collections[0].ContentType, ShouldEqual, domain.ContentType(""))
				So(ds.Collections[0].Records[0]["email"], ShouldEqual, "a@b.c")
			})

			Convey("It should keep numbers exact when re-encoded", func() {
				data, err := c.Encode(ds)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"hours": 12`)
			})
		})

		Convey("When decoding garbage", func() {
			_, err := c.Decode([]byte(`{"version":`))
			So(err, ShouldNotBeNil)

			_, err = c.Decode([]byte("   "))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCSVCodec(t *testing.T) {
	Convey("Given the CSV codec", t, func() {
		c := CSV{}

		Convey("When the header has no content_type column", func() {
			ds, err := c.Decode([]byte("id,email\nv1,a@b.c\nv2,\n"))

			So(err, ShouldBeNil)
			So(ds.Collections, ShouldHaveLength, 1)
			So(ds.Collections[0].Records, ShouldResemble, []domain.Record{
				{"id": "v1", "email": "a@b.c"},
				{"id": "v2"},
			})
		})

		Convey("When rows are ragged", func() {
			_, err := c.Decode([]byte("id,email\nv1\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("When the document is empty", func() {
			_, err := c.Decode(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("When encoding, id comes right after content_type", func() {
			data, err := c.Encode(sampleDataset())
			So(err, ShouldBeNil)
			So(string(data), ShouldStartWith, "content_type,id,")
		})
	})
}

func TestSQLCodec(t *testing.T) {
	Convey("Given the SQL codec", t, func() {
		c := SQL{}

		Convey("When decoding hand-written statements", func() {
			src := `-- dump
insert into "faq" ("id", "question", "order") values ('f1', 'It''s open?', 3);
INSERT INTO "faq" ("id", "question", "order") VALUES ('f2', 'Hours', NULL);
`
			ds, err := c.Decode([]byte(src))

			So(err, ShouldBeNil)
			So(ds.Records(domain.ContentFAQ), ShouldResemble, []domain.Record{
				{"id": "f1", "question": "It's open?", "order": "3"},
				{"id": "f2", "question": "Hours", "order": nil},
			})
		})

		Convey("When a statement is truncated", func() {
			_, err := c.Decode([]byte(`INSERT INTO "faq" ("id") VALUES ('f1'`))
			So(err, ShouldNotBeNil)
		})

		Convey("When a collection has no content type", func() {
			_, err := c.Encode(Dataset{Collections: []Collection{{Records: []domain.Record{{"id": "x"}}}}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPDFCodec(t *testing.T) {
	Convey("Given the PDF codec", t, func() {
		c := PDF{}

		data, err := c.Encode(sampleDataset())
		So(err, ShouldBeNil)
		So(IsPDF(data), ShouldBeTrue)

		_, err = c.Decode(data)
		So(err, ShouldEqual, ErrNotDecodable)
	})
}

func TestFor(t *testing.T) {
	Convey("Unknown formats are rejected", t, func() {
		_, err := For("yaml")
		So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
	})
}
