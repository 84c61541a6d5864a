package compressor

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGzipCompressor(t *testing.T) {
	Convey("Given a GzipCompressor", t, func() {
		compressor := NewGzip()

		Convey("Compress method", func() {
			Convey("When compressing a payload", func() {
				inputContent := bytes.Repeat([]byte("This is a test content for compression. "), 50)

				compressed, err := compressor.Compress(inputContent)

				Convey("It should produce a smaller valid gzip stream", func() {
					So(err, ShouldBeNil)
					So(len(compressed), ShouldBeLessThan, len(inputContent))

					gzipReader, err := gzip.NewReader(bytes.NewReader(compressed))
					So(err, ShouldBeNil)
					defer gzipReader.Close()

					decompressedContent, err := io.ReadAll(gzipReader)
					So(err, ShouldBeNil)
					So(decompressedContent, ShouldResemble, inputContent)
				})
			})

			Convey("When compressing an empty payload", func() {
				compressed, err := compressor.Compress(nil)

				Convey("It should still produce a gzip stream", func() {
					So(err, ShouldBeNil)
					So(compressed, ShouldNotBeEmpty)
				})
			})
		})

		Convey("Decompress method", func() {
			Convey("When decompressing a compressed payload", func() {
				inputContent := []byte(`{"version":"1","collections":[]}`)
				compressed, err := compressor.Compress(inputContent)
				So(err, ShouldBeNil)

				out, err := compressor.Decompress(compressed)

				Convey("It should return the original content", func() {
					So(err, ShouldBeNil)
					So(out, ShouldResemble, inputContent)
				})
			})

			Convey("When the payload is not gzip", func() {
				_, err := compressor.Decompress([]byte("plain text"))

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create gzip reader")
				})
			})

			Convey("When the stream is truncated", func() {
				compressed, _ := compressor.Compress(bytes.Repeat([]byte("abc"), 100))
				_, err := compressor.Decompress(compressed[:len(compressed)-6])

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
				})
			})
		})

		Convey("NewGzipLevel", func() {
			_, err := NewGzipLevel(42)
			So(err, ShouldNotBeNil)

			fast, err := NewGzipLevel(gzip.BestSpeed)
			So(err, ShouldBeNil)
			out, err := fast.Compress([]byte("x"))
			So(err, ShouldBeNil)
			So(out, ShouldNotBeEmpty)
		})
	})
}
