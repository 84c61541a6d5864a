// Package codec serialises record datasets to the artifact formats.
package codec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/semmidev/harmony/internal/domain"
)

// DatasetVersion is written into every artifact header.
const DatasetVersion = "1"

var (
	ErrUnknownFormat = errors.New("unknown format")
	// ErrNotDecodable is returned for render-only formats.
	ErrNotDecodable = errors.New("format cannot be decoded")
)

// Collection holds the records of one content type. Imports of plain files
// decode into a single collection with an empty ContentType.
type Collection struct {
	ContentType domain.ContentType `json:"contentType"`
	Records     []domain.Record    `json:"records"`
}

// Dataset is the logical content of an artifact.
type Dataset struct {
	Version     string       `json:"version"`
	Collections []Collection `json:"collections"`
}

func (d Dataset) RecordCount() int {
	n := 0
	for _, c := range d.Collections {
		n += len(c.Records)
	}
	return n
}

// Records returns every record of ct across collections.
func (d Dataset) Records(ct domain.ContentType) []domain.Record {
	var out []domain.Record
	for _, c := range d.Collections {
		if c.ContentType == ct {
			out = append(out, c.Records...)
		}
	}
	return out
}

func (d Dataset) ContentTypes() []domain.ContentType {
	types := make([]domain.ContentType, 0, len(d.Collections))
	for _, c := range d.Collections {
		if !slices.Contains(types, c.ContentType) {
			types = append(types, c.ContentType)
		}
	}
	return types
}

type Codec interface {
	Format() domain.Format
	Extension() string
	Encode(ds Dataset) ([]byte, error)
	Decode(data []byte) (Dataset, error)
}

// For returns the codec of a format.
func For(format domain.Format) (Codec, error) {
	switch format {
	case domain.FormatJSON:
		return JSON{}, nil
	case domain.FormatCSV:
		return CSV{}, nil
	case domain.FormatXML:
		return XML{}, nil
	case domain.FormatSQL:
		return SQL{}, nil
	case domain.FormatPDF:
		return PDF{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// groupBy appends rec to the collection of ct, creating it on first use.
func groupBy(collections []Collection, ct domain.ContentType, rec domain.Record) []Collection {
	for i := range collections {
		if collections[i].ContentType == ct {
			collections[i].Records = append(collections[i].Records, rec)
			return collections
		}
	}
	return append(collections, Collection{ContentType: ct, Records: []domain.Record{rec}})
}

func sortedKeys(rec domain.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
