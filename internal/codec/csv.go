package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/semmidev/harmony/internal/domain"
)

// ContentTypeColumn tags each CSV row with its collection.
const ContentTypeColumn = "content_type"

// CSV writes one header row with the union of all fields. Values are text;
// empty cells decode as absent fields.
type CSV struct{}

func (CSV) Format() domain.Format { return domain.FormatCSV }
func (CSV) Extension() string     { return ".csv" }

func (CSV) Encode(ds Dataset) ([]byte, error) {
	var columns []string
	for _, c := range ds.Collections {
		for _, rec := range c.Records {
			for k := range rec {
				if !slices.Contains(columns, k) {
					columns = append(columns, k)
				}
			}
		}
	}
	slices.Sort(columns)
	if i := slices.Index(columns, domain.IDField); i > 0 {
		columns = slices.Delete(columns, i, i+1)
		columns = slices.Insert(columns, 0, domain.IDField)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{ContentTypeColumn}, columns...)); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(columns)+1)
	for _, c := range ds.Collections {
		for _, rec := range c.Records {
			row[0] = string(c.ContentType)
			for i, col := range columns {
				row[i+1] = scalarText(rec[col])
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode requires a header row and equally wide rows. Without a
// content_type column all rows land in one untyped collection.
func (CSV) Decode(data []byte) (Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("decode csv: empty document")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("decode csv header: %w", err)
	}
	typeCol := slices.Index(header, ContentTypeColumn)

	ds := Dataset{Version: DatasetVersion}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("decode csv: %w", err)
		}

		rec := make(domain.Record, len(header))
		var ct domain.ContentType
		for i, cell := range row {
			if i == typeCol {
				ct = domain.ContentType(cell)
				continue
			}
			if cell != "" {
				rec[header[i]] = cell
			}
		}
		ds.Collections = groupBy(ds.Collections, ct, rec)
	}

	if len(ds.Collections) == 0 {
		ds.Collections = []Collection{}
	}
	return ds, nil
}
