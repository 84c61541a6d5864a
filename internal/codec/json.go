package codec

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/semmidev/harmony/internal/domain"
)

// JSON keeps JSON value types. Numbers decode as json.Number so they
// re-encode exactly.
type JSON struct{}

func (JSON) Format() domain.Format { return domain.FormatJSON }
func (JSON) Extension() string     { return ".json" }

func (JSON) Encode(ds Dataset) ([]byte, error) {
	if ds.Version == "" {
		ds.Version = DatasetVersion
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	return data, nil
}

// Decode accepts either a dataset document or a bare array of records.
func (JSON) Decode(data []byte) (Dataset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Dataset{}, fmt.Errorf("decode json: empty document")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var records []domain.Record
		if err := dec.Decode(&records); err != nil {
			return Dataset{}, fmt.Errorf("decode json records: %w", err)
		}
		return Dataset{Version: DatasetVersion, Collections: []Collection{{Records: records}}}, nil
	}

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode json dataset: %w", err)
	}
	if ds.Version == "" {
		return Dataset{}, fmt.Errorf("decode json dataset: missing version")
	}
	return ds, nil
}
