package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/semmidev/harmony/internal/domain"
)

type xmlDataset struct {
	XMLName     xml.Name        `xml:"dataset"`
	Version     string          `xml:"version,attr"`
	Collections []xmlCollection `xml:"collection"`
}

type xmlCollection struct {
	Type    string      `xml:"type,attr"`
	Records []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Null  bool   `xml:"null,attr,omitempty"`
	Value string `xml:",chardata"`
}

// XML writes <dataset><collection type=".."><record><field name="..">.
// Values are text; nil values are marked null="true".
type XML struct{}

func (XML) Format() domain.Format { return domain.FormatXML }
func (XML) Extension() string     { return ".xml" }

func (XML) Encode(ds Dataset) ([]byte, error) {
	doc := xmlDataset{Version: ds.Version}
	if doc.Version == "" {
		doc.Version = DatasetVersion
	}

	for _, c := range ds.Collections {
		xc := xmlCollection{Type: string(c.ContentType)}
		for _, rec := range c.Records {
			var xr xmlRecord
			for _, k := range sortedKeys(rec) {
				v := rec[k]
				xr.Fields = append(xr.Fields, xmlField{Name: k, Null: v == nil, Value: scalarText(v)})
			}
			xc.Records = append(xc.Records, xr)
		}
		doc.Collections = append(doc.Collections, xc)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (XML) Decode(data []byte) (Dataset, error) {
	var doc xmlDataset
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Dataset{}, fmt.Errorf("decode xml: %w", err)
	}

	ds := Dataset{Version: doc.Version, Collections: []Collection{}}
	for _, xc := range doc.Collections {
		c := Collection{ContentType: domain.ContentType(xc.Type), Records: []domain.Record{}}
		for _, xr := range xc.Records {
			rec := make(domain.Record, len(xr.Fields))
			for _, f := range xr.Fields {
				if f.Null {
					rec[f.Name] = nil
					continue
				}
				rec[f.Name] = f.Value
			}
			c.Records = append(c.Records, rec)
		}
		ds.Collections = append(ds.Collections, c)
	}
	return ds, nil
}
