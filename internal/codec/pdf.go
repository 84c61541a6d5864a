package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/semmidev/harmony/internal/domain"
)

// PDFMagic starts every PDF document.
var PDFMagic = []byte("%PDF-")

// PDF renders a printable report. It cannot be decoded.
type PDF struct{}

func (PDF) Format() domain.Format { return domain.FormatPDF }
func (PDF) Extension() string     { return ".pdf" }

func (PDF) Encode(ds Dataset) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetBorder(false)

	m.Row(12, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("Harmony export (%d records)", ds.RecordCount()), props.Text{
				Size:  14,
				Style: consts.Bold,
				Align: consts.Center,
			})
		})
	})

	for _, c := range ds.Collections {
		title := string(c.ContentType)
		if title == "" {
			title = "records"
		}
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("%s (%d)", title, len(c.Records)), props.Text{Size: 12, Style: consts.Bold, Top: 3})
			})
		})

		for _, rec := range c.Records {
			line := recordLine(rec)
			m.Row(6, func() {
				m.Col(12, func() {
					m.Text(line, props.Text{Size: 8})
				})
			})
		}
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (PDF) Decode([]byte) (Dataset, error) {
	return Dataset{}, ErrNotDecodable
}

// IsPDF reports whether data carries the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, PDFMagic)
}

func recordLine(rec domain.Record) string {
	parts := make([]string, 0, len(rec))
	for _, k := range sortedKeys(rec) {
		parts = append(parts, k+": "+scalarText(rec[k]))
	}
	return strings.Join(parts, "; ")
}
