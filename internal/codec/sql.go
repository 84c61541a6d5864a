package codec

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/semmidev/harmony/internal/domain"
)

// SQL writes one INSERT statement per record:
//
//	INSERT INTO "animals" ("id", "name") VALUES ('a1', 'Bella');
//
// Values are text literals; nil is written as NULL.
type SQL struct{}

func (SQL) Format() domain.Format { return domain.FormatSQL }
func (SQL) Extension() string     { return ".sql" }

func (SQL) Encode(ds Dataset) ([]byte, error) {
	var buf bytes.Buffer
	version := ds.Version
	if version == "" {
		version = DatasetVersion
	}
	fmt.Fprintf(&buf, "-- harmony dataset v%s\n", version)

	for _, c := range ds.Collections {
		if c.ContentType == "" {
			return nil, fmt.Errorf("encode sql: collection without content type")
		}
		for _, rec := range c.Records {
			keys := sortedKeys(rec)
			cols := make([]string, len(keys))
			vals := make([]string, len(keys))
			for i, k := range keys {
				cols[i] = quoteIdent(k)
				if rec[k] == nil {
					vals[i] = "NULL"
				} else {
					vals[i] = quoteLiteral(scalarText(rec[k]))
				}
			}
			fmt.Fprintf(&buf, "INSERT INTO %s (%s) VALUES (%s);\n",
				quoteIdent(string(c.ContentType)), strings.Join(cols, ", "), strings.Join(vals, ", "))
		}
	}
	return buf.Bytes(), nil
}

func (SQL) Decode(data []byte) (Dataset, error) {
	p := &sqlParser{src: string(data)}
	ds := Dataset{Version: DatasetVersion, Collections: []Collection{}}

	for {
		p.skipSpaceAndComments()
		if p.eof() {
			return ds, nil
		}
		table, rec, err := p.insert()
		if err != nil {
			return Dataset{}, fmt.Errorf("decode sql at offset %d: %w", p.pos, err)
		}
		ds.Collections = groupBy(ds.Collections, domain.ContentType(table), rec)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// sqlParser understands the INSERT subset written by Encode.
type sqlParser struct {
	src string
	pos int
}

func (p *sqlParser) eof() bool { return p.pos >= len(p.src) }

func (p *sqlParser) skipSpaceAndComments() {
	for !p.eof() {
		switch {
		case unicode.IsSpace(rune(p.src[p.pos])):
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "--"):
			if nl := strings.IndexByte(p.src[p.pos:], '\n'); nl >= 0 {
				p.pos += nl + 1
			} else {
				p.pos = len(p.src)
			}
		default:
			return
		}
	}
}

func (p *sqlParser) keyword(kw string) error {
	p.skipSpaceAndComments()
	end := p.pos + len(kw)
	if end > len(p.src) || !strings.EqualFold(p.src[p.pos:end], kw) {
		return fmt.Errorf("expected %s", kw)
	}
	p.pos = end
	return nil
}

func (p *sqlParser) punct(c byte) error {
	p.skipSpaceAndComments()
	if p.eof() || p.src[p.pos] != c {
		return fmt.Errorf("expected %q", c)
	}
	p.pos++
	return nil
}

// quoted reads a q-delimited token where a doubled q is an escaped q.
func (p *sqlParser) quoted(q byte) (string, error) {
	p.skipSpaceAndComments()
	if p.eof() || p.src[p.pos] != q {
		return "", fmt.Errorf("expected %c", q)
	}
	p.pos++

	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		if c != q {
			sb.WriteByte(c)
			continue
		}
		if !p.eof() && p.src[p.pos] == q {
			sb.WriteByte(q)
			p.pos++
			continue
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("unterminated %c", q)
}

// value reads a literal, NULL or a bare number. ok is false for NULL.
func (p *sqlParser) value() (v string, ok bool, err error) {
	p.skipSpaceAndComments()
	if p.eof() {
		return "", false, fmt.Errorf("expected value")
	}
	if p.src[p.pos] == '\'' {
		s, err := p.quoted('\'')
		return s, true, err
	}
	start := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != ')' && !unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch {
	case word == "":
		return "", false, fmt.Errorf("expected value")
	case strings.EqualFold(word, "NULL"):
		return "", false, nil
	default:
		return word, true, nil
	}
}

func (p *sqlParser) insert() (string, domain.Record, error) {
	if err := p.keyword("INSERT"); err != nil {
		return "", nil, err
	}
	if err := p.keyword("INTO"); err != nil {
		return "", nil, err
	}
	table, err := p.quoted('"')
	if err != nil {
		return "", nil, err
	}

	if err := p.punct('('); err != nil {
		return "", nil, err
	}
	var cols []string
	for {
		col, err := p.quoted('"')
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		if p.punct(',') != nil {
			break
		}
	}
	if err := p.punct(')'); err != nil {
		return "", nil, err
	}

	if err := p.keyword("VALUES"); err != nil {
		return "", nil, err
	}
	if err := p.punct('('); err != nil {
		return "", nil, err
	}
	rec := make(domain.Record, len(cols))
	for i, col := range cols {
		if i > 0 {
			if err := p.punct(','); err != nil {
				return "", nil, err
			}
		}
		v, ok, err := p.value()
		if err != nil {
			return "", nil, err
		}
		if ok {
			rec[col] = v
		} else {
			rec[col] = nil
		}
	}
	if err := p.punct(')'); err != nil {
		return "", nil, err
	}
	if err := p.punct(';'); err != nil {
		return "", nil, err
	}
	return table, rec, nil
}
