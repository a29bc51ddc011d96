// Package importer turns uploaded CSV or JSON rows into catalog and sales
// writes. Bad rows are reported per row and never fail the whole batch.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedInput is returned when a body cannot be read as rows at all.
var ErrMalformedInput = errors.New("malformed import input")

// Row is one input record keyed by lower-cased, trimmed column name.
type Row map[string]string

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads body as JSON when the content type says so or the body starts
// with '[', otherwise as CSV.
func Parse(contentType string, body []byte) ([]Row, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if strings.Contains(strings.ToLower(contentType), "json") || bytes.HasPrefix(trimmed, []byte("[")) {
		return ParseJSON(trimmed)
	}
	return ParseCSV(body)
}

// ParseJSON reads a top-level array of objects. Scalar values are
// stringified; null becomes the empty string.
func ParseJSON(body []byte) ([]Row, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedInput)
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array of objects", ErrMalformedInput)
	}

	var (
		rows   []Row
		badIdx = -1
	)
	i := 0
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			badIdx = i
			return false
		}

		row := Row{}
		item.ForEach(func(key, value gjson.Result) bool {
			row[normalizeKey(key.String())] = jsonValue(value)
			return true
		})
		if !row.empty() {
			rows = append(rows, row)
		}
		i++
		return true
	})
	if badIdx >= 0 {
		return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedInput, badIdx)
	}

	return rows, nil
}

func jsonValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}

// ParseCSV reads delimited text with a header line. A leading UTF-8 BOM is
// stripped, the delimiter is ';' when the header has more semicolons than
// commas outside quotes, and rows whose values are all empty are dropped.
func ParseCSV(data []byte) ([]Row, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Row{}, nil
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedInput, err)
	}
	for i := range header {
		header[i] = normalizeKey(header[i])
	}

	rows := []Row{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		row := make(Row, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(record) {
				row[key] = strings.TrimSpace(record[i])
			} else {
				row[key] = ""
			}
		}
		if !row.empty() {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// detectDelimiter counts separators on the first line, ignoring quoted text.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	var semicolons, commas int
	inQuotes := false
	for _, b := range line {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				semicolons++
			}
		case ',':
			if !inQuotes {
				commas++
			}
		}
	}

	if semicolons > commas {
		return ';'
	}
	return ','
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func (r Row) empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}
