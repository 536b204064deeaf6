// Package csvtable turns comma-separated text into a model.Table. It knows
// nothing about any provider: the header row names the columns and each
// column is typed only by what its cells can be read as.
package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func Parse(data []byte) (*model.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ingest.Malformed(nil, "empty payload")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = 0
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, ingest.Malformed(err, "unreadable header")
	}
	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ingest.Malformed(nil, "header column %d is empty", i+1)
		}
		if _, ok := seen[name]; ok {
			return nil, ingest.Malformed(nil, "duplicate header column %q", name)
		}
		seen[name] = struct{}{}
		columns[i] = name
	}

	records := make([][]string, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				return nil, ingest.Malformed(err, "ragged row at line %d", parseErr.Line)
			}
			return nil, ingest.Malformed(err, "invalid csv")
		}
		records = append(records, record)
	}

	rows := make([][]model.Value, len(records))
	for i := range rows {
		rows[i] = make([]model.Value, len(columns))
	}
	for col := range columns {
		kind := inferKind(records, col)
		for i, record := range records {
			rows[i][col] = toValue(record[col], kind)
		}
	}

	table, err := model.NewTable(columns, rows)
	if err != nil {
		return nil, ingest.Malformed(err, "inconsistent table")
	}
	return table, nil
}

// inferKind picks the narrowest kind every non-empty cell of the column
// can be read as: int, then float, otherwise string.
func inferKind(records [][]string, col int) model.Kind {
	kind := model.KindInt
	nonEmpty := false
	for _, record := range records {
		cell := strings.TrimSpace(record[col])
		if cell == "" {
			continue
		}
		nonEmpty = true
		if kind == model.KindInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			kind = model.KindFloat
		}
		if kind == model.KindFloat {
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				continue
			}
			return model.KindString
		}
	}
	if !nonEmpty {
		return model.KindNull
	}
	return kind
}

func toValue(cell string, kind model.Kind) model.Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return model.Null()
	}
	switch kind {
	case model.KindInt:
		parsed, _ := strconv.ParseInt(trimmed, 10, 64)
		return model.Int(parsed)
	case model.KindFloat:
		parsed, _ := strconv.ParseFloat(trimmed, 64)
		return model.Float(parsed)
	default:
		return model.String(trimmed)
	}
}
