// Package dates coerces a table's date column into canonical UTC time values.
package dates

import (
	"errors"
	"strings"
	"time"

	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

// CanonicalLayout is the textual form of a canonical date.
const CanonicalLayout = time.RFC3339Nano

var ErrUnrecognized = errors.New("dates: unrecognized date format")

// layouts are tried in order; the first that parses the whole value wins.
var layouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"20060102",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 January 2006",
}

// Parse interprets value as a calendar date or timestamp. Values without a
// zone are taken as UTC.
func Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, ErrUnrecognized
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, ErrUnrecognized
}

func Format(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}

// Unify replaces column with canonical time values and marks it as the
// table's date column. A missing column is not an error. Conversion is
// all-or-nothing: one value that cannot be read as a date fails the whole
// table. Numeric cells are never converted; callers holding encoded numeric
// dates must turn them into strings first.
func Unify(table *model.Table, column string) (*model.Table, error) {
	if !table.HasColumn(column) {
		return table, nil
	}
	values, err := table.ColumnValues(column)
	if err != nil {
		return nil, err
	}

	if alreadyCanonical(values) {
		return table.WithDateColumn(column), nil
	}

	unified := make([]model.Value, len(values))
	for i, value := range values {
		switch value.Kind {
		case model.KindNull:
			unified[i] = value
		case model.KindTime:
			unified[i] = model.Time(value.Time)
		case model.KindString:
			parsed, err := Parse(value.Str)
			if err != nil {
				return nil, ingest.UnparsableDate(column, i, value.Str)
			}
			unified[i] = model.Time(parsed)
		default:
			return nil, ingest.UnparsableDate(column, i, value.String())
		}
	}

	replaced, err := table.WithColumn(column, unified)
	if err != nil {
		return nil, err
	}
	return replaced.WithDateColumn(column), nil
}

func alreadyCanonical(values []model.Value) bool {
	for _, value := range values {
		if value.Kind != model.KindTime && value.Kind != model.KindNull {
			return false
		}
	}
	return true
}
