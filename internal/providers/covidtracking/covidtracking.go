// Package covidtracking reformats the COVID Tracking Project national daily
// series, whose date column is a YYYYMMDD integer.
package covidtracking

import (
	"strconv"
	"strings"

	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

const (
	Name = "covidtracking"

	ColumnDate = "date"

	// RegionKey is the only region the national series answers for.
	RegionKey = "US"

	defaultURL = "https://covidtracking.com/api/v1/us/daily.csv"
)

type Config struct {
	URL string
}

func DefaultConfig() Config {
	return Config{URL: defaultURL}
}

func (c Config) Descriptor() fetch.Descriptor {
	location := strings.TrimSpace(c.URL)
	if location == "" {
		location = defaultURL
	}
	return fetch.URL(location).WithArchiveKey(Name)
}

// Reformat orders the series oldest first and turns the integer dates into
// strings so the unifier reads them as YYYYMMDD rather than as numbers.
func Reformat(table *model.Table) (*model.Table, error) {
	if !table.HasColumn(ColumnDate) {
		return nil, ingest.MissingColumn(Name, ColumnDate)
	}

	sorted, err := table.SortBy(ColumnDate)
	if err != nil {
		return nil, ingest.MissingColumn(Name, ColumnDate)
	}

	values, err := sorted.ColumnValues(ColumnDate)
	if err != nil {
		return nil, ingest.MissingColumn(Name, ColumnDate)
	}
	for i, v := range values {
		switch v.Kind {
		case model.KindInt:
			values[i] = model.String(strconv.FormatInt(v.Int, 10))
		case model.KindFloat:
			values[i] = model.String(strconv.FormatFloat(v.Float, 'f', -1, 64))
		}
	}
	return sorted.WithColumn(ColumnDate, values)
}

func DateColumn() string {
	return ColumnDate
}

// Region returns every row for RegionKey and no rows for anything else.
func Region(table *model.Table, key string) *model.Table {
	if key != RegionKey {
		return table.Empty()
	}
	return table.Filter(func([]model.Value) bool { return true })
}
