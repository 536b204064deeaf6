// Package owid reformats the Our World in Data global series, one row per
// location per day.
package owid

import (
	"strings"

	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

const (
	Name = "owid"

	ColumnLocation = "location"
	ColumnDate     = "date"

	defaultURL = "https://covid.ourworldindata.org/data/ecdc/full_data.csv"
)

var requiredColumns = []string{ColumnLocation, ColumnDate}

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

func Reformat(table *model.Table) (*model.Table, error) {
	for _, column := range requiredColumns {
		if !table.HasColumn(column) {
			return nil, ingest.MissingColumn(Name, column)
		}
	}
	return table, nil
}

func DateColumn() string {
	return ColumnDate
}

// Region keeps the rows whose location equals key exactly, for example
// "United States".
func Region(table *model.Table, key string) *model.Table {
	region, err := table.Where(ColumnLocation, model.String(key))
	if err != nil {
		return table.Empty()
	}
	return region
}
