// Package jhu reformats the Johns Hopkins CSSE daily reports: one file per
// day in a git-tracked snapshot tree, one row per region.
package jhu

import (
	"strings"

	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

const (
	Name = "jhu"

	ColumnCountry    = "Country_Region"
	ColumnProvince   = "Province_State"
	ColumnLastUpdate = "Last_Update"

	defaultRoot       = "."
	defaultDir        = "johns_hopkins_data/csse_covid_19_data/csse_covid_19_daily_reports"
	defaultPattern    = "*.csv"
	defaultNameLayout = "01-02-2006"
	defaultRefresh    = true
)

// Reports published before 2020-03-22 used these headers.
var legacyHeaders = map[string]string{
	"Country/Region": ColumnCountry,
	"Province/State": ColumnProvince,
	"Last Update":    ColumnLastUpdate,
}

var requiredColumns = []string{ColumnCountry, ColumnLastUpdate}

type Config struct {
	Root       string
	Dir        string
	Pattern    string
	NameLayout string
	Refresh    bool
}

func DefaultConfig() Config {
	return Config{
		Root:       defaultRoot,
		Dir:        defaultDir,
		Pattern:    defaultPattern,
		NameLayout: defaultNameLayout,
		Refresh:    defaultRefresh,
	}
}

func (c Config) Descriptor() fetch.Descriptor {
	if strings.TrimSpace(c.Root) == "" {
		c.Root = defaultRoot
	}
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = defaultDir
	}
	if strings.TrimSpace(c.Pattern) == "" {
		c.Pattern = defaultPattern
	}
	return fetch.Directory(c.Root, c.Dir, c.Pattern).
		WithLayout(c.NameLayout).
		WithRefresh(c.Refresh).
		WithArchiveKey(Name)
}

// Reformat maps legacy headers onto the current ones and checks the columns
// the rest of the pipeline relies on. Row order is left as published.
func Reformat(table *model.Table) (*model.Table, error) {
	renames := make(map[string]string)
	for legacy, current := range legacyHeaders {
		if table.HasColumn(legacy) && !table.HasColumn(current) {
			renames[legacy] = current
		}
	}
	// Every target is absent and distinct, so the rename cannot collide.
	if renamed, err := table.RenameColumns(renames); err == nil {
		table = renamed
	}

	for _, column := range requiredColumns {
		if !table.HasColumn(column) {
			return nil, ingest.MissingColumn(Name, column)
		}
	}
	return table, nil
}

func DateColumn() string {
	return ColumnLastUpdate
}

// Region keeps the rows whose Country_Region equals key exactly.
func Region(table *model.Table, key string) *model.Table {
	region, err := table.Where(ColumnCountry, model.String(key))
	if err != nil {
		return table.Empty()
	}
	return region
}
