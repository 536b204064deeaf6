package model

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownColumn = errors.New("model: unknown column")

// Table is an immutable, column-ordered set of rows. Every method that
// changes shape returns a new Table; rows are never modified in place, so a
// Table and all views derived from it are safe for concurrent reads.
type Table struct {
	columns    []string
	index      map[string]int
	rows       [][]Value
	dateColumn string
}

// NewTable builds a table from column names and rows. Every row must have
// exactly one value per column and column names must be unique.
func NewTable(columns []string, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("model: duplicate column %q", name)
		}
		index[name] = i
	}
	copied := make([][]Value, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("model: row %d has %d values, want %d", i, len(row), len(columns))
		}
		copied[i] = append([]Value(nil), row...)
	}
	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// DateColumn names the canonical date column, or "" for a raw table.
func (t *Table) DateColumn() string {
	return t.dateColumn
}

func (t *Table) Row(i int) []Value {
	return append([]Value(nil), t.rows[i]...)
}

func (t *Table) Value(row int, column string) (Value, error) {
	idx, ok := t.index[column]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	return t.rows[row][idx], nil
}

func (t *Table) ColumnValues(column string) ([]Value, error) {
	idx, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	values := make([]Value, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[idx]
	}
	return values, nil
}

func (t *Table) WithDateColumn(name string) *Table {
	out := t.shallow()
	out.dateColumn = name
	return out
}

// WithColumn returns a copy of the table with one column's values replaced.
func (t *Table) WithColumn(column string, values []Value) (*Table, error) {
	idx, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("model: column %q has %d values, want %d", column, len(values), len(t.rows))
	}
	out := t.shallow()
	out.rows = make([][]Value, len(t.rows))
	for i, row := range t.rows {
		replaced := append([]Value(nil), row...)
		replaced[idx] = values[i]
		out.rows[i] = replaced
	}
	return out, nil
}

// RenameColumns maps old names onto new ones. Names that are absent are
// ignored; a rename that would collide with an existing column is an error.
func (t *Table) RenameColumns(renames map[string]string) (*Table, error) {
	columns := t.Columns()
	for i, name := range columns {
		if renamed, ok := renames[name]; ok {
			columns[i] = renamed
		}
	}
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("model: duplicate column %q after rename", name)
		}
		index[name] = i
	}
	out := t.shallow()
	out.columns = columns
	out.index = index
	if renamed, ok := renames[t.dateColumn]; ok {
		out.dateColumn = renamed
	}
	return out, nil
}

// SortBy returns the rows ordered ascending by column. The sort is stable.
func (t *Table) SortBy(column string) (*Table, error) {
	idx, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	out := t.shallow()
	out.rows = append([][]Value(nil), t.rows...)
	sort.SliceStable(out.rows, func(i, j int) bool {
		return out.rows[i][idx].Compare(out.rows[j][idx]) < 0
	})
	return out, nil
}

// Filter returns a view containing the rows for which keep reports true.
// The result is never nil.
func (t *Table) Filter(keep func(row []Value) bool) *Table {
	out := t.shallow()
	out.rows = make([][]Value, 0)
	for _, row := range t.rows {
		if keep(row) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Where is a Filter on exact equality of one column.
func (t *Table) Where(column string, value Value) (*Table, error) {
	idx, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	return t.Filter(func(row []Value) bool {
		return row[idx].Equal(value)
	}), nil
}

// Empty returns a table with the same columns and no rows.
func (t *Table) Empty() *Table {
	out := t.shallow()
	out.rows = make([][]Value, 0)
	return out
}

// Equal reports whether both tables have the same columns, date column and
// rows, compared row for row.
func (t *Table) Equal(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.dateColumn != other.dateColumn || len(t.columns) != len(other.columns) || len(t.rows) != len(other.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != other.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(other.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func (t *Table) shallow() *Table {
	return &Table{
		columns:    t.columns,
		index:      t.index,
		rows:       t.rows,
		dateColumn: t.dateColumn,
	}
}
