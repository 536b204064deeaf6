package owid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epifeed/internal/csvtable"
	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

const fullData = `date,location,new_cases,new_deaths,total_cases,total_deaths
2020-03-15,United States,777,8,2951,57
2020-03-15,United Kingdom,232,14,1144,35
2020-03-16,United States,823,12,3774,69
2020-03-16,World,,,,
`

func parse(t *testing.T, text string) *model.Table {
	t.Helper()
	table, err := csvtable.Parse([]byte(text))
	require.NoError(t, err)
	return table
}

func TestReformat_KeepsOrder(t *testing.T) {
	table := parse(t, fullData)

	out, err := Reformat(table)
	require.NoError(t, err)
	assert.True(t, out.Equal(table))
	assert.Equal(t, "date", DateColumn())
}

func TestReformat_MissingColumn(t *testing.T) {
	_, err := Reformat(parse(t, "date,new_cases\n2020-03-15,1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrMissingColumn)
	assert.Contains(t, err.Error(), "location")
}

func TestRegion(t *testing.T) {
	table := parse(t, fullData)

	us := Region(table, "United States")
	require.Equal(t, 2, us.Len())
	v, err := us.Value(1, "total_cases")
	require.NoError(t, err)
	assert.Equal(t, model.Int(3774), v)

	assert.Equal(t, 0, Region(table, "US").Len())
	assert.NotNil(t, Region(table, "US"))
}

func TestDescriptor(t *testing.T) {
	d := DefaultConfig().Descriptor()
	assert.Equal(t, fetch.KindURL, d.Kind)
	assert.Equal(t, "https://covid.ourworldindata.org/data/ecdc/full_data.csv", d.Location)
	assert.Equal(t, Name, d.ArchiveKey)
}
