package jhu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epifeed/internal/csvtable"
	"epifeed/internal/fetch"
	"epifeed/internal/ingest"
	"epifeed/internal/model"
)

const currentReport = `FIPS,Admin2,Province_State,Country_Region,Last_Update,Lat,Long_,Confirmed,Deaths
,,,Italy,2020-05-15 02:32:28,41.87,12.56,223096,31368
,,New York,US,2020-05-15 02:32:28,42.16,-74.94,345813,27641
,,Hubei,China,2020-05-15 02:32:28,30.97,112.27,68134,4512
,,California,US,2020-05-15 02:32:28,36.11,-119.68,74936,3032
`

const legacyReport = `Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered
Hubei,Mainland China,2020-03-15T18:20:18,67794,3085,54288
,Italy,2020-03-15T18:20:18,24747,1809,2335
Washington,US,2020-03-15T18:20:18,643,40,1
`

func parse(t *testing.T, text string) *model.Table {
	t.Helper()
	table, err := csvtable.Parse([]byte(text))
	require.NoError(t, err)
	return table
}

func TestReformat_CurrentHeaders(t *testing.T) {
	table := parse(t, currentReport)

	out, err := Reformat(table)
	require.NoError(t, err)
	assert.True(t, out.Equal(table))
	assert.Equal(t, "Last_Update", DateColumn())
}

func TestReformat_LegacyHeaders(t *testing.T) {
	out, err := Reformat(parse(t, legacyReport))
	require.NoError(t, err)

	assert.Equal(t, []string{"Province_State", "Country_Region", "Last_Update", "Confirmed", "Deaths", "Recovered"}, out.Columns())
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, Region(out, "US").Len())
}

func TestReformat_MixedLegacyAndCurrentHeaders(t *testing.T) {
	table := parse(t, "Country/Region,Country_Region,Last Update,Confirmed\nMainland China,China,2020-03-15T18:20:18,67794\n")

	out, err := Reformat(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"Country/Region", "Country_Region", "Last_Update", "Confirmed"}, out.Columns())
	assert.Equal(t, 1, Region(out, "China").Len())
	assert.Equal(t, 0, Region(out, "Mainland China").Len())
}

func TestRegion_MatchesCellsPaddedAfterCommas(t *testing.T) {
	out, err := Reformat(parse(t, "Province_State, Country_Region, Last_Update\nNew York, US, 2020-05-15 02:32:28\n"))
	require.NoError(t, err)

	us := Region(out, "US")
	require.Equal(t, 1, us.Len())
	v, err := us.Value(0, ColumnProvince)
	require.NoError(t, err)
	assert.Equal(t, "New York", v.String())
}

func TestReformat_MissingColumn(t *testing.T) {
	_, err := Reformat(parse(t, "Country_Region,Confirmed\nUS,1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrMissingColumn)
	assert.Contains(t, err.Error(), "Last_Update")

	stage, ok := ingest.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, ingest.StageReformat, stage)
}

func TestRegion(t *testing.T) {
	table := parse(t, currentReport)

	us := Region(table, "US")
	require.Equal(t, 2, us.Len())
	for i := 0; i < us.Len(); i++ {
		v, err := us.Value(i, ColumnCountry)
		require.NoError(t, err)
		assert.Equal(t, "US", v.String())
	}

	none := Region(table, "Atlantis")
	require.NotNil(t, none)
	assert.Equal(t, 0, none.Len())
	assert.Equal(t, table.Columns(), none.Columns())

	assert.Equal(t, 0, Region(table, "us").Len())
}

func TestDescriptor(t *testing.T) {
	d := DefaultConfig().Descriptor()
	assert.Equal(t, fetch.KindDirectory, d.Kind)
	assert.Equal(t, ".", d.Root)
	assert.Equal(t, "johns_hopkins_data/csse_covid_19_data/csse_covid_19_daily_reports", d.Dir)
	assert.Equal(t, "*.csv", d.Pattern)
	assert.Equal(t, "01-02-2006", d.NameLayout)
	assert.True(t, d.Refresh)
	assert.Equal(t, Name, d.ArchiveKey)

	custom := Config{Root: "/srv/jhu", Dir: "daily"}.Descriptor()
	assert.Equal(t, "/srv/jhu", custom.Root)
	assert.Equal(t, "daily", custom.Dir)
	assert.Equal(t, "*.csv", custom.Pattern)
	assert.False(t, custom.Refresh)
}
