package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epifeed/internal/csvtable"
	"epifeed/internal/fetch"
	"epifeed/internal/model"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		name string
		want Variant
	}{
		{"jhu", JohnsHopkins},
		{" JHU ", JohnsHopkins},
		{"johnshopkins", JohnsHopkins},
		{"covidtracking", CovidTracking},
		{"owid", OurWorldInData},
		{"OurWorldInData", OurWorldInData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVariant(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	_, err := ParseVariant("who")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestParseVariants(t *testing.T) {
	got, err := ParseVariants("owid, jhu,owid")
	require.NoError(t, err)
	assert.Equal(t, []Variant{OurWorldInData, JohnsHopkins}, got)

	all, err := ParseVariants("")
	require.NoError(t, err)
	assert.Equal(t, Variants(), all)

	_, err = ParseVariants("jhu,who")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "jhu", JohnsHopkins.String())
	assert.Equal(t, "covidtracking", CovidTracking.String())
	assert.Equal(t, "owid", OurWorldInData.String())
	assert.Equal(t, "variant(9)", Variant(9).String())
	assert.Len(t, Variants(), 3)
	for _, v := range Variants() {
		assert.True(t, v.Valid())
		assert.Equal(t, v.String(), ArchiveKey(v))
	}
	assert.Empty(t, ArchiveKey(Variant(0)))
}

func TestDispatch(t *testing.T) {
	table, err := csvtable.Parse([]byte("date,location\n20200316,United States\n20200315,United States\n"))
	require.NoError(t, err)

	out, err := Reformat(CovidTracking, table)
	require.NoError(t, err)
	first, err := out.Value(0, "date")
	require.NoError(t, err)
	assert.Equal(t, model.String("20200315"), first)

	out, err = Reformat(OurWorldInData, table)
	require.NoError(t, err)
	assert.True(t, out.Equal(table))

	_, err = Reformat(Variant(0), table)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	assert.Equal(t, "Last_Update", DateColumn(JohnsHopkins))
	assert.Equal(t, "date", DateColumn(CovidTracking))
	assert.Equal(t, "date", DateColumn(OurWorldInData))
	assert.Empty(t, DateColumn(Variant(0)))

	region, err := RegionFilter(OurWorldInData, table, "United States")
	require.NoError(t, err)
	assert.Equal(t, 2, region.Len())

	region, err = RegionFilter(CovidTracking, table, "FR")
	require.NoError(t, err)
	assert.Equal(t, 0, region.Len())

	_, err = RegionFilter(Variant(0), table, "US")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestSettingsDescriptor(t *testing.T) {
	settings := DefaultSettings()

	d, err := settings.Descriptor(JohnsHopkins)
	require.NoError(t, err)
	assert.Equal(t, fetch.KindDirectory, d.Kind)

	settings.OWID.URL = "file:///tmp/full_data.csv"
	d, err = settings.Descriptor(OurWorldInData)
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/full_data.csv", d.Location)
	assert.Equal(t, "owid", d.ArchiveKey)

	_, err = settings.Descriptor(Variant(42))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
