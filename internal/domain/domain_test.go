package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Region IDs ─────────────────────────────────────────────────────────────

func TestRegionID_IsValid(t *testing.T) {
	for _, r := range AllRegions() {
		assert.True(t, r.IsValid(), r)
	}
	assert.False(t, RegionID("").IsValid())
	assert.False(t, RegionID("ssa").IsValid())
	assert.False(t, RegionID("EU").IsValid())
}

func TestParseRegionID(t *testing.T) {
	r, err := ParseRegionID(" ssa ")
	require.NoError(t, err)
	assert.Equal(t, RegionSSA, r)

	_, err = ParseRegionID("atlantis")
	assert.True(t, errors.Is(err, ErrUnknownRegion))
}

func TestSelection_EmptyNeverMatches(t *testing.T) {
	var s Selection
	assert.False(t, s.IsSelected(""))
	assert.False(t, s.IsHovered(""))

	s = Selection{Selected: RegionNA, Hovered: RegionSA}
	assert.True(t, s.IsSelected(RegionNA))
	assert.True(t, s.IsHovered(RegionSA))
	assert.False(t, s.IsSelected(RegionSA))
}

// ─── View Modes & Themes ────────────────────────────────────────────────────

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ViewMode
		wantErr bool
	}{
		{"", ViewUsers, false},
		{"users", ViewUsers, false},
		{"Languages", ViewLanguages, false},
		{"capacities", ViewCapacities, false},
		{"skills", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseViewMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownViewMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThemeFor(t *testing.T) {
	assert.Equal(t, ThemeDark, ThemeFor(true))
	assert.Equal(t, ThemeLight, ThemeFor(false))
	assert.True(t, ThemeDark.IsDark())
	assert.False(t, ThemeLight.IsDark())
}

// ─── Dataset ────────────────────────────────────────────────────────────────

func TestCapacityTotals_Add(t *testing.T) {
	var tot CapacityTotals
	tot.Add(CapacityCount{Available: 3, Wanted: 4})
	tot.Add(CapacityCount{Available: 1})
	assert.Equal(t, CapacityTotals{Available: 4, Wanted: 4, Total: 8}, tot)
}

func TestDataset_Validate(t *testing.T) {
	ok := Dataset{
		Territories:         map[string]string{"t1": "Sub-Saharan Africa"},
		TerritoryUserCounts: map[string]int{"t1": 10},
		CapacitiesByTerritory: map[string]map[string]CapacityCount{
			"t1": {"c1": {Available: 1, Wanted: 2}},
		},
	}
	require.NoError(t, ok.Validate())
	require.NoError(t, Dataset{}.Validate(), "empty dataset is valid")

	bad := Dataset{TerritoryUserCounts: map[string]int{"t1": -1}}
	assert.ErrorIs(t, bad.Validate(), ErrDatasetInvalid)

	bad = Dataset{LanguagesByTerritory: map[string]map[string]int{"t1": {"en": -5}}}
	assert.ErrorIs(t, bad.Validate(), ErrDatasetInvalid)

	bad = Dataset{CapacitiesByTerritory: map[string]map[string]CapacityCount{"t1": {"c": {Wanted: -1}}}}
	assert.ErrorIs(t, bad.Validate(), ErrDatasetInvalid)

	bad = Dataset{Territories: map[string]string{"": "North America"}}
	assert.ErrorIs(t, bad.Validate(), ErrDatasetInvalid)
}

func TestDataset_Names(t *testing.T) {
	d := Dataset{
		Languages:  map[string]string{"en": "English"},
		Capacities: map[string]string{"c1": "Translation"},
	}
	assert.Equal(t, "English", d.LanguageName("en"))
	assert.Equal(t, "fr", d.LanguageName("fr"))
	assert.Equal(t, "Translation", d.CapacityName("c1"))
	assert.Equal(t, "c2", d.CapacityName("c2"))
}

// ─── Colors ─────────────────────────────────────────────────────────────────

func TestRGB_Hex(t *testing.T) {
	assert.Equal(t, "#0070B9", RGB{R: 0x00, G: 0x70, B: 0xB9}.Hex())
	b, err := RGB{R: 255, G: 255, B: 255}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "#FFFFFF", string(b))
}
