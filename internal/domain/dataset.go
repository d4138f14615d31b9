package domain

import (
	"fmt"
	"time"
)

// ─── Dataset ────────────────────────────────────────────────────────────────
// A Dataset is the dashboard snapshot supplied by the platform API. All maps
// are keyed by the API's opaque ids; nil maps behave as empty.

// CapacityCount is the per-territory availability of one capacity (skill).
type CapacityCount struct {
	Available int `json:"available" yaml:"available"`
	Wanted    int `json:"wanted" yaml:"wanted"`
}

// CapacityTotals is a per-region capacity aggregate.
type CapacityTotals struct {
	Available int `json:"available"`
	Wanted    int `json:"wanted"`
	Total     int `json:"total"`
}

// Add accumulates c into t, keeping Total consistent.
func (t *CapacityTotals) Add(c CapacityCount) {
	t.Available += c.Available
	t.Wanted += c.Wanted
	t.Total = t.Available + t.Wanted
}

// Dataset holds the raw territory catalog and count records.
type Dataset struct {
	Territories           map[string]string                   `json:"territories" yaml:"territories"`
	TerritoryUserCounts   map[string]int                      `json:"territory_user_counts" yaml:"territory_user_counts"`
	Languages             map[string]string                   `json:"languages" yaml:"languages"`
	LanguageUserCounts    map[string]int                      `json:"language_user_counts" yaml:"language_user_counts"`
	LanguagesByTerritory  map[string]map[string]int           `json:"languages_by_territory" yaml:"languages_by_territory"`
	Capacities            map[string]string                   `json:"capacities,omitempty" yaml:"capacities,omitempty"`
	SkillAvailableCounts  map[string]int                      `json:"skill_available_counts" yaml:"skill_available_counts"`
	SkillWantedCounts     map[string]int                      `json:"skill_wanted_counts" yaml:"skill_wanted_counts"`
	CapacitiesByTerritory map[string]map[string]CapacityCount `json:"capacities_by_territory" yaml:"capacities_by_territory"`
	UpdatedAt             time.Time                           `json:"updated_at,omitempty" yaml:"-"`
}

// Validate rejects negative counts and empty ids. Territory names that do not
// resolve to a region are not an error.
func (d Dataset) Validate() error {
	for id := range d.Territories {
		if id == "" {
			return fmt.Errorf("%w: empty territory id", ErrDatasetInvalid)
		}
	}
	if err := checkCounts("territory_user_counts", d.TerritoryUserCounts); err != nil {
		return err
	}
	if err := checkCounts("language_user_counts", d.LanguageUserCounts); err != nil {
		return err
	}
	if err := checkCounts("skill_available_counts", d.SkillAvailableCounts); err != nil {
		return err
	}
	if err := checkCounts("skill_wanted_counts", d.SkillWantedCounts); err != nil {
		return err
	}
	for tid, langs := range d.LanguagesByTerritory {
		if err := checkCounts("languages_by_territory."+tid, langs); err != nil {
			return err
		}
	}
	for tid, caps := range d.CapacitiesByTerritory {
		for cid, c := range caps {
			if c.Available < 0 || c.Wanted < 0 {
				return fmt.Errorf("%w: negative count in capacities_by_territory.%s.%s", ErrDatasetInvalid, tid, cid)
			}
		}
	}
	return nil
}

func checkCounts(field string, m map[string]int) error {
	for k, v := range m {
		if v < 0 {
			return fmt.Errorf("%w: negative count in %s[%s]", ErrDatasetInvalid, field, k)
		}
	}
	return nil
}

// LanguageName returns the display name of a language, or its id.
func (d Dataset) LanguageName(id string) string {
	if n, ok := d.Languages[id]; ok && n != "" {
		return n
	}
	return id
}

// CapacityName returns the display name of a capacity, or its id.
func (d Dataset) CapacityName(id string) string {
	if n, ok := d.Capacities[id]; ok && n != "" {
		return n
	}
	return id
}
