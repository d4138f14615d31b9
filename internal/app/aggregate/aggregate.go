// Package aggregate folds per-territory counts into per-region totals.
//
// Every function is pure: inputs are never mutated, a fresh map is returned,
// nil inputs behave as empty and api ids without a region mapping contribute
// nothing. Regions with no mapped territory are absent from the result;
// callers treat absent as zero.
package aggregate

import (
	"sort"

	"github.com/capx-network/capmap/internal/domain"
)

// All is the filter value that selects every language or capacity.
const All = "all"

// DefaultTopN is the length of top-N lists when none is requested.
const DefaultTopN = 5

// ─── Region Totals ──────────────────────────────────────────────────────────

// UserCounts sums raw per-territory user counts into region totals.
func UserCounts(raw map[string]int, apiToRegion map[string]domain.RegionID) map[domain.RegionID]int {
	out := make(map[domain.RegionID]int)
	for apiID, n := range raw {
		r, ok := apiToRegion[apiID]
		if !ok {
			continue
		}
		out[r] += n
	}
	return out
}

// ByLanguage sums per-territory speaker counts of one language, or of every
// language when languageID is All. A territory without the language adds 0.
func ByLanguage(byTerritory map[string]map[string]int, apiToRegion map[string]domain.RegionID, languageID string) map[domain.RegionID]int {
	out := make(map[domain.RegionID]int)
	for apiID, langs := range byTerritory {
		r, ok := apiToRegion[apiID]
		if !ok {
			continue
		}
		if languageID == All {
			sum := 0
			for _, n := range langs {
				sum += n
			}
			out[r] += sum
			continue
		}
		out[r] += langs[languageID]
	}
	return out
}

// ByCapacity is ByLanguage over the two capacity channels. Total is always
// Available + Wanted.
func ByCapacity(byTerritory map[string]map[string]domain.CapacityCount, apiToRegion map[string]domain.RegionID, capacityID string) map[domain.RegionID]domain.CapacityTotals {
	out := make(map[domain.RegionID]domain.CapacityTotals)
	for apiID, caps := range byTerritory {
		r, ok := apiToRegion[apiID]
		if !ok {
			continue
		}
		t := out[r]
		if capacityID == All {
			for _, c := range caps {
				t.Add(c)
			}
		} else {
			t.Add(caps[capacityID])
		}
		out[r] = t
	}
	return out
}

// Totals projects a capacity aggregate onto its Total channel.
func Totals(agg map[domain.RegionID]domain.CapacityTotals) map[domain.RegionID]int {
	out := make(map[domain.RegionID]int, len(agg))
	for r, t := range agg {
		out[r] = t.Total
	}
	return out
}

// ─── Max ────────────────────────────────────────────────────────────────────

// MaxOf returns the largest value in agg. The result is never below 1, so
// it is always a safe divisor for the color scale.
func MaxOf(agg map[domain.RegionID]int) int {
	best := 1
	for _, n := range agg {
		if n > best {
			best = n
		}
	}
	return best
}

// MaxCapacityOf is MaxOf over the Total channel.
func MaxCapacityOf(agg map[domain.RegionID]domain.CapacityTotals) int {
	best := 1
	for _, t := range agg {
		if t.Total > best {
			best = t.Total
		}
	}
	return best
}

// ─── Top-N ──────────────────────────────────────────────────────────────────

// Ranked is one entry of a top-N list.
type Ranked struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopLanguages ranks the languages spoken in region by summed count across
// every territory mapped to it. Zero counts are skipped, so a region whose
// counts are all zero yields an empty list. n <= 0 means DefaultTopN. name
// resolves display names and may be nil.
func TopLanguages(byTerritory map[string]map[string]int, apiToRegion map[string]domain.RegionID, region domain.RegionID, n int, name func(id string) string) []Ranked {
	sums := make(map[string]int)
	for apiID, langs := range byTerritory {
		if r, ok := apiToRegion[apiID]; !ok || r != region {
			continue
		}
		for id, c := range langs {
			sums[id] += c
		}
	}
	return rank(sums, n, name)
}

// TopCapacities ranks capacities in region by Available + Wanted. As with
// TopLanguages, zero totals are skipped and may leave the list empty.
func TopCapacities(byTerritory map[string]map[string]domain.CapacityCount, apiToRegion map[string]domain.RegionID, region domain.RegionID, n int, name func(id string) string) []Ranked {
	sums := make(map[string]int)
	for apiID, caps := range byTerritory {
		if r, ok := apiToRegion[apiID]; !ok || r != region {
			continue
		}
		for id, c := range caps {
			sums[id] += c.Available + c.Wanted
		}
	}
	return rank(sums, n, name)
}

func rank(sums map[string]int, n int, name func(string) string) []Ranked {
	if n <= 0 {
		n = DefaultTopN
	}
	out := make([]Ranked, 0, len(sums))
	for id, c := range sums {
		if c <= 0 {
			continue
		}
		label := id
		if name != nil {
			label = name(id)
		}
		out = append(out, Ranked{ID: id, Name: label, Count: c})
	}
	// Ties fall back to id so output is stable across map iteration orders.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
