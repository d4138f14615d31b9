// Package territory maps free-text territory names from the platform API
// onto the eight macro-regions.
//
// Names are reduced to a NormalizedKey (lower case, "&" spelled "and", every
// non-alphanumeric dropped) and looked up in a fixed alias table. Stop-words
// are not stripped, so "…and the Pacific" and "…and Pacific" are separate
// alias keys.
package territory

import (
	"sort"
	"strings"

	"github.com/capx-network/capmap/internal/domain"
)

// aliases maps a NormalizedKey to its region.
var aliases = map[string]domain.RegionID{
	"middleeastandnorthafricamena": domain.RegionMENA,
	"middleeastandnorthafrica":     domain.RegionMENA,
	"mena":                         domain.RegionMENA,

	"subsaharanafricassa": domain.RegionSSA,
	"subsaharanafrica":    domain.RegionSSA,
	"ssa":                 domain.RegionSSA,

	"southasiasa": domain.RegionSA,
	"southasia":   domain.RegionSA,
	"sa":          domain.RegionSA,

	"eastsoutheastasiaandpacificeseap": domain.RegionESEAP,
	"eastsoutheastasiaandthepacific":   domain.RegionESEAP,
	"eastsoutheastasiaandpacific":      domain.RegionESEAP,
	"eseap":                            domain.RegionESEAP,

	"latinamericaandcaribbeanlac": domain.RegionLAC,
	"latinamericaandthecaribbean": domain.RegionLAC,
	"latinamericaandcaribbean":    domain.RegionLAC,
	"lac":                         domain.RegionLAC,

	"northamericana": domain.RegionNA,
	"northamerica":   domain.RegionNA,
	"na":             domain.RegionNA,

	"northernandwesterneuropenwe": domain.RegionNWE,
	"northernandwesterneurope":    domain.RegionNWE,
	"nwe":                         domain.RegionNWE,

	"centralandeasterneuropeandcentralasiaceeca": domain.RegionCEECA,
	"centralandeasterneuropeandcentralasia":      domain.RegionCEECA,
	"ceeca":                                      domain.RegionCEECA,
}

// Normalize canonicalizes a territory display name into a lookup key.
// It is total: the empty string maps to the empty string.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "&", "and")

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ResolveRegion normalizes name and looks it up in the alias table.
// A miss is not an error; callers skip the territory.
func ResolveRegion(name string) (domain.RegionID, bool) {
	id, ok := aliases[Normalize(name)]
	return id, ok
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]domain.RegionID {
	out := make(map[string]domain.RegionID, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// BuildRegionMap resolves every API territory to a region. Territories whose
// name has no alias are left out of the map and returned, sorted, as
// unresolved.
func BuildRegionMap(territories map[string]string) (map[string]domain.RegionID, []string) {
	m := make(map[string]domain.RegionID, len(territories))
	var unresolved []string
	for id, name := range territories {
		if r, ok := ResolveRegion(name); ok {
			m[id] = r
			continue
		}
		unresolved = append(unresolved, id)
	}
	sort.Strings(unresolved)
	return m, unresolved
}
