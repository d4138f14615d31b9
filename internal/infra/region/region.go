// Package region holds the static Wikimedia macro-region taxonomy: eight
// regions, each owning a disjoint set of ISO-3166-1 alpha-3 country codes.
//
// The taxonomy is built once at init and never mutated. A duplicate country
// code is a programming error and panics at startup.
package region

import (
	"fmt"
	"strings"

	"github.com/capx-network/capmap/internal/domain"
)

// ─── Taxonomy ───────────────────────────────────────────────────────────────

var regions = []domain.Region{
	{
		ID:         domain.RegionNA,
		ShortName:  "NA",
		FullName:   "North America",
		LightColor: "#4A90D9",
		DarkColor:  "#6AAEF0",
		CountryCodes: []string{
			"USA", "CAN", "BMU", "SPM", "UMI",
		},
	},
	{
		ID:         domain.RegionLAC,
		ShortName:  "LAC",
		FullName:   "Latin America & Caribbean",
		LightColor: "#E67E22",
		DarkColor:  "#F5A05A",
		CountryCodes: []string{
			"MEX", "GTM", "BLZ", "SLV", "HND", "NIC", "CRI", "PAN", "CUB", "DOM",
			"HTI", "JAM", "PRI", "BHS", "TTO", "BRB", "LCA", "VCT", "GRD", "ATG",
			"DMA", "KNA", "ABW", "CUW", "SXM", "BES", "VGB", "VIR", "CYM", "TCA",
			"AIA", "MSR", "GLP", "MTQ", "BLM", "MAF", "COL", "VEN", "GUY", "SUR",
			"GUF", "ECU", "PER", "BOL", "BRA", "PRY", "URY", "ARG", "CHL", "FLK",
			"SGS",
		},
	},
	{
		ID:         domain.RegionNWE,
		ShortName:  "NWE",
		FullName:   "Northern & Western Europe",
		LightColor: "#5D6D7E",
		DarkColor:  "#95A5B6",
		CountryCodes: []string{
			"GBR", "IRL", "ISL", "NOR", "SWE", "FIN", "DNK", "FRO", "GRL", "ALA",
			"SJM", "NLD", "BEL", "LUX", "FRA", "MCO", "DEU", "AUT", "CHE", "LIE",
			"ITA", "SMR", "VAT", "MLT", "ESP", "PRT", "AND", "GIB", "IMN", "JEY",
			"GGY", "GRC", "CYP",
		},
	},
	{
		ID:         domain.RegionCEECA,
		ShortName:  "CEE/CA",
		FullName:   "Central & Eastern Europe & Central Asia",
		LightColor: "#8E44AD",
		DarkColor:  "#B57BD1",
		CountryCodes: []string{
			"POL", "CZE", "SVK", "HUN", "SVN", "HRV", "BIH", "SRB", "MNE", "MKD",
			"ALB", "BGR", "ROU", "MDA", "UKR", "BLR", "RUS", "EST", "LVA", "LTU",
			"GEO", "ARM", "AZE", "KAZ", "UZB", "TKM", "KGZ", "TJK", "TUR",
		},
	},
	{
		ID:         domain.RegionMENA,
		ShortName:  "MENA",
		FullName:   "Middle East & North Africa",
		LightColor: "#C0392B",
		DarkColor:  "#E26B5F",
		CountryCodes: []string{
			"DZA", "EGY", "LBY", "MAR", "TUN", "ESH", "SDN", "ISR", "PSE", "JOR",
			"LBN", "SYR", "IRQ", "IRN", "SAU", "YEM", "OMN", "ARE", "QAT", "BHR",
			"KWT",
		},
	},
	{
		ID:         domain.RegionSSA,
		ShortName:  "SSA",
		FullName:   "Sub-Saharan Africa",
		LightColor: "#27AE60",
		DarkColor:  "#52D68A",
		CountryCodes: []string{
			"MRT", "MLI", "NER", "TCD", "SEN", "GMB", "GNB", "GIN", "SLE", "LBR",
			"CIV", "BFA", "GHA", "TGO", "BEN", "NGA", "CMR", "CAF", "SSD", "ETH",
			"ERI", "DJI", "SOM", "KEN", "UGA", "RWA", "BDI", "TZA", "COD", "COG",
			"GAB", "GNQ", "STP", "CPV", "AGO", "ZMB", "MWI", "MOZ", "ZWE", "BWA",
			"NAM", "ZAF", "LSO", "SWZ", "MDG", "MUS", "COM", "SYC", "REU", "MYT",
			"SHN",
		},
	},
	{
		ID:         domain.RegionSA,
		ShortName:  "SA",
		FullName:   "South Asia",
		LightColor: "#D4AC0D",
		DarkColor:  "#F1C40F",
		CountryCodes: []string{
			"AFG", "PAK", "IND", "NPL", "BTN", "BGD", "LKA", "MDV",
		},
	},
	{
		ID:         domain.RegionESEAP,
		ShortName:  "ESEAP",
		FullName:   "East, Southeast Asia & Pacific",
		LightColor: "#16A085",
		DarkColor:  "#48C9B0",
		CountryCodes: []string{
			"CHN", "HKG", "MAC", "TWN", "MNG", "PRK", "KOR", "JPN", "VNM", "LAO",
			"KHM", "THA", "MMR", "MYS", "SGP", "BRN", "IDN", "PHL", "TLS", "AUS",
			"NZL", "PNG", "FJI", "SLB", "VUT", "NCL", "PYF", "WSM", "TON", "KIR",
			"TUV", "NRU", "FSM", "MHL", "PLW", "GUM", "MNP", "ASM", "COK", "NIU",
			"TKL", "WLF", "PCN", "NFK", "CXR", "CCK",
		},
	},
}

var (
	byID         = make(map[domain.RegionID]int, len(regions))
	countryIndex map[string]domain.RegionID
)

func init() {
	for i, r := range regions {
		byID[r.ID] = i
	}
	idx, err := buildCountryIndex(regions)
	if err != nil {
		panic("region taxonomy: " + err.Error())
	}
	countryIndex = idx
}

// buildCountryIndex flattens every region's country codes into one lookup.
// It fails on a code claimed by two regions or a code that is not alpha-3.
func buildCountryIndex(rs []domain.Region) (map[string]domain.RegionID, error) {
	idx := make(map[string]domain.RegionID)
	for _, r := range rs {
		for _, code := range r.CountryCodes {
			if !IsAlpha3(code) {
				return nil, fmt.Errorf("region %s: %q is not an alpha-3 code", r.ID, code)
			}
			if prev, ok := idx[code]; ok {
				return nil, fmt.Errorf("country %s claimed by both %s and %s", code, prev, r.ID)
			}
			idx[code] = r.ID
		}
	}
	return idx, nil
}

// ─── Lookups ────────────────────────────────────────────────────────────────

// All returns a copy of every region definition in display order.
func All() []domain.Region {
	out := make([]domain.Region, len(regions))
	for i, r := range regions {
		r.CountryCodes = append([]string(nil), r.CountryCodes...)
		out[i] = r
	}
	return out
}

// ByID returns the region with the given id.
func ByID(id domain.RegionID) (domain.Region, bool) {
	i, ok := byID[id]
	if !ok {
		return domain.Region{}, false
	}
	r := regions[i]
	r.CountryCodes = append([]string(nil), r.CountryCodes...)
	return r, true
}

// ForCountry returns the region owning an alpha-3 country code.
// The lookup is case-insensitive.
func ForCountry(code string) (domain.Region, bool) {
	id, ok := RegionOfCountry(code)
	if !ok {
		return domain.Region{}, false
	}
	return ByID(id)
}

// RegionOfCountry returns the region id owning an alpha-3 country code.
func RegionOfCountry(code string) (domain.RegionID, bool) {
	id, ok := countryIndex[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok
}

// CountryCount returns the number of entries in the country index.
func CountryCount() int { return len(countryIndex) }

// IsAlpha3 reports whether s is three upper-case ASCII letters.
func IsAlpha3(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
