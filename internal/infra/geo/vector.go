package geo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Country is one country boundary of a vector source.
type Country struct {
	Code     string           // ISO-3166-1 alpha-3, upper case
	Name     string           // display name, may be empty
	Geometry orb.MultiPolygon // WGS84 lon/lat
}

// Vector is a parsed set of country boundaries, sorted by code.
type Vector struct {
	Countries []Country
}

// codeProps are tried in order. Natural Earth marks some countries
// (France, Norway) with ISO_A3 "-99" and carries the code in ADM0_A3.
var codeProps = []string{"ISO_A3", "iso_a3", "ISO_A3_EH", "ADM0_A3", "adm0_a3", "ISO3", "iso3"}

var nameProps = []string{"NAME", "name", "ADMIN", "admin", "NAME_EN", "name_en"}

// ParseVector decodes a GeoJSON FeatureCollection. Features without an
// alpha-3 code or without (multi)polygon geometry are skipped. Features
// sharing a code are merged.
func ParseVector(data []byte) (*Vector, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	byCode := make(map[string]*Country)
	for _, f := range fc.Features {
		code := featureCode(f)
		if code == "" {
			continue
		}
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}
		c, ok := byCode[code]
		if !ok {
			c = &Country{Code: code, Name: propString(f, nameProps)}
			byCode[code] = c
		}
		c.Geometry = append(c.Geometry, mp...)
	}

	v := &Vector{Countries: make([]Country, 0, len(byCode))}
	for _, c := range byCode {
		v.Countries = append(v.Countries, *c)
	}
	sort.Slice(v.Countries, func(i, j int) bool { return v.Countries[i].Code < v.Countries[j].Code })
	return v, nil
}

// Bound returns the lon/lat bounding box of every country.
func (v *Vector) Bound() orb.Bound {
	if v == nil || len(v.Countries) == 0 {
		return orb.Bound{}
	}
	b := v.Countries[0].Geometry.Bound()
	for _, c := range v.Countries[1:] {
		b = b.Union(c.Geometry.Bound())
	}
	return b
}

func featureCode(f *geojson.Feature) string {
	for _, key := range codeProps {
		if code := normalizeCode(f.Properties.MustString(key, "")); code != "" {
			return code
		}
	}
	if id, ok := f.ID.(string); ok {
		return normalizeCode(id)
	}
	return ""
}

func propString(f *geojson.Feature, keys []string) string {
	for _, key := range keys {
		if s := f.Properties.MustString(key, ""); s != "" {
			return s
		}
	}
	return ""
}

// normalizeCode upper-cases s and returns it when it is three ASCII letters.
func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return ""
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return ""
		}
	}
	return s
}
