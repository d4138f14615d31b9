// Package domain defines the pure types shared by every capmap layer:
// macro-regions, view modes, themes, datasets and colors.
package domain

import (
	"fmt"
	"strings"
)

// ─── Region Types ───────────────────────────────────────────────────────────

// RegionID identifies one of the eight Wikimedia macro-regions.
type RegionID string

const (
	RegionMENA  RegionID = "MENA"
	RegionSSA   RegionID = "SSA"
	RegionSA    RegionID = "SA"
	RegionESEAP RegionID = "ESEAP"
	RegionLAC   RegionID = "LAC"
	RegionNA    RegionID = "NA"
	RegionNWE   RegionID = "NWE"
	RegionCEECA RegionID = "CEECA"
)

// AllRegions returns the region ids in display order.
func AllRegions() []RegionID {
	return []RegionID{
		RegionNA, RegionLAC, RegionNWE, RegionCEECA,
		RegionMENA, RegionSSA, RegionSA, RegionESEAP,
	}
}

// IsValid reports whether r is one of the eight regions.
func (r RegionID) IsValid() bool {
	switch r {
	case RegionMENA, RegionSSA, RegionSA, RegionESEAP,
		RegionLAC, RegionNA, RegionNWE, RegionCEECA:
		return true
	}
	return false
}

// String returns the region id.
func (r RegionID) String() string { return string(r) }

// ParseRegionID accepts a region id in any letter case.
func ParseRegionID(s string) (RegionID, error) {
	r := RegionID(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
	}
	return r, nil
}

// Region is a static macro-region definition.
// CountryCodes holds ISO-3166-1 alpha-3 codes.
type Region struct {
	ID           RegionID `json:"id"`
	ShortName    string   `json:"short_name"`
	FullName     string   `json:"full_name"`
	LightColor   string   `json:"light_color"`
	DarkColor    string   `json:"dark_color"`
	CountryCodes []string `json:"country_codes"`
}

// HasCountry reports whether code (alpha-3, upper case) belongs to the region.
func (r Region) HasCountry(code string) bool {
	for _, c := range r.CountryCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ─── View Mode ──────────────────────────────────────────────────────────────

// ViewMode selects which metric feeds the aggregate and the color anchors.
type ViewMode string

const (
	ViewUsers      ViewMode = "users"
	ViewLanguages  ViewMode = "languages"
	ViewCapacities ViewMode = "capacities"
)

// AllViewModes returns every view mode.
func AllViewModes() []ViewMode {
	return []ViewMode{ViewUsers, ViewLanguages, ViewCapacities}
}

// IsValid reports whether m is a known view mode.
func (m ViewMode) IsValid() bool {
	switch m {
	case ViewUsers, ViewLanguages, ViewCapacities:
		return true
	}
	return false
}

// ParseViewMode parses a view mode; empty input means users.
func ParseViewMode(s string) (ViewMode, error) {
	if s == "" {
		return ViewUsers, nil
	}
	m := ViewMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
	}
	return m, nil
}

// ─── Theme ──────────────────────────────────────────────────────────────────

// Theme is the light/dark rendering theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeFor maps a dark-mode flag to a Theme.
func ThemeFor(darkMode bool) Theme {
	if darkMode {
		return ThemeDark
	}
	return ThemeLight
}

// IsDark reports whether t is the dark theme.
func (t Theme) IsDark() bool { return t == ThemeDark }

// ─── Selection ──────────────────────────────────────────────────────────────

// Selection is the transient selected/hovered pair of one map view.
// An empty RegionID means "none".
type Selection struct {
	Selected RegionID `json:"selected,omitempty"`
	Hovered  RegionID `json:"hovered,omitempty"`
}

// IsSelected reports whether r is the selected region.
func (s Selection) IsSelected(r RegionID) bool { return r != "" && s.Selected == r }

// IsHovered reports whether r is the hovered region.
func (s Selection) IsHovered(r RegionID) bool { return r != "" && s.Hovered == r }
