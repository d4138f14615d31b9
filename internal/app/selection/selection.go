// Package selection is the per-map selection and hover state machine.
//
//	none ──enter(r)──▶ hovering(r) ──leave──▶ none
//	  │                    │
//	click(r)            click(r)
//	  ▼                    ▼
//	selected(r) ◀──click(r)──▶ none
//	selected(r) ──enter(o≠r)──▶ selected+hovering(o) ──leave──▶ selected(r)
//	hovering(r) ──click(r)───▶ selected+hovering(r)
//
// Machine is not safe for concurrent use; callers own the locking.
package selection

import "github.com/capx-network/capmap/internal/domain"

// State names the four observable states.
type State string

const (
	StateNone             State = "none"
	StateHovering         State = "hovering"
	StateSelected         State = "selected"
	StateSelectedHovering State = "selected+hovering"
)

// Machine tracks the selected and hovered regions of one map.
type Machine struct {
	sel domain.Selection
}

// New returns a machine in the none state.
func New() *Machine { return &Machine{} }

// Enter hovers r. Hovering the already-selected region leaves only the
// selection visible.
func (m *Machine) Enter(r domain.RegionID) {
	if r == "" || m.sel.Selected == r {
		m.sel.Hovered = ""
		return
	}
	m.sel.Hovered = r
}

// Leave clears the hover.
func (m *Machine) Leave() { m.sel.Hovered = "" }

// Click toggles the selection of r: selecting it when nothing or another
// region is selected, deselecting when r is already selected. The hover is
// left alone.
func (m *Machine) Click(r domain.RegionID) {
	if r == "" {
		return
	}
	if m.sel.Selected == r {
		m.sel.Selected = ""
		return
	}
	m.sel.Selected = r
}

// Reset returns to none.
func (m *Machine) Reset() { m.sel = domain.Selection{} }

// Selection returns the current selected/hovered pair.
func (m *Machine) Selection() domain.Selection { return m.sel }

// State classifies the current selection.
func (m *Machine) State() State {
	switch {
	case m.sel.Selected != "" && m.sel.Hovered != "":
		return StateSelectedHovering
	case m.sel.Selected != "":
		return StateSelected
	case m.sel.Hovered != "":
		return StateHovering
	}
	return StateNone
}
