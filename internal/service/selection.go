package service

import "slices"

// SelectAllMode decides when select-all clears instead of selecting.
type SelectAllMode int

const (
	// SelectAllBySet clears only when the selection equals the eligible set.
	SelectAllBySet SelectAllMode = iota
	// SelectAllByCount clears when the selection has as many ids as the eligible
	// set, whatever those ids are.
	SelectAllByCount
)

// SelectionTracker holds the set of post ids picked for a batch action.
// It does not check post status; callers decide what may be selected.
type SelectionTracker struct {
	ids  map[uint]struct{}
	mode SelectAllMode
}

// NewSelectionTracker returns an empty selection.
func NewSelectionTracker(mode SelectAllMode) *SelectionTracker {
	return &SelectionTracker{ids: make(map[uint]struct{}), mode: mode}
}

// Toggle adds id if absent and removes it if present.
func (s *SelectionTracker) Toggle(id uint) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// SelectAll selects every eligible id, or clears the selection when it
// already covers the eligible set.
func (s *SelectionTracker) SelectAll(eligible []uint) {
	want := make(map[uint]struct{}, len(eligible))
	for _, id := range eligible {
		want[id] = struct{}{}
	}

	if s.covers(want) {
		s.Clear()
		return
	}
	s.ids = want
}

func (s *SelectionTracker) covers(want map[uint]struct{}) bool {
	if s.mode == SelectAllByCount {
		return len(s.ids) == len(want)
	}
	if len(s.ids) != len(want) {
		return false
	}
	for id := range want {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Clear empties the selection.
func (s *SelectionTracker) Clear() {
	s.ids = make(map[uint]struct{})
}

// IDs returns the selected ids in ascending order.
func (s *SelectionTracker) IDs() []uint {
	out := make([]uint, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Contains reports whether id is selected.
func (s *SelectionTracker) Contains(id uint) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *SelectionTracker) Len() int {
	return len(s.ids)
}
