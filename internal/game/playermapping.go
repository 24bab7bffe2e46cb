// internal/game/playermapping.go
//
// Maps physical cube-group identifiers to dense logical player indices.

package game

import "sort"

// CalculatePlayerMapping decides which logical player index addresses which
// physical cube group for the session:
//
//   - no groups started (keyboard/default play): {0:0, 1:1} — the default
//     path always addresses logical player 0;
//   - exactly one group g: {g:g}, preserving its physical identity;
//   - two or more groups: sorted ascending, logical ids 0..n-1 assigned in
//     that order (e.g. [5,2] → {0:2, 1:5}).
func CalculatePlayerMapping(startedGroups []int) map[int]int {
	if len(startedGroups) == 0 {
		return map[int]int{0: 0, 1: 1}
	}
	if len(startedGroups) == 1 {
		g := startedGroups[0]
		return map[int]int{g: g}
	}
	sorted := append([]int(nil), startedGroups...)
	sort.Ints(sorted)
	out := make(map[int]int, len(sorted))
	for i, g := range sorted {
		out[i] = g
	}
	return out
}
