// internal/cubes/arbiter.go
//
// SessionStartArbiter: the ABC start sequence.
//
// Before a session, every cube is blank. The arbiter picks three mutually
// non-touching cubes per group (so ordinary chain play cannot trip the
// condition by accident), shows them 'A', 'B' and 'C', and waits for the
// player to physically chain them A -> B -> C. The first group to complete
// the trio starts the session; further groups may still join while the join
// window is open. After the window closes, late trios are ignored and their
// cubes go back to blank.
//
// The exact join-window rule lives behind JoinPolicy so it can be swapped
// without touching the arbiter.

package cubes

import (
	"time"

	"github.com/rs/zerolog/log"
)

// JoinPolicy decides whether a group completing its start trio after the
// session has begun is still admitted.
type JoinPolicy interface {
	// CanJoin is called with the time elapsed since the first group
	// started the session.
	CanJoin(sinceFirstStart time.Duration) bool
}

// ElapsedWindow admits joiners for a fixed duration after the first
// starter. A zero window admits nobody after the first starter.
type ElapsedWindow time.Duration

func (w ElapsedWindow) CanJoin(since time.Duration) bool {
	return since <= time.Duration(w)
}

var trioLetters = [3]byte{'A', 'B', 'C'}

// SessionStartArbiter watches neighbor reports per group and drives the
// start trio lifecycle.
type SessionStartArbiter struct {
	policy JoinPolicy
	now    func() time.Time

	active     bool
	trios      map[int][3]string // group -> cubes showing A, B, C
	started    map[int]bool
	refused    map[int]bool // groups the join window shut out
	firstStart time.Time
}

// NewSessionStartArbiter builds an idle arbiter. Arm it to begin assigning
// trios.
func NewSessionStartArbiter(policy JoinPolicy, now func() time.Time) *SessionStartArbiter {
	if now == nil {
		now = time.Now
	}
	return &SessionStartArbiter{
		policy:  policy,
		now:     now,
		trios:   make(map[int][3]string),
		started: make(map[int]bool),
		refused: make(map[int]bool),
	}
}

// Arm activates trio assignment. Assignment itself happens lazily as
// neighbor reports arrive (AssignTrio), since a trio needs cubes known to
// be alive.
func (a *SessionStartArbiter) Arm() { a.active = true }

// Active reports whether the arbiter is watching for starts.
func (a *SessionStartArbiter) Active() bool { return a.active }

// Started reports whether a group has been admitted this session.
func (a *SessionStartArbiter) Started(group int) bool { return a.started[group] }

// Trio returns the group's assigned start cubes, if any.
func (a *SessionStartArbiter) Trio(group int) ([3]string, bool) {
	t, ok := a.trios[group]
	return t, ok
}

// AssignTrio picks three mutually non-touching cubes among those that have
// reported a neighbor and returns them for letter assignment. It returns
// false when the group already has a trio, has started, was refused this
// session, or has fewer than three live cubes.
func (a *SessionStartArbiter) AssignTrio(r *GroupResolver) ([3]string, bool) {
	if !a.active || a.started[r.Group()] || a.refused[r.Group()] {
		return [3]string{}, false
	}
	if _, ok := a.trios[r.Group()]; ok {
		return [3]string{}, false
	}
	picked := pickNonTouching(r)
	if len(picked) < 3 {
		return [3]string{}, false
	}
	trio := [3]string{picked[0], picked[1], picked[2]}
	a.trios[r.Group()] = trio
	log.Info().Int("group", r.Group()).Strs("cubes", picked).Msg("start trio assigned")
	return trio, true
}

// pickNonTouching selects up to three live cubes none of which is chained
// to another selected cube.
func pickNonTouching(r *GroupResolver) []string {
	var selected []string
	for _, cube := range r.Cubes() {
		if len(selected) == 3 {
			break
		}
		if !r.HasReported(cube) {
			continue
		}
		touching := false
		for _, s := range selected {
			if r.Touching(cube, s) {
				touching = true
				break
			}
		}
		if !touching {
			selected = append(selected, cube)
		}
	}
	return selected
}

// TrioComplete reports whether the group's assigned trio is chained
// A -> B -> C.
func (a *SessionStartArbiter) TrioComplete(r *GroupResolver) bool {
	trio, ok := a.trios[r.Group()]
	if !ok || a.started[r.Group()] {
		return false
	}
	return r.Linked(trio[0], trio[1]) && r.Linked(trio[1], trio[2])
}

// AdmitDecision is the arbiter's ruling on a completed trio.
type AdmitDecision int

const (
	// AdmitStart: first completion, the session begins with this group.
	AdmitStart AdmitDecision = iota
	// AdmitJoin: completion inside the join window, group joins.
	AdmitJoin
	// AdmitRefused: window closed, group stays out and goes blank.
	AdmitRefused
)

// Complete records a trio completion and rules on admission. The caller
// applies the decision (rack load or blanking).
func (a *SessionStartArbiter) Complete(group int) AdmitDecision {
	if len(a.started) == 0 {
		a.started[group] = true
		a.firstStart = a.now()
		return AdmitStart
	}
	if a.policy != nil && !a.policy.CanJoin(a.now().Sub(a.firstStart)) {
		// Refusal is final for the session: the group gets no fresh trio.
		delete(a.trios, group)
		a.refused[group] = true
		log.Info().Int("group", group).Msg("join window closed, group refused")
		return AdmitRefused
	}
	a.started[group] = true
	return AdmitJoin
}

// Reset returns the arbiter to idle with no trios, started groups, or
// refusals.
func (a *SessionStartArbiter) Reset() {
	a.active = false
	a.trios = make(map[int][3]string)
	a.started = make(map[int]bool)
	a.refused = make(map[int]bool)
	a.firstStart = time.Time{}
}
