// internal/cubes/lock.go
//
// Advisory tile locks for in-flight guesses. The lock is cooperative and
// best effort: it signals the hardware (retained lock topic per cube) that
// a guess is being validated, and it stops a re-derived chain from entering
// validation while an earlier evaluation of the same tiles is unresolved.
// It is not a distributed lock and makes no correctness guarantee beyond
// that.
//
// Locks optionally carry a lease. With a zero lease a lock held past its
// release path stays held until the next session reset, matching the
// observed hardware behavior; a positive lease lets a stuck lock expire.

package cubes

import (
	"strconv"
	"time"
)

type lockTable struct {
	lease time.Duration
	held  map[string]time.Time // "group/tile" -> acquisition time
}

func newLockTable(lease time.Duration) *lockTable {
	return &lockTable{lease: lease, held: make(map[string]time.Time)}
}

func lockKey(group int, tileID string) string {
	return strconv.Itoa(group) + "/" + tileID
}

// tryAcquire locks every tile in the chain, or none of them. A tile already
// held (and not lease-expired) fails the whole acquisition.
func (t *lockTable) tryAcquire(group int, tileIDs []string, now time.Time) bool {
	for _, id := range tileIDs {
		if at, ok := t.held[lockKey(group, id)]; ok {
			if t.lease <= 0 || now.Sub(at) < t.lease {
				return false
			}
		}
	}
	for _, id := range tileIDs {
		t.held[lockKey(group, id)] = now
	}
	return true
}

// release drops the locks for one chain.
func (t *lockTable) release(group int, tileIDs []string) {
	for _, id := range tileIDs {
		delete(t.held, lockKey(group, id))
	}
}

// releaseAll drops every lock. Used on session reset.
func (t *lockTable) releaseAll() {
	t.held = make(map[string]time.Time)
}
