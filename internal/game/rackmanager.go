// internal/game/rackmanager.go
//
// Rack ownership and cross-rack synchronization.
// Responsibilities:
//   - Own every player's rack for the session.
//   - Enforce the shared-start invariant: all racks are letter-identical
//     immediately after initialization.
//   - Apply accepted letters with copy-on-write divergence: a mirrored
//     update reaches every rack still sharing the slot; a rack that was
//     independently mutated there is left untouched.
//   - Keep every rack's pending next letter synchronized, advancing the
//     gameplay random stream exactly once per accepted letter.

package game

import (
	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

// MaxPlayers is the number of racks the manager owns. Both players always
// hold the same letter pool; they arrange it independently.
const MaxPlayers = 2

// RackManager owns all player racks and the fairness rules between them.
type RackManager struct {
	dict  *dict.Dictionary
	gen   *tiles.Generator
	racks []*tiles.Rack
}

// NewRackManager builds a manager with placeholder racks; call
// InitializeRacksForFairPlay at session start.
func NewRackManager(d *dict.Dictionary, gen *tiles.Generator) *RackManager {
	m := &RackManager{dict: d, gen: gen}
	for i := 0; i < MaxPlayers; i++ {
		m.racks = append(m.racks, tiles.NewRack("??????"))
	}
	return m
}

// Rack returns the rack for a logical player index.
func (m *RackManager) Rack(player int) *tiles.Rack { return m.racks[player] }

// InitializeRacksForFairPlay draws one shared starting rack from the
// dictionary's bingo list and gives every player a letter-identical copy,
// including an identical pending next letter. The copies share slot groups,
// so letter updates mirror across racks until a slot diverges.
func (m *RackManager) InitializeRacksForFairPlay() {
	letters := m.dict.PickBingo()
	base := tiles.NewRack(letters)
	base.SetNextLetter(m.gen.NextLetter(letters))

	m.racks[0] = base
	for i := 1; i < MaxPlayers; i++ {
		m.racks[i] = base.CloneShared()
	}
	log.Info().Str("letters", letters).Str("next", string(base.NextLetter())).
		Msg("racks initialized for fair play")
}

// Reset blanks every rack (session stop).
func (m *RackManager) Reset() {
	for i := range m.racks {
		m.racks[i] = tiles.NewRack("      ")
	}
}

// AcceptNewLetter lands a letter on the hit rack at position+offset and
// mirrors it to every other rack still sharing that slot. One draw is then
// made from the gameplay stream, using the hit rack's updated letters as
// context, and the resulting pending letter is assigned to every rack.
// Returns the mutated tile of the hit rack.
func (m *RackManager) AcceptNewLetter(letter byte, position, hitRack, offset int) *tiles.Tile {
	rack := m.racks[hitRack]
	pos := position + offset

	target := rack.Tiles()[pos]
	group := target.SharedGroup() // pre-mutation identity
	rack.PutLetter(pos, letter)

	for i, other := range m.racks {
		if i == hitRack {
			continue
		}
		if p := other.FindShared(group); p >= 0 {
			other.PutLetter(p, letter)
		}
		// A rack with no tile in the group diverged at this slot earlier
		// and stays untouched.
	}

	next := m.gen.NextLetter(rack.Letters())
	for _, r := range m.racks {
		r.SetNextLetter(next)
	}
	log.Debug().Str("letter", string(letter)).Int("rack", hitRack).Int("pos", pos).
		Str("next", string(next)).Msg("accepted new letter")
	return target
}
