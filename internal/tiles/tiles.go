// internal/tiles/tiles.go
//
// Tiles and racks for the blockwords engine.
// Defines:
//   - Tile: one mutable letter with a stable identity. Unlike Scrabble, a
//     tile's letter changes in place as new letters land; its ID never does.
//   - Rack: one player's ordered set of six tiles plus the pending next
//     letter.
//
// Cross-rack sharing:
//   - Racks start a session letter-identical ("shared start"). Each tile
//     carries a shared-group id; tiles in different racks with the same
//     shared-group id still mirror each other's letter updates. A direct
//     single-rack ReplaceLetter invalidates the slot's shared group, so the
//     rack stops receiving mirrored updates there (copy-on-write divergence).

package tiles

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// MaxTiles is the rack size: every player plays six tiles.
const MaxTiles = 6

// BlankLetter is displayed on cubes outside a running session.
const BlankLetter = byte(' ')

var sharedGroupCounter atomic.Uint64

func nextSharedGroup() uint64 { return sharedGroupCounter.Add(1) }

// Tile is one letter slot. ID is stable for the life of the rack ("0".."5");
// Letter mutates in place. sharedGroup links the tile to its counterparts in
// other racks until the slot diverges.
type Tile struct {
	ID     string
	Letter byte

	sharedGroup uint64
}

// SharedGroup returns the tile's current shared-group id.
func (t *Tile) SharedGroup() uint64 { return t.sharedGroup }

// Rack is an ordered sequence of exactly MaxTiles tiles plus the pending
// next letter. Tile order changes as guesses rearrange the rack; tile IDs
// do not.
type Rack struct {
	tiles      []*Tile
	nextLetter byte
}

// NewRack builds a rack from a string of MaxTiles letters. Tile IDs are the
// creation positions "0".."5"; each tile gets a fresh shared group.
func NewRack(letters string) *Rack {
	r := &Rack{nextLetter: '?'}
	for i := 0; i < MaxTiles; i++ {
		letter := BlankLetter
		if i < len(letters) {
			letter = letters[i]
		}
		r.tiles = append(r.tiles, &Tile{
			ID:          strconv.Itoa(i),
			Letter:      letter,
			sharedGroup: nextSharedGroup(),
		})
	}
	return r
}

// Tiles returns the rack's tiles in display order.
func (r *Rack) Tiles() []*Tile { return r.tiles }

// SetTiles replaces the rack's tile order (used for shared-start
// initialization and guess rearrangement). The slice must hold MaxTiles
// tiles.
func (r *Rack) SetTiles(ts []*Tile) { r.tiles = ts }

// Letters returns the rack's letters in display order.
func (r *Rack) Letters() string {
	b := make([]byte, len(r.tiles))
	for i, t := range r.tiles {
		b[i] = t.Letter
	}
	return string(b)
}

// NextLetter returns the pending, not-yet-placed letter.
func (r *Rack) NextLetter() byte { return r.nextLetter }

// SetNextLetter sets the pending letter.
func (r *Rack) SetNextLetter(letter byte) { r.nextLetter = letter }

// IDToPosition returns the current position of the tile with the given ID.
func (r *Rack) IDToPosition(id string) (int, bool) {
	for i, t := range r.tiles {
		if t.ID == id {
			return i, true
		}
	}
	return 0, false
}

// PositionToID returns the ID of the tile at the given position.
func (r *Rack) PositionToID(pos int) string { return r.tiles[pos].ID }

// IDsToTiles resolves tile IDs to tiles, preserving order. Unknown IDs are
// reported via ok=false.
func (r *Rack) IDsToTiles(ids []string) ([]*Tile, bool) {
	out := make([]*Tile, 0, len(ids))
	for _, id := range ids {
		pos, ok := r.IDToPosition(id)
		if !ok {
			return nil, false
		}
		out = append(out, r.tiles[pos])
	}
	return out, true
}

// IDsToLetters translates an ordered tile-ID sequence into its letters.
func (r *Rack) IDsToLetters(ids []string) (string, bool) {
	ts, ok := r.IDsToTiles(ids)
	if !ok {
		return "", false
	}
	b := make([]byte, len(ts))
	for i, t := range ts {
		b[i] = t.Letter
	}
	return string(b), true
}

// LettersToIDs maps a word onto tile IDs, consuming each tile at most once.
// Letters with no remaining tile are skipped (keyboard guesses may reference
// letters the rack no longer holds).
func (r *Rack) LettersToIDs(letters string) []string {
	used := make([]bool, len(r.tiles))
	var ids []string
	for i := 0; i < len(letters); i++ {
		for j, t := range r.tiles {
			if !used[j] && t.Letter == letters[i] {
				used[j] = true
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}

// MissingLetters returns the letters of word not coverable by the rack's
// current letter multiset, or "" if the word is formable.
func (r *Rack) MissingLetters(word string) string {
	var have [256]int
	for _, t := range r.tiles {
		have[t.Letter]++
	}
	var need [256]int
	for i := 0; i < len(word); i++ {
		need[word[i]]++
	}
	var missing []byte
	for i := 0; i < len(word); i++ {
		c := word[i]
		if need[c] > have[c] {
			missing = append(missing, c)
			need[c] = 0 // report each letter once
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return string(missing)
}

// PutLetter mutates the tile at pos in place, keeping both its ID and its
// shared group. This is the mirrored-update path used by the rack manager.
func (r *Rack) PutLetter(pos int, letter byte) *Tile {
	t := r.tiles[pos]
	t.Letter = letter
	return t
}

// FindShared returns the position of the tile belonging to the given shared
// group, or -1 if this rack has diverged at that slot.
func (r *Rack) FindShared(group uint64) int {
	for i, t := range r.tiles {
		if t.sharedGroup == group {
			return i
		}
	}
	return -1
}

// ReplaceLetter mutates the tile at pos independently of the other racks:
// same ID, new letter, fresh shared group (the slot diverges), and the
// rack's pending letter is recomputed from its updated letters.
func (r *Rack) ReplaceLetter(letter byte, pos int, gen *Generator) *Tile {
	t := r.tiles[pos]
	log.Debug().Str("tile", t.ID).Str("letter", string(letter)).
		Str("rack", r.Letters()).Msg("replace letter")
	t.Letter = letter
	t.sharedGroup = nextSharedGroup()
	r.nextLetter = gen.NextLetter(r.Letters())
	return t
}

// CloneShared builds a letter-identical copy of the rack whose tiles share
// groups with the source, so updates mirror across the copies until a slot
// diverges. Used at session start to give every player the same rack.
func (r *Rack) CloneShared() *Rack {
	c := &Rack{nextLetter: r.nextLetter}
	for _, t := range r.tiles {
		c.tiles = append(c.tiles, &Tile{
			ID:          t.ID,
			Letter:      t.Letter,
			sharedGroup: t.sharedGroup,
		})
	}
	return c
}
