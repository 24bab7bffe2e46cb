// internal/cubes/resolver.go
//
// GroupResolver tracks one player group's six physical cubes:
//   - which letter each cube currently displays,
//   - which cube each cube reports as its right neighbor,
//   - the tile-id <-> cube-id mapping for the group.
//
// From the neighbor links it assembles candidate words: ordered tile-id
// chains, each starting at a head cube (no incoming link) and following
// right links to the tail. Chain hygiene mirrors the hardware's quirks:
// self links and loop-forming links are rejected and removed, a cleared or
// unknown neighbor drops the link, and a chain set that uses any tile twice
// is rejected wholesale.

package cubes

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/tiles"
)

// GroupResolver owns the cube state for a single player group.
type GroupResolver struct {
	group       int
	cubeList    []string
	chain       map[string]string // sender cube -> right neighbor cube
	neighbors   map[string]string // last report per cube, verbatim
	letters     map[string]byte   // displayed letter per cube
	tilesToCube map[string]string
	cubeToTile  map[string]string
}

// NewGroupResolver builds a resolver for one group's ordered cube list.
// Tile id "0" maps to the first cube, "1" to the second, and so on.
func NewGroupResolver(group int, cubeList []string) *GroupResolver {
	r := &GroupResolver{
		group:       group,
		cubeList:    append([]string(nil), cubeList...),
		chain:       make(map[string]string),
		neighbors:   make(map[string]string),
		letters:     make(map[string]byte),
		tilesToCube: make(map[string]string),
		cubeToTile:  make(map[string]string),
	}
	for i, cube := range r.cubeList {
		id := strconv.Itoa(i) // rack tile ids are position strings
		r.tilesToCube[id] = cube
		r.cubeToTile[cube] = id
	}
	return r
}

// Group returns the group index this resolver serves.
func (r *GroupResolver) Group() int { return r.group }

// Cubes returns the group's cube ids in tile order.
func (r *GroupResolver) Cubes() []string { return r.cubeList }

// HasCube reports whether a cube id belongs to this group.
func (r *GroupResolver) HasCube(cube string) bool {
	_, ok := r.cubeToTile[cube]
	return ok
}

// CubeForTile resolves a tile id to its physical cube id.
func (r *GroupResolver) CubeForTile(tileID string) (string, bool) {
	cube, ok := r.tilesToCube[tileID]
	return cube, ok
}

// SetLetter records the letter a cube currently displays.
func (r *GroupResolver) SetLetter(cube string, letter byte) {
	r.letters[cube] = letter
}

// Letter returns the letter a cube currently displays, or blank.
func (r *GroupResolver) Letter(cube string) byte {
	if l, ok := r.letters[cube]; ok {
		return l
	}
	return tiles.BlankLetter
}

// ReportedNeighbors counts cubes that have sent at least one neighbor
// report. The start arbiter waits for reports before assigning a trio.
func (r *GroupResolver) ReportedNeighbors() int { return len(r.neighbors) }

// HasReported reports whether a cube has sent any neighbor report.
func (r *GroupResolver) HasReported(cube string) bool {
	_, ok := r.neighbors[cube]
	return ok
}

// Linked reports whether an a -> b right link is currently in the chain.
func (r *GroupResolver) Linked(a, b string) bool { return r.chain[a] == b }

// Touching reports whether two cubes are directly linked in either
// direction.
func (r *GroupResolver) Touching(a, b string) bool {
	return r.chain[a] == b || r.chain[b] == a
}

// ProcessNeighbor ingests one right-neighbor report and returns the full
// set of candidate chains (ordered tile-id sequences) it implies. An empty
// or unknown neighbor clears the sender's link.
func (r *GroupResolver) ProcessNeighbor(sender, neighbor string) [][]string {
	r.neighbors[sender] = neighbor

	if neighbor == "" || !r.HasCube(neighbor) {
		delete(r.chain, sender)
		return r.formChains()
	}
	if !r.updateChain(sender, neighbor) {
		return nil
	}
	return r.formChains()
}

// updateChain adds a link, rejecting self links and links that would close
// a loop.
func (r *GroupResolver) updateChain(sender, target string) bool {
	if sender == target {
		return false
	}
	r.chain[sender] = target
	if r.hasLoopFrom(sender) {
		delete(r.chain, sender)
		return false
	}
	return true
}

func (r *GroupResolver) hasLoopFrom(start string) bool {
	seen := map[string]bool{start: true}
	curr := r.chain[start]
	for curr != "" {
		if seen[curr] {
			return true
		}
		seen[curr] = true
		curr = r.chain[curr]
	}
	return false
}

// chainHeads returns cubes with an outgoing link but no incoming one,
// sorted for deterministic chain ordering.
func (r *GroupResolver) chainHeads() []string {
	targets := make(map[string]bool, len(r.chain))
	for _, t := range r.chain {
		targets[t] = true
	}
	var heads []string
	for src := range r.chain {
		if !targets[src] {
			heads = append(heads, src)
		}
	}
	sort.Strings(heads)
	return heads
}

// formChains walks every head to its tail and translates cube ids to tile
// ids. Any chain longer than a rack, or any tile appearing twice across the
// chain set, invalidates the whole set.
func (r *GroupResolver) formChains() [][]string {
	if len(r.chain) == 0 {
		return nil
	}
	var all [][]string
	for _, head := range r.chainHeads() {
		var chain []string
		for cube := head; cube != ""; cube = r.chain[cube] {
			id, ok := r.cubeToTile[cube]
			if !ok {
				return nil
			}
			chain = append(chain, id)
			if len(chain) > tiles.MaxTiles {
				log.Warn().Int("group", r.group).Str("head", head).
					Msg("cube chain exceeds rack size, dropping")
				return nil
			}
		}
		all = append(all, chain)
	}
	used := make(map[string]bool)
	for _, chain := range all {
		for _, id := range chain {
			if used[id] {
				log.Warn().Int("group", r.group).Msg("duplicate tile across cube chains")
				return nil
			}
			used[id] = true
		}
	}
	return all
}

// Chains returns the current candidate chain set without ingesting a new
// report. Letter updates use this to re-evaluate a physically intact chain.
func (r *GroupResolver) Chains() [][]string { return r.formChains() }

// ClearChains drops the assembled chain links but keeps neighbor reports,
// which are the evidence that cubes are alive. Used at session boundaries.
func (r *GroupResolver) ClearChains() {
	r.chain = make(map[string]string)
}

// Reset drops all chain and neighbor state, keeping the cube mapping.
func (r *GroupResolver) Reset() {
	r.chain = make(map[string]string)
	r.neighbors = make(map[string]string)
	r.letters = make(map[string]byte)
}
