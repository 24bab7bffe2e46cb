// internal/game/coordinator.go
//
// Session orchestration for the blockwords engine.
// Responsibilities:
//   - Session lifecycle: admit started players, raise/lower the running
//     flag, reset state on stop.
//   - The guess pipeline: tile ids → letters → old/good/bad classification
//     against the dictionary and the score card.
//   - Refilling consumed tiles through the rack manager on a good guess and
//     pushing the resulting letter changes to the hardware collaborator.
//   - Emitting engine events for the rendering collaborator.
//
// The coordinator runs entirely on the bus consumer goroutine; handlers run
// to completion, so none of this state needs locking (see the event loop in
// main.go for the single-consumer guarantee).

package game

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

// Outcome classifies a guess.
type Outcome int

const (
	// OutcomeBad: not a dictionary word. A normal result, not an error.
	OutcomeBad Outcome = iota
	// OutcomeOld: a valid word this player group already scored.
	OutcomeOld
	// OutcomeGood: a new valid word; it scores and consumed tiles refill.
	OutcomeGood
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGood:
		return "good"
	case OutcomeOld:
		return "old"
	default:
		return "bad"
	}
}

// Hardware is the narrow surface the coordinator needs from the cube
// collaborator.
type Hardware interface {
	// LoadRack pushes a full rack of letters to a cube group.
	LoadRack(group int, ts []*tiles.Tile)
	// AcceptNewLetter pushes one changed tile letter to a cube group.
	AcceptNewLetter(group int, tileID string, letter byte)
}

// Recorder persists scored words. Implemented by the history store.
type Recorder interface {
	RecordWord(player int, word, letters string, score int)
}

// Event is pushed to the rendering collaborator on every visible change.
type Event struct {
	Type    string `json:"type"` // "session_started", "session_stopped", "rack", "guess"
	Player  int    `json:"player"`
	Word    string `json:"word,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Score   int    `json:"score,omitempty"`
	Letters string `json:"letters,omitempty"`
	Next    string `json:"next,omitempty"`
}

// Coordinator owns one session's game state.
type Coordinator struct {
	dict  *dict.Dictionary
	racks *RackManager
	score *ScoreCard

	hw       Hardware     // optional
	recorder Recorder     // optional
	notify   func(Event)  // optional

	running       bool
	startedGroups []int
	playerToGroup map[int]int
	lastGuess     []string
}

// NewCoordinator wires the coordinator to its dictionary and rack manager.
func NewCoordinator(d *dict.Dictionary, racks *RackManager) *Coordinator {
	return &Coordinator{
		dict:          d,
		racks:         racks,
		score:         NewScoreCard(racks.Rack(0), d),
		playerToGroup: map[int]int{0: 0, 1: 1},
	}
}

// SetHardware attaches the cube collaborator.
func (c *Coordinator) SetHardware(hw Hardware) { c.hw = hw }

// SetRecorder attaches the scored-word history store.
func (c *Coordinator) SetRecorder(r Recorder) { c.recorder = r }

// SetNotify attaches the event sink for the rendering collaborator.
func (c *Coordinator) SetNotify(f func(Event)) { c.notify = f }

// Running reports whether a session is in progress.
func (c *Coordinator) Running() bool { return c.running }

// Mapping returns the logical-player → cube-group mapping for this session.
func (c *Coordinator) Mapping() map[int]int {
	out := make(map[int]int, len(c.playerToGroup))
	for p, g := range c.playerToGroup {
		out[p] = g
	}
	return out
}

// PlayerForGroup resolves a cube group to its logical player index.
func (c *Coordinator) PlayerForGroup(group int) (int, bool) {
	for p, g := range c.playerToGroup {
		if g == group {
			return p, true
		}
	}
	return 0, false
}

// AdmitPlayer admits a cube group into the session. The first admission
// initializes the shared racks and raises the running flag; later
// admissions (inside the join window, policed by the start arbiter) join
// the in-progress session and receive the current shared rack state.
func (c *Coordinator) AdmitPlayer(group int) {
	for _, g := range c.startedGroups {
		if g == group {
			return
		}
	}
	c.startedGroups = append(c.startedGroups, group)
	c.playerToGroup = CalculatePlayerMapping(c.startedGroups)

	if !c.running {
		c.start()
	}
	player, _ := c.PlayerForGroup(group)
	c.loadRack(player)
	c.emit(Event{Type: "session_started", Player: player})
	log.Info().Int("group", group).Int("player", player).Msg("player admitted")
}

// StartKeyboardSession starts a session with no physical cube groups: the
// default mapping stays in place and logical player 0 plays.
func (c *Coordinator) StartKeyboardSession() {
	if c.running {
		return
	}
	c.startedGroups = nil
	c.playerToGroup = CalculatePlayerMapping(nil)
	c.start()
	c.emit(Event{Type: "session_started", Player: 0})
}

func (c *Coordinator) start() {
	c.racks.InitializeRacksForFairPlay()
	c.score = NewScoreCard(c.racks.Rack(0), c.dict)
	c.lastGuess = nil
	c.running = true
	for player := 0; player < MaxPlayers; player++ {
		c.emitRack(player)
	}
}

// StopSession ends the session and blanks every rack.
func (c *Coordinator) StopSession() {
	if !c.running {
		return
	}
	c.running = false
	c.racks.Reset()
	for player, group := range c.playerToGroup {
		if c.hw != nil {
			c.hw.LoadRack(group, c.racks.Rack(playerRackIndex(player)).Tiles())
		}
	}
	c.startedGroups = nil
	c.emit(Event{Type: "session_stopped"})
	log.Info().Msg("session stopped")
}

// GetRack exposes a player's letters and pending next letter to the
// rendering collaborator.
func (c *Coordinator) GetRack(player int) (letters string, next byte) {
	r := c.racks.Rack(playerRackIndex(player))
	return r.Letters(), r.NextLetter()
}

// Points exposes a player's session score.
func (c *Coordinator) Points(player int) int { return c.score.Points(player) }

// PossibleWords and RemainingWords expose the score card's derived split.
func (c *Coordinator) PossibleWords() []string  { return c.score.PossibleWords() }
func (c *Coordinator) RemainingWords() []string { return c.score.RemainingWords() }

// GuessWord is the keyboard path: map the word onto tiles and guess them.
func (c *Coordinator) GuessWord(word string, player int) Outcome {
	word = strings.ToUpper(word)
	rack := c.racks.Rack(playerRackIndex(player))
	ids := rack.LettersToIDs(word)
	if len(ids) != len(word) {
		// Letters the rack does not hold cannot form a guess.
		return OutcomeBad
	}
	return c.GuessTiles(ids, player)
}

// GuessTiles validates an ordered tile-id sequence as a word for a player
// and applies the outcome: old guesses and bad words change nothing; a good
// guess scores, is recorded, and refills the consumed tiles (one shared
// stream advance per tile, in position order).
func (c *Coordinator) GuessTiles(tileIDs []string, player int) Outcome {
	if !c.running {
		return OutcomeBad
	}
	rackIdx := playerRackIndex(player)
	rack := c.racks.Rack(rackIdx)
	word, ok := rack.IDsToLetters(tileIDs)
	if !ok {
		log.Warn().Strs("tiles", tileIDs).Int("player", player).
			Msg("guess references unknown tile ids")
		return OutcomeBad
	}
	c.lastGuess = append([]string(nil), tileIDs...)

	outcome := OutcomeBad
	switch {
	case c.score.IsOldGuess(word):
		outcome = OutcomeOld
	case c.score.IsGoodGuess(word):
		outcome = OutcomeGood
	}

	if outcome == OutcomeGood {
		c.score.AddStagedGuess(word)
		c.score.AddGuess(word, player)
		points := c.score.CalculateScore(word)
		c.score.AddPoints(player, points)
		if c.recorder != nil {
			c.recorder.RecordWord(player, word, rack.Letters(), points)
		}
		c.refill(tileIDs, rackIdx)
		c.emit(Event{Type: "guess", Player: player, Word: word,
			Outcome: outcome.String(), Score: points})
		log.Info().Str("word", word).Int("player", player).Int("score", points).
			Msg("good guess")
		return outcome
	}

	c.emit(Event{Type: "guess", Player: player, Word: word, Outcome: outcome.String()})
	return outcome
}

// refill lands a fresh letter on every consumed tile. Each landing advances
// the shared stream exactly once and mirrors to racks still sharing the
// slot; the hardware gets the per-group letter for the changed tile id.
func (c *Coordinator) refill(tileIDs []string, hitRack int) {
	rack := c.racks.Rack(hitRack)
	for _, id := range tileIDs {
		pos, ok := rack.IDToPosition(id)
		if !ok {
			continue
		}
		letter := rack.NextLetter()
		changed := c.racks.AcceptNewLetter(letter, pos, hitRack, 0)
		c.pushLetter(changed.ID)
	}
	c.score.UpdatePreviousGuesses()
	for player := 0; player < MaxPlayers; player++ {
		c.emitRack(player)
	}
}

// pushLetter re-syncs the tile with the given id on every started group,
// using each rack's own current letter so diverged racks keep their letter.
func (c *Coordinator) pushLetter(tileID string) {
	if c.hw == nil {
		return
	}
	for player, group := range c.playerToGroup {
		rack := c.racks.Rack(playerRackIndex(player))
		if pos, ok := rack.IDToPosition(tileID); ok {
			c.hw.AcceptNewLetter(group, tileID, rack.Tiles()[pos].Letter)
		}
	}
}

func (c *Coordinator) loadRack(player int) {
	if c.hw == nil {
		return
	}
	group, ok := c.playerToGroup[player]
	if !ok {
		return
	}
	c.hw.LoadRack(group, c.racks.Rack(playerRackIndex(player)).Tiles())
}

func (c *Coordinator) emit(e Event) {
	if c.notify != nil {
		c.notify(e)
	}
}

func (c *Coordinator) emitRack(player int) {
	r := c.racks.Rack(playerRackIndex(player))
	c.emit(Event{Type: "rack", Player: player, Letters: r.Letters(),
		Next: string(r.NextLetter())})
}

// playerRackIndex clamps a logical player index onto the rack slots. The
// mapping can address a single started group by its physical id; its rack
// is the matching slot modulo the rack count.
func playerRackIndex(player int) int {
	if player < 0 {
		return 0
	}
	return player % MaxPlayers
}
