// internal/cubes/controller.go
//
// Controller is the hardware side of the engine. Responsibilities:
//   - Route inbound bus messages (neighbor reports, letter confirmations)
//     to the right group resolver, dropping malformed payloads with a
//     warning so the consumer loop never dies.
//   - Drive the start arbiter: assign trios as cubes come alive, admit
//     groups on trio completion, blank refused late joiners.
//   - Evaluate candidate chains against the game coordinator under the
//     advisory tile lock, with the unlock guaranteed on every exit path.
//   - Publish hardware commands: letters (retained), consolidated border
//     messages (retained), lock signals (retained), flash (not retained).
//
// It implements game.Hardware so the coordinator can push rack state back
// down without knowing about cubes or topics.

package cubes

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/bus"
	"github.com/stephen5ng/blockwords/internal/game"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

// Border colors in RGB565, as the cube firmware expects them.
const (
	BorderGood = "0x07E0" // green
	BorderOld  = "0xFFE0" // yellow
	BorderBad  = "0xFFFF" // white
)

// MinChain is the shortest cube chain evaluated as a word.
const MinChain = 3

// debounceInterval suppresses re-evaluation of an identical chain set.
// Cube firmware re-reports neighbors unprompted; without this a duplicate
// report replays the whole border/lock cycle.
const debounceInterval = 10 * time.Second

// Config carries the controller's wiring.
type Config struct {
	// CubeGroups lists each group's cube ids in tile order.
	CubeGroups [][]string
	// JoinPolicy rules on late joiners. Nil admits every completion.
	JoinPolicy JoinPolicy
	// LockLease expires stuck advisory locks. Zero disables expiry.
	LockLease time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultCubeGroups returns the stock two-group layout: cubes 1-6 for
// group 0 and 11-16 for group 1.
func DefaultCubeGroups() [][]string {
	return [][]string{
		{"1", "2", "3", "4", "5", "6"},
		{"11", "12", "13", "14", "15", "16"},
	}
}

// Controller bridges the bus and the game coordinator.
type Controller struct {
	bus     bus.Bus
	coord   *game.Coordinator
	groups  []*GroupResolver
	arbiter *SessionStartArbiter
	locks   *lockTable
	now     func() time.Time

	lastChains   map[int]string // group -> canonical last-evaluated chain set
	lastChainsAt map[int]time.Time
}

// NewController wires the controller and registers it as the coordinator's
// hardware collaborator.
func NewController(b bus.Bus, coord *game.Coordinator, cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	groups := cfg.CubeGroups
	if groups == nil {
		groups = DefaultCubeGroups()
	}
	c := &Controller{
		bus:          b,
		coord:        coord,
		arbiter:      NewSessionStartArbiter(cfg.JoinPolicy, now),
		locks:        newLockTable(cfg.LockLease),
		now:          now,
		lastChains:   make(map[int]string),
		lastChainsAt: make(map[int]time.Time),
	}
	for i, cubes := range groups {
		c.groups = append(c.groups, NewGroupResolver(i, cubes))
	}
	coord.SetHardware(c)
	return c
}

// Subscriptions returns the bus patterns the controller consumes.
func (c *Controller) Subscriptions() []string {
	return []string{"cube/right/#", "cube/+/letter"}
}

// Arbiter exposes start state for the HTTP surface.
func (c *Controller) Arbiter() *SessionStartArbiter { return c.arbiter }

func (c *Controller) resolverFor(cube string) *GroupResolver {
	for _, r := range c.groups {
		if r.HasCube(cube) {
			return r
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inbound messages
// ---------------------------------------------------------------------------

// HandleMessage routes one bus message. Malformed payloads are dropped with
// a warning; this function must never panic or stall the consumer loop.
func (c *Controller) HandleMessage(msg bus.Message) {
	parts := strings.Split(msg.Topic, "/")
	switch {
	case len(parts) == 3 && parts[0] == "cube" && parts[1] == "right":
		c.handleNeighbor(parts[2], strings.TrimSpace(string(msg.Payload)))
	case len(parts) == 3 && parts[0] == "cube" && parts[2] == "letter":
		c.handleLetter(parts[1], msg.Payload)
	default:
		log.Debug().Str("topic", msg.Topic).Msg("ignoring bus message")
	}
}

// handleLetter records what a cube reports it is displaying. A letter
// change on a running group re-evaluates its chains: a refill can turn an
// intact chain into a new word without any neighbor report.
func (c *Controller) handleLetter(cube string, payload []byte) {
	r := c.resolverFor(cube)
	if r == nil {
		log.Warn().Str("cube", cube).Msg("letter from unknown cube, dropping")
		return
	}
	if len(payload) != 1 || !validLetter(payload[0]) {
		log.Warn().Str("cube", cube).Bytes("payload", payload).
			Msg("malformed letter payload, dropping")
		return
	}
	r.SetLetter(cube, payload[0])
	if c.arbiter.Started(r.Group()) && c.coord.Running() {
		c.evaluateChains(r, r.Chains())
	}
}

func validLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || b == tiles.BlankLetter || b == '?'
}

// handleNeighbor ingests a right-neighbor report, then runs start
// detection or chain evaluation depending on the group's phase.
func (c *Controller) handleNeighbor(sender, neighbor string) {
	r := c.resolverFor(sender)
	if r == nil {
		log.Warn().Str("cube", sender).Msg("neighbor report from unknown cube, dropping")
		return
	}
	chains := r.ProcessNeighbor(sender, neighbor)

	if !c.arbiter.Started(r.Group()) {
		c.runStartArbiter(r)
		return
	}
	if !c.coord.Running() {
		return
	}
	c.evaluateChains(r, chains)
}

// ---------------------------------------------------------------------------
// Start sequence
// ---------------------------------------------------------------------------

func (c *Controller) runStartArbiter(r *GroupResolver) {
	if !c.arbiter.Active() {
		return
	}
	if trio, ok := c.arbiter.AssignTrio(r); ok {
		for i, cube := range trio {
			c.publishLetter(r, cube, trioLetters[i])
		}
		return
	}
	if !c.arbiter.TrioComplete(r) {
		return
	}
	trio, _ := c.arbiter.Trio(r.Group())
	switch c.arbiter.Complete(r.Group()) {
	case AdmitStart, AdmitJoin:
		c.coord.AdmitPlayer(r.Group())
	case AdmitRefused:
		// Late joiner: trio letters go back to blank, no rack.
		for _, cube := range trio {
			c.publishLetter(r, cube, tiles.BlankLetter)
		}
	}
}

// ---------------------------------------------------------------------------
// Chain evaluation
// ---------------------------------------------------------------------------

// evaluateChains validates each candidate chain of playable length and
// paints border feedback. Tiles in no chain get their borders cleared.
func (c *Controller) evaluateChains(r *GroupResolver, chains [][]string) {
	player, ok := c.coord.PlayerForGroup(r.Group())
	if !ok {
		return
	}
	// A duplicate report of the exact chain set inside the debounce
	// interval is firmware noise, not a new arrangement.
	key := chainKey(r, chains)
	now := c.now()
	if key == c.lastChains[r.Group()] &&
		now.Sub(c.lastChainsAt[r.Group()]) < debounceInterval {
		return
	}
	c.lastChains[r.Group()] = key
	c.lastChainsAt[r.Group()] = now
	marked := make(map[string]bool)
	for _, chain := range chains {
		if len(chain) < MinChain {
			continue
		}
		c.evaluateChain(r, chain, player, marked)
	}
	for i := 0; i < tiles.MaxTiles; i++ {
		id := strconv.Itoa(i)
		if !marked[id] {
			c.publishBorder(r, id, "")
		}
	}
}

// chainKey flattens a chain set and its displayed letters into a
// comparable string. Letters are part of the key so a refill that leaves a
// chain physically intact still reads as a new arrangement.
func chainKey(r *GroupResolver, chains [][]string) string {
	var b strings.Builder
	for _, chain := range chains {
		for _, id := range chain {
			b.WriteString(id)
			if cube, ok := r.CubeForTile(id); ok {
				b.WriteByte(r.Letter(cube))
			}
		}
		b.WriteByte('|')
	}
	return b.String()
}

// evaluateChain runs one chain through the lock and the coordinator. The
// unlock runs on every exit path; a stuck lock would disable these cubes
// until the next session reset.
func (c *Controller) evaluateChain(r *GroupResolver, chain []string, player int, marked map[string]bool) {
	if !c.locks.tryAcquire(r.Group(), chain, c.now()) {
		log.Debug().Int("group", r.Group()).Strs("tiles", chain).
			Msg("tiles locked by in-flight guess, skipping chain")
		return
	}
	c.publishLocks(r, chain, true)
	defer func() {
		c.publishLocks(r, chain, false)
		c.locks.release(r.Group(), chain)
	}()

	outcome := c.coord.GuessTiles(chain, player)
	switch outcome {
	case game.OutcomeGood:
		c.markChain(r, chain, BorderGood, marked)
		c.flashChain(r, chain)
	case game.OutcomeOld:
		c.markChain(r, chain, BorderOld, marked)
	default:
		c.markChain(r, chain, BorderBad, marked)
	}
}

// markChain paints the consolidated border for a chain: every tile gets
// N and S, the head adds W, the tail adds E.
func (c *Controller) markChain(r *GroupResolver, chain []string, color string, marked map[string]bool) {
	for i, id := range chain {
		// Firmware wants direction letters in sorted order.
		var dirs []byte
		if i == len(chain)-1 {
			dirs = append(dirs, 'E')
		}
		dirs = append(dirs, 'N', 'S')
		if i == 0 {
			dirs = append(dirs, 'W')
		}
		c.publishBorder(r, id, string(dirs)+":"+color)
		marked[id] = true
	}
}

func (c *Controller) flashChain(r *GroupResolver, chain []string) {
	for _, id := range chain {
		if cube, ok := r.CubeForTile(id); ok {
			c.publish("cube/"+cube+"/flash", "1", false)
		}
	}
}

// ---------------------------------------------------------------------------
// game.Hardware
// ---------------------------------------------------------------------------

// LoadRack pushes a full rack of letters to a group's cubes. Groups that
// have not started stay blank.
func (c *Controller) LoadRack(group int, ts []*tiles.Tile) {
	if group < 0 || group >= len(c.groups) {
		return
	}
	r := c.groups[group]
	if !c.arbiter.Started(group) {
		log.Debug().Int("group", group).Msg("group not started, skipping rack load")
		return
	}
	for _, tile := range ts {
		if cube, ok := r.CubeForTile(tile.ID); ok {
			c.publishLetter(r, cube, tile.Letter)
		}
	}
}

// AcceptNewLetter pushes one changed tile letter to a group's cube.
func (c *Controller) AcceptNewLetter(group int, tileID string, letter byte) {
	if group < 0 || group >= len(c.groups) {
		return
	}
	r := c.groups[group]
	if cube, ok := r.CubeForTile(tileID); ok {
		c.publishLetter(r, cube, letter)
	}
}

// ---------------------------------------------------------------------------
// Session control
// ---------------------------------------------------------------------------

// StartSession arms the start arbiter. Trios are assigned as cubes report.
func (c *Controller) StartSession() {
	c.arbiter.Arm()
	log.Info().Msg("start arbiter armed")
}

// StopSession ends the running session and restores the hardware to its
// idle state: racks blanked, every lock released, every border cleared.
func (c *Controller) StopSession() {
	c.coord.StopSession()
	c.locks.releaseAll()
	for _, r := range c.groups {
		for _, cube := range r.Cubes() {
			c.publish("cube/"+cube+"/lock", "", true)
			c.publish("cube/"+cube+"/border", ":", true)
			c.publishLetter(r, cube, tiles.BlankLetter)
		}
		r.ClearChains()
	}
	c.arbiter.Reset()
	c.lastChains = make(map[int]string)
	c.lastChainsAt = make(map[int]time.Time)
}

// ---------------------------------------------------------------------------
// Outbound publishing
// ---------------------------------------------------------------------------

func (c *Controller) publishLetter(r *GroupResolver, cube string, letter byte) {
	r.SetLetter(cube, letter)
	c.publish("cube/"+cube+"/letter", string(letter), true)
	if letter == tiles.BlankLetter {
		c.publish("cube/"+cube+"/border", ":", true)
	}
}

// publishBorder sends a consolidated border command, or the clear marker
// when body is empty.
func (c *Controller) publishBorder(r *GroupResolver, tileID, body string) {
	cube, ok := r.CubeForTile(tileID)
	if !ok {
		return
	}
	if body == "" {
		body = ":"
	}
	c.publish("cube/"+cube+"/border", body, true)
}

func (c *Controller) publishLocks(r *GroupResolver, chain []string, locked bool) {
	payload := "1"
	if !locked {
		payload = ""
	}
	for _, id := range chain {
		if cube, ok := r.CubeForTile(id); ok {
			c.publish("cube/"+cube+"/lock", payload, true)
		}
	}
}

func (c *Controller) publish(topic, payload string, retained bool) {
	if err := c.bus.Publish(topic, []byte(payload), retained); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}
