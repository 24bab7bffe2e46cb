package cubes

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stephen5ng/blockwords/internal/anagram"
	"github.com/stephen5ng/blockwords/internal/bus"
	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/game"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

var rigWords = []string{
	"CAT", "ACT", "RAT", "TAR", "ART", "CAR", "ARC", "EAT", "TEA", "ATE",
	"CRATES", "TRACES", "REACTS", "RECAST", "CARTES",
}

type rig struct {
	mem   *bus.Memory
	ctrl  *Controller
	coord *game.Coordinator
	racks *game.RackManager
	clock *fixedClock
}

func newRig(t *testing.T, window time.Duration) *rig {
	t.Helper()
	d, err := dict.New(rigWords, []string{"CRATES"}, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	gen := tiles.NewGenerator(anagram.NewIndex(rigWords), rand.New(rand.NewSource(7)))
	racks := game.NewRackManager(d, gen)
	coord := game.NewCoordinator(d, racks)
	mem := bus.NewMemory()
	clock := &fixedClock{t: time.Unix(1000, 0)}
	ctrl := NewController(mem, coord, Config{
		JoinPolicy: ElapsedWindow(window),
		Now:        clock.now,
	})
	return &rig{mem: mem, ctrl: ctrl, coord: coord, racks: racks, clock: clock}
}

func (r *rig) send(topic, payload string) {
	r.ctrl.HandleMessage(bus.Message{Topic: topic, Payload: []byte(payload)})
}

// startGroup walks a group through the ABC sequence: three live cubes,
// trio assignment, then the physical A->B->C chain. It breaks the chain
// back down afterwards so game chains start clean.
func (r *rig) startGroup(t *testing.T, cubes [3]string) {
	t.Helper()
	r.ctrl.StartSession()
	for _, c := range cubes {
		r.send("cube/right/"+c, "")
	}
	r.send("cube/right/"+cubes[0], cubes[1])
	r.send("cube/right/"+cubes[1], cubes[2])
	if !r.coord.Running() {
		t.Fatal("session did not start after ABC chain")
	}
	r.send("cube/right/"+cubes[0], "")
	r.send("cube/right/"+cubes[1], "")
}

// forceRack pins a rack's letters without touching the generator stream,
// so chain letters are known regardless of the random bingo.
func (r *rig) forceRack(rackIdx int, letters string) {
	rack := r.racks.Rack(rackIdx)
	for i := 0; i < len(letters); i++ {
		rack.PutLetter(i, letters[i])
	}
}

func TestABCStartLoadsRack(t *testing.T) {
	r := newRig(t, time.Minute)
	r.ctrl.StartSession()
	for _, c := range []string{"1", "2", "3"} {
		r.send("cube/right/"+c, "")
	}
	// Trio letters went out to the three chosen cubes.
	if got := r.mem.LastPublished("cube/1/letter"); got != "A" {
		t.Fatalf("cube 1 letter = %q, want A", got)
	}
	if got := r.mem.LastPublished("cube/3/letter"); got != "C" {
		t.Fatalf("cube 3 letter = %q, want C", got)
	}
	if r.coord.Running() {
		t.Fatal("session running before trio chained")
	}

	r.send("cube/right/1", "2")
	r.send("cube/right/2", "3")
	if !r.coord.Running() {
		t.Fatal("session not running after A->B->C")
	}
	// Every cube in the group now shows a rack letter.
	for _, c := range []string{"1", "2", "3", "4", "5", "6"} {
		got := r.mem.LastPublished("cube/" + c + "/letter")
		if len(got) != 1 || got[0] < 'A' || got[0] > 'Z' {
			t.Errorf("cube %s letter = %q, want a rack letter", c, got)
		}
	}
}

func TestChainGoodGuessScoresExactlyOnce(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")

	// Cubes 2 -> 1 -> 6 spell C, A, T.
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "6")

	if got := r.coord.Points(0); got != 3 {
		t.Fatalf("points = %d, want 3", got)
	}
	// Good-guess feedback: green borders head to tail, flash on each cube.
	if got := r.mem.LastPublished("cube/2/border"); got != "NSW:"+BorderGood {
		t.Errorf("head border = %q", got)
	}
	if got := r.mem.LastPublished("cube/1/border"); got != "NS:"+BorderGood {
		t.Errorf("middle border = %q", got)
	}
	if got := r.mem.LastPublished("cube/6/border"); got != "ENS:"+BorderGood {
		t.Errorf("tail border = %q", got)
	}
	for _, c := range []string{"2", "1", "6"} {
		if got := r.mem.PublishedTo("cube/" + c + "/flash"); len(got) != 1 {
			t.Errorf("cube %s flash count = %d, want 1", c, len(got))
		}
	}

	// The same chain re-derived is an old guess, never a second score.
	r.forceRack(0, "ACERST")
	r.send("cube/right/1", "")
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "6")
	if got := r.coord.Points(0); got != 3 {
		t.Fatalf("points after duplicate chain = %d, want 3", got)
	}
	if got := r.mem.LastPublished("cube/2/border"); got != "NSW:"+BorderOld {
		t.Errorf("duplicate chain border = %q, want old color", got)
	}
}

func TestBadGuessMarksWhiteAndUnlocks(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")

	// Cubes 2 -> 1 -> 3 spell C, A, E: not a word.
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "3")

	if got := r.coord.Points(0); got != 0 {
		t.Fatalf("points = %d, want 0", got)
	}
	want := map[string]string{"2": "NSW:" + BorderBad, "1": "NS:" + BorderBad, "3": "ENS:" + BorderBad}
	for _, c := range []string{"2", "1", "3"} {
		if got := r.mem.LastPublished("cube/" + c + "/border"); got != want[c] {
			t.Errorf("cube %s border = %q, want %q", c, got, want[c])
		}
		// Lock pulsed on and back off.
		locks := r.mem.PublishedTo("cube/" + c + "/lock")
		if len(locks) < 2 || locks[len(locks)-1] != "" {
			t.Errorf("cube %s lock sequence = %v, want release last", c, locks)
		}
	}
	if len(r.ctrl.locks.held) != 0 {
		t.Errorf("locks still held after bad guess: %v", r.ctrl.locks.held)
	}
}

func TestShortChainIgnored(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")
	r.mem.Reset()

	r.send("cube/right/2", "1") // two cubes only
	if got := r.coord.Points(0); got != 0 {
		t.Fatalf("points = %d after short chain", got)
	}
	if got := r.mem.PublishedTo("cube/2/flash"); len(got) != 0 {
		t.Error("short chain flashed")
	}
}

func TestLateJoinerRefusedAndBlanked(t *testing.T) {
	r := newRig(t, 30*time.Second)
	r.startGroup(t, [3]string{"1", "2", "3"})

	r.clock.advance(31 * time.Second)
	for _, c := range []string{"11", "12", "13"} {
		r.send("cube/right/"+c, "")
	}
	r.send("cube/right/11", "12")
	r.send("cube/right/12", "13")

	if r.ctrl.Arbiter().Started(1) {
		t.Fatal("late group admitted after window closed")
	}
	for _, c := range []string{"11", "12", "13"} {
		if got := r.mem.LastPublished("cube/" + c + "/letter"); got != " " {
			t.Errorf("cube %s letter = %q, want blank", c, got)
		}
	}
	if _, ok := r.coord.PlayerForGroup(1); ok {
		t.Error("refused group present in player mapping")
	}

	// Refusal sticks: further reports from the group must not light
	// a fresh trio.
	r.send("cube/right/14", "")
	if got := r.mem.LastPublished("cube/11/letter"); got != " " {
		t.Errorf("cube 11 letter = %q after post-refusal report, want blank", got)
	}
	if got := r.mem.PublishedTo("cube/14/letter"); len(got) != 0 {
		t.Errorf("cube 14 got letters %v after refusal", got)
	}
	if _, ok := r.ctrl.Arbiter().Trio(1); ok {
		t.Error("refused group reassigned a start trio")
	}
}

func TestJoinerInsideWindowSharesRack(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})

	r.clock.advance(10 * time.Second)
	for _, c := range []string{"11", "12", "13"} {
		r.send("cube/right/"+c, "")
	}
	r.send("cube/right/11", "12")
	r.send("cube/right/12", "13")

	if !r.ctrl.Arbiter().Started(1) {
		t.Fatal("joiner inside window not admitted")
	}
	// Shared start: both groups show the same letters tile for tile.
	for i, pair := range [][2]string{{"1", "11"}, {"2", "12"}, {"6", "16"}} {
		a := r.mem.LastPublished("cube/" + pair[0] + "/letter")
		b := r.mem.LastPublished("cube/" + pair[1] + "/letter")
		if a == "" || a != b {
			t.Errorf("tile %d letters differ across groups: %q vs %q", i, a, b)
		}
	}
}

func TestMalformedPayloadsDropped(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.mem.Reset()

	r.send("cube/right/99", "1")       // unknown sender
	r.send("cube/99/letter", "A")      // unknown cube
	r.send("cube/1/letter", "ZZ")      // oversized payload
	r.send("cube/1/letter", "7")       // not a letter
	r.send("some/other/topic", "junk") // unrelated topic

	if got := len(r.mem.Published()); got != 0 {
		t.Errorf("malformed input caused %d publishes", got)
	}
	if got := r.coord.Points(0); got != 0 {
		t.Errorf("malformed input scored %d points", got)
	}
}

func TestDuplicateReportDebounced(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")

	// Cubes 2 -> 1 -> 3 spell C, A, E: not a word, nothing refills.
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "3")
	borders := len(r.mem.PublishedTo("cube/2/border"))
	locks := len(r.mem.PublishedTo("cube/2/lock"))

	// Firmware re-reports the same neighbor: same arrangement, same
	// letters, no replay of the border and lock cycle.
	r.send("cube/right/1", "3")
	if got := len(r.mem.PublishedTo("cube/2/border")); got != borders {
		t.Errorf("border count %d after duplicate report, want %d", got, borders)
	}
	if got := len(r.mem.PublishedTo("cube/2/lock")); got != locks {
		t.Errorf("lock count %d after duplicate report, want %d", got, locks)
	}
	if got := r.coord.Points(0); got != 0 {
		t.Errorf("points = %d after duplicate report, want 0", got)
	}

	// Past the debounce interval the same arrangement is evaluated again.
	r.clock.advance(debounceInterval + time.Second)
	r.send("cube/right/1", "3")
	if got := len(r.mem.PublishedTo("cube/2/border")); got <= borders {
		t.Errorf("border count %d after debounce expiry, want more than %d", got, borders)
	}
	if got := r.mem.LastPublished("cube/2/border"); got != "NSW:"+BorderBad {
		t.Errorf("border = %q after debounce expiry", got)
	}
}

func TestLetterChangeReevaluatesIntactChain(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")

	// Cubes 2 -> 1 -> 6 spell C, A, T.
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "6")
	if got := r.coord.Points(0); got != 3 {
		t.Fatalf("points = %d, want 3", got)
	}

	// A refill lands an R on the head tile: the untouched chain now
	// spells RAT. The cube's letter confirmation alone must trigger a
	// fresh evaluation, with no neighbor report in between.
	r.forceRack(0, "ARERST")
	r.send("cube/2/letter", "R")

	if got := r.coord.Points(0); got != 6 {
		t.Fatalf("points = %d after letter change, want 6", got)
	}
	if got := r.mem.LastPublished("cube/2/border"); got != "NSW:"+BorderGood {
		t.Errorf("head border = %q after re-evaluation", got)
	}
}

func TestStopSessionRestoresIdleHardware(t *testing.T) {
	r := newRig(t, time.Minute)
	r.startGroup(t, [3]string{"1", "2", "3"})
	r.forceRack(0, "ACERST")
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "6")

	r.ctrl.StopSession()

	if r.coord.Running() {
		t.Fatal("session still running after stop")
	}
	for _, c := range []string{"1", "2", "3", "4", "5", "6"} {
		if got := r.mem.LastPublished("cube/" + c + "/letter"); got != " " {
			t.Errorf("cube %s letter = %q, want blank", c, got)
		}
		if got := r.mem.LastPublished("cube/" + c + "/border"); got != ":" {
			t.Errorf("cube %s border = %q, want cleared", c, got)
		}
		if got := r.mem.LastPublished("cube/" + c + "/lock"); got != "" {
			t.Errorf("cube %s lock = %q, want released", c, got)
		}
	}
	if r.ctrl.Arbiter().Active() {
		t.Error("arbiter still armed after stop")
	}
}

func TestGuessIgnoredBeforeStart(t *testing.T) {
	r := newRig(t, time.Minute)
	// No StartSession: neighbor chatter must do nothing.
	r.send("cube/right/2", "1")
	r.send("cube/right/1", "6")
	if got := len(r.mem.Published()); got != 0 {
		t.Errorf("unstarted session published %d messages", got)
	}
	if r.coord.Running() {
		t.Error("session started itself")
	}
}
