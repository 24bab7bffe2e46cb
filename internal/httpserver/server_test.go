package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stephen5ng/blockwords/internal/anagram"
	"github.com/stephen5ng/blockwords/internal/bus"
	"github.com/stephen5ng/blockwords/internal/cubes"
	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/game"
	"github.com/stephen5ng/blockwords/internal/history"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

const testSecret = "test-secret"

var serverWords = []string{
	"CAT", "ACT", "RAT", "TAR", "ART", "CAR", "ARC", "EAT", "TEA", "ATE",
	"CRATES", "TRACES", "REACTS",
}

func newTestServer(t *testing.T) (*Server, *game.Coordinator) {
	t.Helper()
	d, err := dict.New(serverWords, []string{"CRATES"}, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	gen := tiles.NewGenerator(anagram.NewIndex(serverWords), rand.New(rand.NewSource(3)))
	racks := game.NewRackManager(d, gen)
	coord := game.NewCoordinator(d, racks)
	ctrl := cubes.NewController(bus.NewMemory(), coord, cubes.Config{})

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	store := history.NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	return New(coord, ctrl, store, testSecret, nil), coord
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("bad JSON from %s %s: %v: %s", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, out := doJSON(t, s.Router(), http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("health = %d %v", rec.Code, out)
	}
}

func TestSessionControlRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/session/start", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d, want 401", rec.Code)
	}

	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/session/start", "garbage", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: code = %d, want 401", rec.Code)
	}

	// A token signed with another secret is rejected.
	wrong, err := SignToken("other-secret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/session/start", wrong, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: code = %d, want 401", rec.Code)
	}
}

func TestKeyboardSessionAndGuess(t *testing.T) {
	s, coord := newTestServer(t)
	token, err := SignToken(testSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	rec, out := doJSON(t, s.Router(), http.MethodPost, "/session/start", token,
		`{"keyboard":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: code = %d %v", rec.Code, out)
	}
	if !coord.Running() {
		t.Fatal("session not running after start")
	}

	// The bingo rack is CRATES sorted: ACERST. CAT is on it.
	rec, out = doJSON(t, s.Router(), http.MethodPost, "/guess", "",
		`{"word":"CAT","player":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("guess: code = %d %v", rec.Code, out)
	}
	if out["outcome"] != "good" {
		t.Fatalf("outcome = %v, want good", out["outcome"])
	}
	if out["points"] != float64(3) {
		t.Fatalf("points = %v, want 3", out["points"])
	}

	rec, out = doJSON(t, s.Router(), http.MethodGet, "/rack/0", "", "")
	if rec.Code != http.StatusOK || len(out["letters"].(string)) != tiles.MaxTiles {
		t.Fatalf("rack = %d %v", rec.Code, out)
	}

	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/session/stop", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: code = %d", rec.Code)
	}
	if coord.Running() {
		t.Fatal("session still running after stop")
	}
}

func TestGuessValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/guess", "", `{"word":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty word: code = %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, s.Router(), http.MethodPost, "/guess", "", `{"word":"CAT","player":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad player: code = %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, s.Router(), http.MethodGet, "/rack/notanumber", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad player param: code = %d, want 400", rec.Code)
	}
}

func TestTopScores(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.store.BeginSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.store.RecordWord(0, "CRATES", "ACERST", 16)
	s.store.RecordWord(1, "CAT", "ACERST", 3)

	rec, out := doJSON(t, s.Router(), http.MethodGet, "/scores/top?limit=1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	top := out["top"].([]any)
	if len(top) != 1 {
		t.Fatalf("top rows = %d, want 1", len(top))
	}
	row := top[0].(map[string]any)
	if row["word"] != "CRATES" || row["score"] != float64(16) {
		t.Errorf("top row = %v", row)
	}

	rec, _ = doJSON(t, s.Router(), http.MethodGet, "/scores/top?limit=0", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit 0: code = %d, want 400", rec.Code)
	}
}

func TestScoresShape(t *testing.T) {
	s, _ := newTestServer(t)
	rec, out := doJSON(t, s.Router(), http.MethodGet, "/scores", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if out["running"] != false {
		t.Errorf("running = %v before start", out["running"])
	}
	if players := out["players"].([]any); len(players) != game.MaxPlayers {
		t.Errorf("players = %d, want %d", len(players), game.MaxPlayers)
	}
}
