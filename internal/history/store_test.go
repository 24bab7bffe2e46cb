package history

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewStore(db)
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRecordAndSessionWords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session, err := s.BeginSession(ctx)
	if err != nil {
		t.Fatal(err)
	}

	s.RecordWord(0, "CAT", "ACERST", 3)
	s.RecordWord(1, "CRATES", "ACERST", 16)

	words, err := s.SessionWords(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	// Newest first.
	if words[0].Word != "CRATES" || words[0].Score != 16 || words[0].Player != 1 {
		t.Errorf("first row = %+v", words[0])
	}
	if words[1].Word != "CAT" || words[1].Letters != "ACERST" {
		t.Errorf("second row = %+v", words[1])
	}
}

func TestTopWords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.BeginSession(ctx); err != nil {
		t.Fatal(err)
	}
	s.RecordWord(0, "CAT", "ACERST", 3)
	s.RecordWord(0, "CAT", "ACERST", 3)
	s.RecordWord(1, "CRATES", "ACERST", 16)
	s.RecordWord(0, "TEA", "AEQTXZ", 3)

	top, err := s.TopWords(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d rows, want 2", len(top))
	}
	if top[0].Word != "CRATES" || top[0].Score != 16 || top[0].Plays != 1 {
		t.Errorf("top row = %+v", top[0])
	}
	if top[1].Word != "CAT" || top[1].Plays != 2 {
		t.Errorf("second row = %+v", top[1])
	}
}

func TestPlayerTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session, err := s.BeginSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.RecordWord(0, "CAT", "ACERST", 3)
	s.RecordWord(0, "RATE", "ACERST", 4)
	s.RecordWord(1, "TEA", "ACERST", 3)

	total, err := s.PlayerTotal(ctx, session, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 7 {
		t.Errorf("player 0 total = %d, want 7", total)
	}

	// A player with no rows totals zero, not an error.
	total, err = s.PlayerTotal(ctx, session, 9)
	if err != nil || total != 0 {
		t.Errorf("empty total = %d, %v", total, err)
	}
}
