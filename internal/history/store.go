// internal/history/store.go
//
// SQLite-backed record of scored words.
// Responsibilities:
//   - One row per good guess: session, player, word, rack letters at the
//     time, score.
//   - Session bookkeeping so words group by play session.
//   - Leaderboard-style queries for the HTTP surface.
//
// RecordWord is called from the bus consumer goroutine and must not block
// gameplay on storage trouble, so it logs failures instead of returning
// them.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ScoredWord is one recorded good guess.
type ScoredWord struct {
	Session int64  `json:"session"`
	Player  int    `json:"player"`
	Word    string `json:"word"`
	Letters string `json:"letters"`
	Score   int    `json:"score"`
	At      string `json:"at"`
}

// TopWord is one leaderboard row: a word's best score and how often it
// has been played.
type TopWord struct {
	Word  string `json:"word"`
	Score int    `json:"score"`
	Plays int    `json:"plays"`
}

// Store persists scored words. It satisfies game.Recorder.
type Store struct {
	db      *sql.DB
	session int64
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Init creates the schema if missing.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS scored_words (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id INTEGER REFERENCES sessions(id),
  player     INTEGER NOT NULL,
  word       TEXT NOT NULL,
  letters    TEXT NOT NULL,
  score      INTEGER NOT NULL,
  created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_scored_words_session ON scored_words(session_id);
CREATE INDEX IF NOT EXISTS idx_scored_words_word ON scored_words(word);`)
	if err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// BeginSession opens a new session row; later RecordWord calls attach to
// it.
func (s *Store) BeginSession(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}
	s.session = id
	return id, nil
}

// Session returns the current session id, zero before the first
// BeginSession.
func (s *Store) Session() int64 { return s.session }

// RecordWord persists one good guess. Storage failures are logged and
// swallowed; a wedged disk must not stop the game.
func (s *Store) RecordWord(player int, word, letters string, score int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scored_words(session_id, player, word, letters, score)
		 VALUES(?,?,?,?,?)`, s.session, player, word, letters, score)
	if err != nil {
		log.Error().Err(err).Str("word", word).Int("player", player).
			Msg("failed to record scored word")
	}
}

// SessionWords returns every word scored in a session, newest first.
func (s *Store) SessionWords(ctx context.Context, session int64) ([]ScoredWord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, player, word, letters, score, created_at
		 FROM scored_words WHERE session_id=? ORDER BY id DESC`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScoredWord
	for rows.Next() {
		var w ScoredWord
		if err := rows.Scan(&w.Session, &w.Player, &w.Word, &w.Letters, &w.Score, &w.At); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// TopWords returns the best-scoring words across all sessions.
func (s *Store) TopWords(ctx context.Context, limit int) ([]TopWord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, MAX(score), COUNT(1)
		 FROM scored_words
		 GROUP BY word
		 ORDER BY MAX(score) DESC, word ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopWord
	for rows.Next() {
		var w TopWord
		if err := rows.Scan(&w.Word, &w.Score, &w.Plays); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PlayerTotal sums a player's points in a session.
func (s *Store) PlayerTotal(ctx context.Context, session int64, player int) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(score) FROM scored_words WHERE session_id=? AND player=?`,
		session, player).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}
