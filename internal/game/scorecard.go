// internal/game/scorecard.go
//
// Guess bookkeeping.
// Tracks (player, word) guesses and recomputes, on every change, which
// guessed words are still formable from the reference rack's current letter
// multiset (possible) versus no longer formable (remaining). The split is a
// re-derived view, not a cached classification: the rack mutates as letters
// land, independently of guesses.

package game

import (
	"sort"

	"github.com/stephen5ng/blockwords/internal/anagram"
	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

type guessKey struct {
	player int
	word   string
}

// ScoreCard records guesses and scores for one session.
type ScoreCard struct {
	rack *tiles.Rack
	dict *dict.Dictionary

	guesses   map[guessKey]struct{}
	staged    map[string]struct{}
	possible  map[string]struct{}
	remaining map[string]struct{}
	points    map[int]int
}

// NewScoreCard builds an empty card. The rack is the reference for the
// possible/remaining split.
func NewScoreCard(rack *tiles.Rack, d *dict.Dictionary) *ScoreCard {
	return &ScoreCard{
		rack:      rack,
		dict:      d,
		guesses:   make(map[guessKey]struct{}),
		staged:    make(map[string]struct{}),
		possible:  make(map[string]struct{}),
		remaining: make(map[string]struct{}),
		points:    make(map[int]int),
	}
}

// CalculateScore is the word score: its length, plus a 10-point bonus for
// using the whole rack.
func (s *ScoreCard) CalculateScore(word string) int {
	score := len(word)
	if len(word) == anagram.MaxWordLen {
		score += 10
	}
	return score
}

// IsOldGuess reports whether the word was already scored this session.
func (s *ScoreCard) IsOldGuess(word string) bool {
	_, ok := s.staged[word]
	return ok
}

// IsGoodGuess reports whether the word is a new, valid dictionary word.
func (s *ScoreCard) IsGoodGuess(word string) bool {
	return s.dict.IsWord(word) && !s.IsOldGuess(word)
}

// AddStagedGuess marks a word as scored so a re-guess reads as old.
func (s *ScoreCard) AddStagedGuess(word string) {
	s.staged[word] = struct{}{}
}

// AddGuess records a (player, word) pair and refreshes the derived split.
func (s *ScoreCard) AddGuess(word string, player int) {
	s.guesses[guessKey{player: player, word: word}] = struct{}{}
	s.UpdatePreviousGuesses()
}

// AddPoints accumulates a player's session score.
func (s *ScoreCard) AddPoints(player, points int) {
	s.points[player] += points
}

// Points returns a player's session score.
func (s *ScoreCard) Points(player int) int { return s.points[player] }

// UpdatePreviousGuesses re-derives the possible/remaining split against the
// rack's current letters. Called after every guess and after every accepted
// letter.
func (s *ScoreCard) UpdatePreviousGuesses() {
	s.possible = make(map[string]struct{})
	s.remaining = make(map[string]struct{})
	for k := range s.guesses {
		if s.rack.MissingLetters(k.word) == "" {
			s.possible[k.word] = struct{}{}
		} else {
			s.remaining[k.word] = struct{}{}
		}
	}
}

// PossibleWords returns the guessed words still formable, sorted.
func (s *ScoreCard) PossibleWords() []string { return sortedKeys(s.possible) }

// RemainingWords returns the guessed words no longer formable, sorted.
func (s *ScoreCard) RemainingWords() []string { return sortedKeys(s.remaining) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
