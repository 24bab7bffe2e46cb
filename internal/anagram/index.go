// internal/anagram/index.go
//
// Anagram index for the blockwords letter generator.
// Responsibilities:
//   - Build a map from letter-frequency signature to dictionary word count.
//   - Count how many dictionary words are formable from subsets of a letter
//     multiset (CountAnagrams).
//   - Score every candidate next letter A–Z by anagram richness
//     (ScoreCandidates).
//
// Notes:
//   - A Signature identifies a letter multiset up to anagram equivalence:
//     two multisets are anagrams of each other iff their signatures are equal.
//   - Only words of 3–6 alphabetic letters participate in the index.
//   - The index is built once at startup and is read-only afterwards.

package anagram

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// MinWordLen and MaxWordLen bound the words that enter the index and the
	// subset sizes considered when counting.
	MinWordLen = 3
	MaxWordLen = 6
)

// Signature is a 26-length letter-frequency vector for the letters A–Z.
// It is a value type and usable as a map key.
type Signature [26]uint8

// Sign computes the signature of a letter multiset. Case-insensitive;
// non-ASCII-letter characters are ignored.
func Sign(letters string) Signature {
	var sig Signature
	for i := 0; i < len(letters); i++ {
		if j := letterIndex(letters[i]); j >= 0 {
			sig[j]++
		}
	}
	return sig
}

// letterIndex maps an ASCII letter byte to 0..25, or -1 for anything else.
func letterIndex(b byte) int {
	switch {
	case b >= 'A' && b <= 'Z':
		return int(b - 'A')
	case b >= 'a' && b <= 'z':
		return int(b - 'a')
	}
	return -1
}

// Index maps signatures to the number of dictionary words carrying that
// exact signature.
type Index struct {
	counts map[Signature]int
	words  int
}

// NewIndex builds an index from a word list. Words outside 3–6 letters or
// containing non-alphabetic characters are skipped.
func NewIndex(words []string) *Index {
	ix := &Index{counts: make(map[Signature]int)}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if len(w) < MinWordLen || len(w) > MaxWordLen || !isAlpha(w) {
			continue
		}
		ix.counts[Sign(w)]++
		ix.words++
	}
	log.Info().Int("signatures", len(ix.counts)).Int("words", ix.words).
		Msg("built anagram index")
	return ix
}

// Words reports how many words entered the index.
func (ix *Index) Words() int { return ix.words }

// CountAnagrams counts the dictionary words formable from any subset of the
// given letters (subset sizes 3 up to len(letters)). Signatures repeated
// across different subsets are counted once: enumerating positions would
// otherwise double-count multisets when the input has duplicate letters.
func (ix *Index) CountAnagrams(letters string) int {
	n := len(letters)
	if n < MinWordLen {
		return 0
	}
	total := 0
	seen := make(map[Signature]struct{})
	for mask := 1; mask < 1<<uint(n); mask++ {
		k := bits.OnesCount(uint(mask))
		if k < MinWordLen || k > MaxWordLen {
			continue
		}
		var sig Signature
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			if j := letterIndex(letters[i]); j >= 0 {
				sig[j]++
			}
		}
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		total += ix.counts[sig]
	}
	return total
}

// Candidate is one (letter, score) pair from ScoreCandidates.
type Candidate struct {
	Letter byte
	Score  int
}

// ScoreCandidates scores every letter A–Z as the next letter added to base.
// The result always has exactly 26 entries, sorted by score descending with
// ties broken alphabetically.
func (ix *Index) ScoreCandidates(base string) []Candidate {
	out := make([]Candidate, 0, 26)
	for c := byte('A'); c <= 'Z'; c++ {
		out = append(out, Candidate{
			Letter: c,
			Score:  ix.CountAnagrams(base + string(c)),
		})
	}
	// Candidates are appended in alphabetical order; a stable sort keeps
	// equal scores alphabetical.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// isAlpha reports whether s consists only of ASCII letters.
func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if letterIndex(s[i]) < 0 {
			return false
		}
	}
	return true
}
