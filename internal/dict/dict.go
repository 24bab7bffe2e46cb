// internal/dict/dict.go
//
// Word list management for the blockwords engine.
// Responsibilities:
//   - Load the playable dictionary (3–6 letter words) and the bingo seed list
//     (6-letter, high-anagram-count words) from newline-delimited files.
//   - Answer word-validity queries (IsWord).
//   - Pick the shared starting rack for a session (PickBingo).
//
// Word lists:
//   - "dictionary": every word a player may form (3–6 letters).
//   - "bingos": pre-filtered 6-letter words used to seed a session's shared
//     starting rack.
//
// Randomness:
//   - Bingo selection draws from its own *rand.Rand stream, independent of
//     the gameplay stream, so initial-rack choice and subsequent letter
//     generation can be seeded and replayed separately.
//
// Constraints:
//   • Words are normalized to uppercase.
//   • Missing or empty files are a startup error; the caller treats that as
//     fatal because the anagram index cannot be built without words.

package dict

import (
	"bufio"
	"errors"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/anagram"
)

// Dictionary holds the valid-word set and the bingo seed list.
type Dictionary struct {
	words  map[string]struct{}
	all    []string // retained in load order for index building
	bingos []string
	rng    *rand.Rand // bingo stream, decoupled from gameplay randomness
}

// Load reads the dictionary and bingo files. The dictionary is required;
// with no bingo file every 6-letter dictionary word is bingo-eligible.
func Load(dictPath, bingosPath string, rng *rand.Rand) (*Dictionary, error) {
	words, err := readWordFile(dictPath)
	if err != nil {
		return nil, err
	}
	var bingos []string
	if bingosPath != "" {
		bingos, err = readWordFile(bingosPath)
		if err != nil {
			return nil, err
		}
	}
	d, err := New(words, bingos, rng)
	if err != nil {
		return nil, err
	}
	log.Info().Int("words", len(d.all)).Int("bingos", len(d.bingos)).
		Str("dictionary", dictPath).Msg("loaded word lists")
	return d, nil
}

// New builds a Dictionary from in-memory word lists (no file I/O; used by
// tests and by Load). If bingos is empty, every 6-letter dictionary word is
// eligible as a bingo.
func New(words, bingos []string, rng *rand.Rand) (*Dictionary, error) {
	d := &Dictionary{words: make(map[string]struct{}), rng: rng}
	for _, w := range words {
		w = normalize(w)
		if len(w) < anagram.MinWordLen || len(w) > anagram.MaxWordLen {
			continue
		}
		if _, dup := d.words[w]; dup {
			continue
		}
		d.words[w] = struct{}{}
		d.all = append(d.all, w)
	}
	if len(d.all) == 0 {
		return nil, errors.New("dict: word list is empty")
	}

	for _, b := range bingos {
		b = normalize(b)
		if len(b) == anagram.MaxWordLen {
			d.bingos = append(d.bingos, b)
		}
	}
	if len(d.bingos) == 0 {
		for _, w := range d.all {
			if len(w) == anagram.MaxWordLen {
				d.bingos = append(d.bingos, w)
			}
		}
	}
	if len(d.bingos) == 0 {
		return nil, errors.New("dict: no 6-letter bingo words available")
	}
	return d, nil
}

// IsWord reports whether w is a playable dictionary word.
func (d *Dictionary) IsWord(w string) bool {
	_, ok := d.words[normalize(w)]
	return ok
}

// Words returns the full word list, for anagram-index construction.
func (d *Dictionary) Words() []string { return d.all }

// PickBingo draws a 6-letter starting word from the bingo stream and returns
// its letters sorted alphabetically, the shape the shared starting rack uses.
func (d *Dictionary) PickBingo() string {
	bingo := d.bingos[d.rng.Intn(len(d.bingos))]
	log.Info().Str("bingo", bingo).Msg("selected starting bingo")
	return sortLetters(bingo)
}

// sortLetters returns the word's letters in alphabetical order.
func sortLetters(w string) string {
	b := []byte(w)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

func normalize(w string) string {
	return strings.ToUpper(strings.TrimSpace(w))
}

// readWordFile loads one word per line, skipping blanks and '#' comments.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out = append(out, w)
	}
	return out, sc.Err()
}
