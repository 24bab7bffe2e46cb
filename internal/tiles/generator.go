// internal/tiles/generator.go
//
// Next-letter selection for the blockwords engine.
//
// The generator owns the single gameplay random stream. Every consumer of
// gameplay randomness (rack refills, next-letter selection) draws from this
// one stream, and the stream advances exactly once per accepted-letter
// event, in event order. Replaying the same seed against the same ordered
// event log therefore reproduces an identical letter sequence.

package tiles

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/anagram"
)

// Generator picks the next falling letter using the anagram index.
type Generator struct {
	index *anagram.Index
	rng   *rand.Rand
}

// NewGenerator wires the generator to its anagram index and the shared
// gameplay random stream.
func NewGenerator(index *anagram.Index, rng *rand.Rand) *Generator {
	return &Generator{index: index, rng: rng}
}

// NextLetter chooses the next letter given the current rack letters. The
// viable set is every candidate scoring at least two thirds of the best
// score; one viable letter is chosen uniformly at random. Exactly one draw
// is made from the stream per call.
func (g *Generator) NextLetter(current string) byte {
	candidates := g.index.ScoreCandidates(current)

	max := candidates[0].Score
	viable := candidates[:0:0]
	for _, c := range candidates {
		// score >= 2/3 * max, in integer arithmetic
		if 3*c.Score >= 2*max {
			viable = append(viable, c)
		}
	}
	if len(viable) == 0 {
		letter := byte('A' + g.rng.Intn(26))
		log.Debug().Str("letter", string(letter)).Msg("no viable candidates, random letter")
		return letter
	}

	pick := viable[g.rng.Intn(len(viable))]
	log.Debug().Str("letter", string(pick.Letter)).Int("score", pick.Score).
		Int("viable", len(viable)).Msg("next letter")
	return pick.Letter
}
