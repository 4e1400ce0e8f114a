package markov

import (
	"math/rand/v2"
	"slices"
)

// Rand is the source of randomness used to pick the next token. A
// *rand.Rand from math/rand/v2 satisfies it; tests can supply a seeded or
// scripted source to get reproducible output.
type Rand interface {
	// IntN returns a uniformly distributed integer in [0, n).
	IntN(n int) int
}

// globalRand draws from the math/rand/v2 top-level source.
type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// Generate tokenizes seed and extends it by up to length tokens, drawing each
// next token uniformly from the occurrences recorded for the current state, so
// a token recorded three times is three times as likely as one recorded once.
// The walk stops early, without error, once it reaches a state that was never
// recorded. The seed must tokenize to exactly Order() tokens; otherwise a
// *SeedLengthError is returned. A nil rng uses the math/rand/v2 global source.
func (m *Model) Generate(seed string, length int, rng Rand) (string, error) {
	seedTokens, err := m.encode(seed)
	if err != nil {
		return "", err
	}
	output, err := m.GenerateTokens(seedTokens, length, rng)
	if err != nil {
		return "", err
	}
	return m.decode(output)
}

// GenerateTokens is Generate on token ids. The returned slice starts with a
// copy of seed and holds between Order() and Order()+length ids.
func (m *Model) GenerateTokens(seed []TokenID, length int, rng Rand) ([]TokenID, error) {
	walk, err := m.Walk(seed, length, rng)
	if err != nil {
		return nil, err
	}
	return slices.AppendSeq(slices.Clone(seed), walk), nil
}
