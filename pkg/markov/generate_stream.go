package markov

import (
	"iter"
	"log/slog"
	"slices"
)

// window is a ring buffer holding the most recent Order tokens of a walk.
type window struct {
	tokens []TokenID
	head   int // index of the oldest token
}

func newWindow(seed []TokenID) *window {
	return &window{tokens: slices.Clone(seed)}
}

// push drops the oldest token and appends id as the newest.
func (w *window) push(id TokenID) {
	w.tokens[w.head] = id
	w.head = (w.head + 1) % len(w.tokens)
}

// appendKey appends the state key of the window, oldest token first.
func (w *window) appendKey(dst []byte) []byte {
	dst = appendStateKey(dst, w.tokens[w.head:])
	return appendStateKey(dst, w.tokens[:w.head])
}

// Walk returns an iterator over the tokens generated after seed, one token at
// a time. This allows for processing the output as it is produced, which is
// useful for long walks or for stopping on a caller-defined condition. The
// iterator yields at most length tokens and stops early once it reaches a
// state that was never recorded. Each range over the iterator starts a new
// walk from seed.
//
// The seed must have exactly Order() tokens; otherwise a *SeedLengthError is
// returned. A nil rng uses the math/rand/v2 global source.
func (m *Model) Walk(seed []TokenID, length int, rng Rand) (iter.Seq[TokenID], error) {
	order := m.table.order
	if len(seed) != order {
		return nil, &SeedLengthError{Want: order, Got: len(seed)}
	}
	if rng == nil {
		rng = globalRand{}
	}
	seed = slices.Clone(seed)

	return func(yield func(TokenID) bool) {
		state := newWindow(seed)
		keyBuf := make([]byte, 0, order*tokenWidth)

		for generated := 0; generated < length; generated++ {
			keyBuf = state.appendKey(keyBuf[:0])
			candidates, ok := m.table.lookupKey(keyBuf)
			if !ok || len(candidates) == 0 { // Dead end in chain
				m.logger.Debug("Generation terminated due to dead-end",
					slog.Int("generated_length", generated),
					slog.Int("max_length", length),
				)
				return
			}

			next := candidates[rng.IntN(len(candidates))]
			if !yield(next) {
				return
			}
			state.push(next)
		}

		m.logger.Debug("Generation terminated by reaching maxLength",
			slog.Int("max_length", length),
		)
	}, nil
}
