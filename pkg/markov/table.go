package markov

import (
	"encoding/binary"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// tokenWidth is the number of key bytes used per token id in a state key.
const tokenWidth = 4

// Table is the transition table of a Markov model. It maps each state (an
// ordered sequence of exactly Order token ids) to the list of token ids that
// were observed to follow it. Duplicates are kept and act as frequency weight.
//
// A Table is not safe for concurrent mutation. Concurrent lookups on a table
// that is no longer being trained are safe.
type Table struct {
	order       int
	transitions map[string][]TokenID
}

// NewTable returns an empty table bound to order. It returns an error
// matching ErrInvalidOrder if order is less than 1.
func NewTable(order int) (*Table, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be at least 1, got %d", ErrInvalidOrder, order)
	}
	return &Table{
		order:       order,
		transitions: make(map[string][]TokenID),
	}, nil
}

// Order returns the number of tokens that form a state.
func (t *Table) Order() int {
	return t.order
}

// Len returns the number of distinct states in the table.
func (t *Table) Len() int {
	return len(t.transitions)
}

// Occurrences returns the total number of recorded (state, next) occurrences.
func (t *Table) Occurrences() int {
	var total int
	for _, next := range t.transitions {
		total += len(next)
	}
	return total
}

// Record appends next to the occurrence list of state, creating the list if
// it does not exist. The caller must ensure len(state) == Order().
func (t *Table) Record(state []TokenID, next TokenID) {
	t.recordKey(appendStateKey(make([]byte, 0, len(state)*tokenWidth), state), next)
}

func (t *Table) recordKey(key []byte, next TokenID) {
	t.transitions[string(key)] = append(t.transitions[string(key)], next)
}

// Lookup returns the occurrence list recorded for state. The returned slice is
// owned by the table and must not be modified. The boolean is false if the
// state was never recorded.
func (t *Table) Lookup(state []TokenID) ([]TokenID, bool) {
	if len(state) != t.order {
		return nil, false
	}
	return t.lookupKey(appendStateKey(make([]byte, 0, len(state)*tokenWidth), state))
}

func (t *Table) lookupKey(key []byte) ([]TokenID, bool) {
	next, ok := t.transitions[string(key)]
	return next, ok
}

// All iterates over every state and its occurrence list in ascending token id
// order of the states. The yielded slices must not be modified.
func (t *Table) All() iter.Seq2[[]TokenID, []TokenID] {
	return func(yield func([]TokenID, []TokenID) bool) {
		for _, key := range slices.Sorted(maps.Keys(t.transitions)) {
			if !yield(decodeStateKey(key), t.transitions[key]) {
				return
			}
		}
	}
}

// Equal reports whether both tables have the same order, the same states and
// identical occurrence lists for every state.
func (t *Table) Equal(other *Table) bool {
	if other == nil || t.order != other.order || len(t.transitions) != len(other.transitions) {
		return false
	}
	for key, next := range t.transitions {
		otherNext, ok := other.transitions[key]
		if !ok || !slices.Equal(next, otherNext) {
			return false
		}
	}
	return true
}

// appendStateKey appends the fixed-width big-endian encoding of state to dst.
// Keys compare byte-wise in the same order as their token ids.
func appendStateKey(dst []byte, state []TokenID) []byte {
	for _, id := range state {
		dst = binary.BigEndian.AppendUint32(dst, uint32(id))
	}
	return dst
}

func decodeStateKey(key string) []TokenID {
	state := make([]TokenID, len(key)/tokenWidth)
	for i := range state {
		state[i] = TokenID(binary.BigEndian.Uint32([]byte(key[i*tokenWidth : (i+1)*tokenWidth])))
	}
	return state
}
