package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder is returned when a model or table is constructed with an
	// order less than 1.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrSeedLength is matched by every *SeedLengthError.
	ErrSeedLength = errors.New("seed length mismatch")
	// ErrTokenize wraps failures of the Tokenizer.
	ErrTokenize = errors.New("tokenization failed")
	// ErrPersistence wraps failures while encoding, decoding, reading or
	// writing a persisted model.
	ErrPersistence = errors.New("persistence failed")
	// ErrModelNotFound is returned by SQLStore when no model has the requested name.
	ErrModelNotFound = errors.New("model not found")
)

// SeedLengthError reports a generation seed whose tokenization does not have
// exactly Want tokens.
type SeedLengthError struct {
	Want int
	Got  int
}

func (e *SeedLengthError) Error() string {
	return fmt.Sprintf("seed must have exactly %d tokens, got %d", e.Want, e.Got)
}

func (e *SeedLengthError) Unwrap() error {
	return ErrSeedLength
}
