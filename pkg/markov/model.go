package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Model is the main entry point of the package. It couples a transition Table
// with the Tokenizer used to turn text into token ids, and offers training
// and generation on text as well as on raw token ids.
type Model struct {
	table     *Table
	tokenizer Tokenizer
	logger    *slog.Logger
}

// NewModel creates an untrained model of the given order. It returns an
// error matching ErrInvalidOrder if order is less than 1.
func NewModel(order int, tokenizer Tokenizer) (*Model, error) {
	table, err := NewTable(order)
	if err != nil {
		return nil, err
	}
	return NewModelFromTable(table, tokenizer), nil
}

// NewModelFromTable wraps an existing table, typically one returned by
// LoadFile or SQLStore.Load.
func NewModelFromTable(table *Table, tokenizer Tokenizer) *Model {
	return &Model{
		table:     table,
		tokenizer: tokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Order returns the number of preceding tokens that form a state.
func (m *Model) Order() int {
	return m.table.Order()
}

// Table returns the underlying transition table.
func (m *Model) Table() *Table {
	return m.table
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
// Providing a `log/slog.Logger` will enable logging for training and generation.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *Model) encode(text string) ([]TokenID, error) {
	tokens, err := m.tokenizer.Encode(text)
	if err != nil {
		if errors.Is(err, ErrTokenize) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenize, err)
	}
	return tokens, nil
}

func (m *Model) decode(tokens []TokenID) (string, error) {
	text, err := m.tokenizer.Decode(tokens)
	if err != nil {
		if errors.Is(err, ErrTokenize) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrTokenize, err)
	}
	return text, nil
}
