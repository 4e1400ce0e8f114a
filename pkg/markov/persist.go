package markov

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
)

// A model file is a zstd stream, compressed at the best compression level,
// wrapping one CBOR array: [order, [[state, occurrences], ...]]. States are
// written in ascending token id order and occurrence lists keep their
// recording order, so equal tables always produce identical files.

// encodedModel is the serializable representation of a Table.
type encodedModel struct {
	_           struct{} `cbor:",toarray"`
	Order       int
	Transitions []encodedState
}

// encodedState is one state of an encodedModel together with its occurrences.
type encodedState struct {
	_     struct{} `cbor:",toarray"`
	State []TokenID
	Next  []TokenID
}

// decMode lifts the default array size limit so large tables can be read.
var decMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{MaxArrayElements: math.MaxInt32}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// WriteTable encodes t to w in the model file format.
func WriteTable(w io.Writer, t *Table) error {
	encoded := encodedModel{
		Order:       t.order,
		Transitions: make([]encodedState, 0, t.Len()),
	}
	for state, next := range t.All() {
		encoded.Transitions = append(encoded.Transitions, encodedState{State: state, Next: next})
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("%w: could not create zstd encoder: %w", ErrPersistence, err)
	}
	if err = cbor.NewEncoder(zw).Encode(encoded); err != nil {
		_ = zw.Close()
		return fmt.Errorf("%w: could not encode model: %w", ErrPersistence, err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("%w: could not flush zstd stream: %w", ErrPersistence, err)
	}
	return nil
}

// ReadTable decodes a table written by WriteTable. The decoded table is
// validated: its order must be at least 1, every state must have exactly
// order tokens, no state may repeat and no occurrence list may be empty.
func ReadTable(r io.Reader) (*Table, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create zstd decoder: %w", ErrPersistence, err)
	}
	defer zr.Close()

	var encoded encodedModel
	if err = decMode.NewDecoder(zr).Decode(&encoded); err != nil {
		return nil, fmt.Errorf("%w: could not decode model: %w", ErrPersistence, err)
	}

	t, err := NewTable(encoded.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	for i, s := range encoded.Transitions {
		if len(s.State) != t.order {
			return nil, fmt.Errorf("%w: state %d has %d tokens, want %d", ErrPersistence, i, len(s.State), t.order)
		}
		if len(s.Next) == 0 {
			return nil, fmt.Errorf("%w: state %d has no occurrences", ErrPersistence, i)
		}
		key := string(appendStateKey(make([]byte, 0, t.order*tokenWidth), s.State))
		if _, dup := t.transitions[key]; dup {
			return nil, fmt.Errorf("%w: state %d is duplicated", ErrPersistence, i)
		}
		t.transitions[key] = s.Next
	}
	return t, nil
}

// SaveFile writes t to path. The file is encoded completely in memory and then
// swapped into place, so a failed save never corrupts an existing model file.
func SaveFile(path string, t *Table) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, t); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("%w: failed to write model file: %w", ErrPersistence, err)
	}
	return nil
}

// LoadFile reads a table previously written by SaveFile.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open model file: %w", ErrPersistence, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return ReadTable(bufio.NewReader(f))
}

// FileExists reports whether a model file exists at path. Callers use it to
// decide between LoadFile and constructing a fresh model.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Save writes the model's table to path with SaveFile.
func (m *Model) Save(path string) error {
	if err := SaveFile(path, m.table); err != nil {
		return err
	}
	m.logger.Info("Model file written",
		slog.String("path", path),
		slog.Int("order", m.table.order),
		slog.Int("states", m.table.Len()),
	)
	return nil
}
