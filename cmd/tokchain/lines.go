package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/CTAG07/tokchain/pkg/markov"
)

// maxLineLength prevents a single huge line from failing the whole scan.
const maxLineLength = 16 * 1024 * 1024

// trainSummary counts what a training run did.
type trainSummary struct {
	Lines   int // lines read
	Skipped int // lines that could not be tokenized
	Windows int // (state, next) occurrences recorded
}

// trainLines feeds every line of r to m. Lines that fail to tokenize are
// logged and skipped; a read error aborts the run.
func trainLines(r io.Reader, m *markov.Model, logger *slog.Logger) (trainSummary, error) {
	var summary trainSummary

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		summary.Lines++
		n, err := m.Train(scanner.Text())
		if err != nil {
			summary.Skipped++
			logger.Warn("Skipping line", "line", summary.Lines, "error", err)
			continue
		}
		logger.Debug("Fed line", "line", summary.Lines, "windows", n)
		summary.Windows += n
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("failed to read input: %w", err)
	}
	return summary, nil
}

// completeLines uses every line of r as a generation seed and writes one
// completion per line to w, in input order. A line whose seed is rejected
// produces an empty output line so the output stays aligned with the input.
func completeLines(r io.Reader, w io.Writer, m *markov.Model, length int, rng markov.Rand, logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var lineNo int
	for scanner.Scan() {
		lineNo++
		completion, err := m.Generate(scanner.Text(), length, rng)
		if err != nil {
			if !errors.Is(err, markov.ErrSeedLength) && !errors.Is(err, markov.ErrTokenize) {
				return err
			}
			logger.Warn("Cannot complete line", "line", lineNo, "error", err)
			completion = ""
		}
		if _, err = fmt.Fprintln(w, completion); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
