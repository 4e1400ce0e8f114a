package markov

import (
	"database/sql"
	"fmt"
	"go/build"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// wordTokenizer is a whitespace tokenizer that assigns ids 1, 2, 3... to words
// in the order it first sees them, so "a b c a b d" encodes to [1 2 3 1 2 4].
type wordTokenizer struct {
	ids   map[string]TokenID
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]TokenID)}
}

func (w *wordTokenizer) Encode(text string) ([]TokenID, error) {
	fields := strings.Fields(text)
	tokens := make([]TokenID, len(fields))
	for i, field := range fields {
		id, ok := w.ids[field]
		if !ok {
			w.words = append(w.words, field)
			id = TokenID(len(w.words))
			w.ids[field] = id
		}
		tokens[i] = id
	}
	return tokens, nil
}

func (w *wordTokenizer) Decode(tokens []TokenID) (string, error) {
	words := make([]string, len(tokens))
	for i, id := range tokens {
		if id == 0 || int(id) > len(w.words) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		words[i] = w.words[id-1]
	}
	return strings.Join(words, " "), nil
}

// failingTokenizer rejects every input.
type failingTokenizer struct{}

func (failingTokenizer) Encode(string) ([]TokenID, error) {
	return nil, fmt.Errorf("cannot encode")
}

func (failingTokenizer) Decode([]TokenID) (string, error) {
	return "", fmt.Errorf("cannot decode")
}

// scriptedRand returns its picks in order (modulo n) and remembers every n it
// was asked for.
type scriptedRand struct {
	picks []int
	calls []int
}

func (r *scriptedRand) IntN(n int) int {
	pick := r.picks[len(r.calls)%len(r.picks)]
	r.calls = append(r.calls, n)
	return pick % n
}

// setupTestModel creates a model with a fresh word tokenizer and trains it on
// lines.
func setupTestModel(t *testing.T, order int, lines ...string) *Model {
	t.Helper()
	m, err := NewModel(order, newWordTokenizer())
	if err != nil {
		t.Fatalf("NewModel(%d) error = %v", order, err)
	}
	for _, line := range lines {
		if _, err := m.Train(line); err != nil {
			t.Fatalf("setup: Train(%q) failed: %v", line, err)
		}
	}
	return m
}

// setupTestDB creates a new SQLite database and a SQLStore for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *SQLStore) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewSQLStore(db)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// sortedOccurrences returns a copy of the table's transitions with every
// occurrence list sorted, for multiset comparisons.
func sortedOccurrences(tb *Table) map[string][]TokenID {
	out := make(map[string][]TokenID, len(tb.transitions))
	for key, next := range tb.transitions {
		out[key] = slices.Sorted(slices.Values(next))
	}
	return out
}

var (
	benchmarkCorpus []string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a line corpus for benchmarking.
func createBenchmarkCorpus() []string {
	corpusOnce.Do(func() {
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = []string{"this is a fallback corpus for benchmarking. it is not very long but will prevent a crash."}
				return
			}
			benchmarkCorpus = append(benchmarkCorpus, strings.Split(string(content), "\n")...)
		}
	})
	return benchmarkCorpus
}
