package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/tokchain/pkg/markov"
	"github.com/CTAG07/tokchain/pkg/tokenize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the command tree with the byte tokenizer and returns what
// it wrote to stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCLI()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--tokenizer", tokenize.EncodingBytes}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTrainThenComplete(t *testing.T) {
	for _, name := range []string{"model.bin", "model.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			_, _, err := runCLI(t, "abcabd\n", "train", path, "2")
			require.NoError(t, err)

			stdout, stderr, err := runCLI(t, "ab\nx\nzz\nca\n", "complete", path, "--length", "1", "--seed", "42")
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
			require.Len(t, lines, 4)
			assert.Contains(t, []string{"abc", "abd"}, lines[0])
			assert.Equal(t, "", lines[1], "a seed of the wrong length yields an empty line")
			assert.Equal(t, "zz", lines[2], "an unseen seed is returned unchanged")
			assert.Equal(t, "cab", lines[3])
			assert.Contains(t, stderr, "Cannot complete line")
		})
	}
}

func TestCompleteIsReproducibleWithSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	_, _, err := runCLI(t, "the cat sat on the mat\nthe dog sat on the log\n", "train", path, "1")
	require.NoError(t, err)

	first, _, err := runCLI(t, "t\no\n", "complete", path, "--seed", "7", "--length", "20")
	require.NoError(t, err)
	second, _, err := runCLI(t, "t\no\n", "complete", path, "--seed", "7", "--length", "20")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTrainOrderArgument(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, "abc\n", "train", filepath.Join(dir, "missing-order.bin"))
	assert.ErrorIs(t, err, markov.ErrInvalidOrder)

	_, _, err = runCLI(t, "abc\n", "train", filepath.Join(dir, "zero.bin"), "0")
	assert.ErrorIs(t, err, markov.ErrInvalidOrder)

	_, _, err = runCLI(t, "abc\n", "train", filepath.Join(dir, "nan.bin"), "two")
	assert.ErrorIs(t, err, markov.ErrInvalidOrder)

	for _, name := range []string{"missing-order.bin", "zero.bin", "nan.bin"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(statErr), "no model file should be written for %s", name)
	}
}

func TestTrainExistingModelKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")

	_, _, err := runCLI(t, "abcd\n", "train", path, "2")
	require.NoError(t, err)
	_, stderr, err := runCLI(t, "abcd\n", "train", path, "3")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Ignoring order argument")

	table, err := markov.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Order())
	assert.Equal(t, 4, table.Occurrences(), "training the same line twice doubles its occurrences")
}

func TestStatsPruneExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	_, _, err := runCLI(t, "abab\nac\n", "train", path, "1")
	require.NoError(t, err)
	// a -> [b b c], b -> [a]

	stdout, _, err := runCLI(t, "", "stats", path)
	require.NoError(t, err)
	assert.Equal(t, "order: 1\nstates: 2\nchains: 3\nfrequency: 4\n", stdout)

	_, _, err = runCLI(t, "", "prune", path, "1")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, "", "export", path)
	require.NoError(t, err)

	var exported markov.ExportedModel
	require.NoError(t, json.Unmarshal([]byte(stdout), &exported))
	assert.Equal(t, markov.ExportedModel{
		Order: 1,
		Transitions: []markov.ExportedState{
			{State: []markov.TokenID{'a'}, Next: []markov.TokenID{'b', 'b'}},
		},
	}, exported)

	_, _, err = runCLI(t, "", "prune", path, "-1")
	assert.Error(t, err)
}

func TestCommandsRequireExistingModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bin")
	for _, args := range [][]string{
		{"complete", path},
		{"stats", path},
		{"prune", path, "1"},
		{"export", path},
	} {
		_, _, err := runCLI(t, "", args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestSQLiteModelNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.sqlite")

	_, _, err := runCLI(t, "abc\n", "--model-name", "first", "train", path, "1")
	require.NoError(t, err)
	_, _, err = runCLI(t, "xyz\n", "--model-name", "second", "train", path, "2")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "", "--model-name", "first", "stats", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "order: 1\n")

	stdout, _, err = runCLI(t, "", "--model-name", "second", "stats", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "order: 2\n")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.json")
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
	assert.FileExists(t, path, "a missing config file is created with defaults")

	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug","completion_length":3}`), 0644))
	config, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 3, config.CompletionLength)
	assert.Equal(t, tokenize.EncodingO200kBase, config.Tokenizer, "unset fields keep their defaults")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestConfigFileDrivesCompletionLength(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"completion_length":2}`), 0644))

	path := filepath.Join(dir, "model.bin")
	_, _, err := runCLI(t, "abcdefgh\n", "train", path, "1")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "a\n", "--config", configPath, "complete", path)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", stdout)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, "nonsense").Info("fallback to info")
	assert.Contains(t, buf.String(), "fallback to info")
}
