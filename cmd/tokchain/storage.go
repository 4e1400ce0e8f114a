package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/CTAG07/tokchain/pkg/markov"
)

// modelStore loads and saves the single model a command works on.
type modelStore interface {
	// Load returns the stored table, or false if nothing is stored yet.
	Load(ctx context.Context) (*markov.Table, bool, error)
	Save(ctx context.Context, t *markov.Table) error
	Close() error
}

// openStore picks the SQLite profile for .db, .sqlite and .sqlite3 paths and
// the compressed model file profile for everything else.
func openStore(path, modelName string, logger *slog.Logger) (modelStore, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		db, err := openDatabase(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open database %q: %w", markov.ErrPersistence, path, err)
		}
		if err = markov.SetupSchema(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: failed to setup markov schema: %w", markov.ErrPersistence, err)
		}
		store, err := markov.NewSQLStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: failed to prepare statements: %w", markov.ErrPersistence, err)
		}
		store.SetLogger(logger)
		return &sqliteStore{db: db, store: store, name: modelName}, nil
	default:
		return &fileStore{path: path, logger: logger}, nil
	}
}

type fileStore struct {
	path   string
	logger *slog.Logger
}

func (s *fileStore) Load(_ context.Context) (*markov.Table, bool, error) {
	exists, err := markov.FileExists(s.path)
	if err != nil || !exists {
		return nil, false, err
	}
	t, err := markov.LoadFile(s.path)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *fileStore) Save(ctx context.Context, t *markov.Table) error {
	if err := markov.SaveFile(s.path, t); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Model file written",
		slog.String("path", s.path),
		slog.Int("order", t.Order()),
		slog.Int("states", t.Len()),
	)
	return nil
}

func (s *fileStore) Close() error {
	return nil
}

type sqliteStore struct {
	db    *sql.DB
	store *markov.SQLStore
	name  string
}

func (s *sqliteStore) Load(ctx context.Context) (*markov.Table, bool, error) {
	t, err := s.store.Load(ctx, s.name)
	if errors.Is(err, markov.ErrModelNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, t *markov.Table) error {
	return s.store.Save(ctx, s.name, t)
}

func (s *sqliteStore) Close() error {
	s.store.Close()
	return s.db.Close()
}
