package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ModelInfo holds the metadata of a model stored in a SQLite database: its
// unique ID, name, and the order of the chain.
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// SetupSchema initializes the tables used by SQLStore in the provided
// database. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    prefix_text TEXT NOT NULL,
    position INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    PRIMARY KEY (model_id, prefix_text, position)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// SQLStore persists any number of named tables in a SQLite database. The
// order of every occurrence list is preserved, so a loaded table is Equal to
// the one that was saved.
type SQLStore struct {
	db                  *sql.DB
	stmtGetModelInfo    *sql.Stmt
	stmtGetModels       *sql.Stmt
	stmtUpsertModel     *sql.Stmt
	stmtGetTransitions  *sql.Stmt
	stmtInsertNext      *sql.Stmt
	stmtClearModel      *sql.Stmt
	stmtRemoveModelInfo *sql.Stmt
	logger              *slog.Logger
}

// NewSQLStore creates a SQLStore on a database prepared with SetupSchema. It
// pre-compiles all necessary SQL statements, returning an error if any
// preparation fails.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, model_order FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, model_order FROM markov_models ORDER BY model_name;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertModel, err := db.Prepare(`INSERT INTO markov_models (model_name, model_order) VALUES (?, ?) ON CONFLICT(model_name) DO UPDATE SET model_order=excluded.model_order RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT prefix_text, next_token_id FROM markov_transitions WHERE model_id = ? ORDER BY prefix_text, position;`)
	if err != nil {
		return nil, err
	}

	stmtInsertNext, err := db.Prepare(`INSERT INTO markov_transitions (model_id, prefix_text, position, next_token_id) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtClearModel, err := db.Prepare(`DELETE FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtRemoveModelInfo, err := db.Prepare(`DELETE FROM markov_models WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:                  db,
		stmtGetModelInfo:    stmtGetModelInfo,
		stmtGetModels:       stmtGetModels,
		stmtUpsertModel:     stmtUpsertModel,
		stmtGetTransitions:  stmtGetTransitions,
		stmtInsertNext:      stmtInsertNext,
		stmtClearModel:      stmtClearModel,
		stmtRemoveModelInfo: stmtRemoveModelInfo,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the SQLStore. It does not
// close the database.
func (s *SQLStore) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtUpsertModel.Close()
	_ = s.stmtGetTransitions.Close()
	_ = s.stmtInsertNext.Close()
	_ = s.stmtClearModel.Close()
	_ = s.stmtRemoveModelInfo.Close()
}

// SetLogger sets the logger for the SQLStore. By default, all logs are discarded.
func (s *SQLStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// ModelInfo retrieves the metadata for a single model specified by name. It
// returns an error matching ErrModelNotFound if no such model exists.
func (s *SQLStore) ModelInfo(ctx context.Context, name string) (ModelInfo, error) {
	var modelId, modelOrder int
	err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&modelId, &modelOrder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModelInfo{}, fmt.Errorf("%w: %q", ErrModelNotFound, name)
		}
		return ModelInfo{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return ModelInfo{
		Id:    modelId,
		Name:  name,
		Order: modelOrder,
	}, nil
}

// Models retrieves metadata for all models in the database, sorted by name.
func (s *SQLStore) Models(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var models []ModelInfo
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		models = append(models, model)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return models, nil
}

// Save stores t under name, replacing any model previously saved with that
// name. The operation is performed within a single transaction, so readers
// see either the old model or the new one.
func (s *SQLStore) Save(ctx context.Context, name string, t *Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: could not begin transaction: %w", ErrPersistence, err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtUpsertModel).QueryRowContext(ctx, name, t.order).Scan(&modelID); err != nil {
		return fmt.Errorf("%w: failed to upsert model %q: %w", ErrPersistence, name, err)
	}
	if _, err = tx.StmtContext(ctx, s.stmtClearModel).ExecContext(ctx, modelID); err != nil {
		return fmt.Errorf("%w: failed to clear transitions of model %q: %w", ErrPersistence, name, err)
	}

	stmtInsertNext := tx.StmtContext(ctx, s.stmtInsertNext)
	var keyBuf []byte
	var rowCount int
	for state, next := range t.All() {
		keyBuf = appendPrefixText(keyBuf[:0], state)
		prefixText := string(keyBuf)
		for position, tokenID := range next {
			if _, err = stmtInsertNext.ExecContext(ctx, modelID, prefixText, position, int64(tokenID)); err != nil {
				return fmt.Errorf("%w: failed to insert transition (%s -> %d): %w", ErrPersistence, prefixText, tokenID, err)
			}
			rowCount++
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: could not commit transaction: %w", ErrPersistence, err)
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("states", t.Len()),
		slog.Int("transitions", rowCount),
	)
	return nil
}

// Load rebuilds the table stored under name. It returns an error matching
// ErrModelNotFound if no such model exists.
func (s *SQLStore) Load(ctx context.Context, name string) (*Table, error) {
	info, err := s.ModelInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	t, err := NewTable(info.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: model %q: %w", ErrPersistence, name, err)
	}

	rows, err := s.stmtGetTransitions.QueryContext(ctx, info.Id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var prefixText string
	var nextID int64
	var lastPrefix string
	var keyBuf []byte
	for rows.Next() {
		if err = rows.Scan(&prefixText, &nextID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if prefixText != lastPrefix {
			state, err := parsePrefixText(prefixText)
			if err != nil {
				return nil, fmt.Errorf("%w: model %q: %w", ErrPersistence, name, err)
			}
			if len(state) != t.order {
				return nil, fmt.Errorf("%w: model %q: prefix %q has %d tokens, want %d", ErrPersistence, name, prefixText, len(state), t.order)
			}
			keyBuf = appendStateKey(make([]byte, 0, t.order*tokenWidth), state)
			lastPrefix = prefixText
		}
		t.recordKey(keyBuf, TokenID(nextID))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", info.Id),
		slog.Int("states", t.Len()),
	)
	return t, nil
}

// Remove deletes a model and all of its transitions from the database. The
// operation is performed within a transaction. Removing an unknown model
// returns an error matching ErrModelNotFound.
func (s *SQLStore) Remove(ctx context.Context, name string) error {
	info, err := s.ModelInfo(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: could not begin transaction: %w", ErrPersistence, err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtClearModel).ExecContext(ctx, info.Id); err != nil {
		return fmt.Errorf("%w: failed to remove transitions for model %d: %w", ErrPersistence, info.Id, err)
	}
	if _, err = tx.StmtContext(ctx, s.stmtRemoveModelInfo).ExecContext(ctx, info.Id); err != nil {
		return fmt.Errorf("%w: failed to remove model %d: %w", ErrPersistence, info.Id, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: could not commit transaction: %w", ErrPersistence, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
	)
	return nil
}

// appendPrefixText appends state as space separated decimal ids, the prefix
// key format of the markov_transitions table.
func appendPrefixText(dst []byte, state []TokenID) []byte {
	for j, tokenID := range state {
		if j > 0 {
			dst = append(dst, ' ')
		}
		dst = strconv.AppendUint(dst, uint64(tokenID), 10)
	}
	return dst
}

func parsePrefixText(text string) ([]TokenID, error) {
	fields := strings.Fields(text)
	state := make([]TokenID, len(fields))
	for i, field := range fields {
		id, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid prefix %q: %w", text, err)
		}
		state[i] = TokenID(id)
	}
	return state, nil
}
