package markov

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ModelInfo holds the metadata of a persisted chain: its unique ID, name,
// and the order it is trained with.
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// ExportedModel is the serializable representation of a trained chain, used
// for JSON-based import and export. Successor lists keep insertion order.
type ExportedModel struct {
	Name        string              `json:"name"`
	Order       int                 `json:"order"`
	Transitions map[string][]string `json:"transitions"`
}

// GetModelInfos lists every stored chain, keyed by name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list models: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	infos := make(map[string]ModelInfo)
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Order); err != nil {
			return nil, err
		}
		infos[info.Name] = info
	}
	return infos, rows.Err()
}

// GetModelInfo looks up one chain by name. An unknown name yields
// sql.ErrNoRows.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	info := ModelInfo{Name: modelName}
	if err := s.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&info.Id, &info.Order); err != nil {
		return ModelInfo{}, err
	}
	return info, nil
}

// InsertModel registers an empty chain under model.Name. Names are unique.
func (s *Store) InsertModel(ctx context.Context, model ModelInfo) error {
	_, err := s.CreateModel(ctx, model, nil)
	return err
}

// CreateModel registers model.Name with model.Order and stores the
// transitions of chain (which may be nil) in the same transaction, so a
// failed write leaves no model behind. The returned ModelInfo carries the
// new id.
func (s *Store) CreateModel(ctx context.Context, model ModelInfo, chain *Chain) (ModelInfo, error) {
	if model.Order < 1 {
		return ModelInfo{}, fmt.Errorf("%w: got %d", ErrInvalidOrder, model.Order)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if model.Id, err = s.insertModelTx(ctx, tx, model.Name, model.Order); err != nil {
		return ModelInfo{}, err
	}
	if chain != nil {
		if err = s.writeChainTx(ctx, tx, model.Id, chain); err != nil {
			return ModelInfo{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model created",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("order", model.Order),
	)
	return model, nil
}

// insertModelTx adds the markov_models row and returns its id.
func (s *Store) insertModelTx(ctx context.Context, tx *sql.Tx, name string, order int) (int, error) {
	res, err := tx.StmtContext(ctx, s.stmtAddModel).ExecContext(ctx, name, order)
	if err != nil {
		return 0, fmt.Errorf("failed to insert model %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("could not read id of new model %q: %w", name, err)
	}
	return int(id), nil
}

// writeChainTx inserts every transition of chain under modelID, numbering
// each successor list from zero. The model must have no stored transitions.
func (s *Store) writeChainTx(ctx context.Context, tx *sql.Tx, modelID int, chain *Chain) error {
	stmtInsert := tx.StmtContext(ctx, s.stmtInsertTransition)
	var err error
	chain.Each(func(state string, successors []string) {
		for seq := 0; err == nil && seq < len(successors); seq++ {
			if _, err = stmtInsert.ExecContext(ctx, modelID, state, seq, successors[seq]); err != nil {
				err = fmt.Errorf("failed to insert transition (%q -> %q): %w", state, successors[seq], err)
			}
		}
	})
	return err
}

// RemoveModel drops a chain and its name in one transaction.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtDeleteChain).ExecContext(ctx, model.Id); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", model.Id, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Model removed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)
	return nil
}

// SaveChain replaces every transition stored for model with the contents of
// chain. The operation is performed within a transaction.
func (s *Store) SaveChain(ctx context.Context, model ModelInfo, chain *Chain) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.StmtContext(ctx, s.stmtDeleteChain).ExecContext(ctx, model.Id); err != nil {
		return fmt.Errorf("failed to clear transitions for model %d: %w", model.Id, err)
	}
	if err = s.writeChainTx(ctx, tx, model.Id, chain); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Chain saved",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("states", chain.NumStates()),
		slog.Int("transitions", chain.Len()),
	)

	return tx.Commit()
}

// LoadChain appends every transition stored for model to chain, keeping the
// stored order of each successor list. Loading into a non-empty chain adds
// to it, the same way repeated training does.
func (s *Store) LoadChain(ctx context.Context, model ModelInfo, chain *Chain) error {
	rows, err := s.stmtLoadChain.QueryContext(ctx, model.Id)
	if err != nil {
		return fmt.Errorf("could not query transitions for model %d: %w", model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	loaded := 0
	for rows.Next() {
		var state, successor string
		if err = rows.Scan(&state, &successor); err != nil {
			return err
		}
		chain.AddTransition(state, successor)
		loaded++
	}
	if err = rows.Err(); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Chain loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("transitions_loaded", loaded),
	)
	return nil
}

// ExportModel serializes a stored model into JSON and writes it to the
// provided io.Writer. This is useful for backups or for moving a model to
// another database.
func (s *Store) ExportModel(ctx context.Context, modelInfo ModelInfo, w io.Writer) error {
	chain := NewChain(nil)
	if err := s.LoadChain(ctx, modelInfo, chain); err != nil {
		return fmt.Errorf("could not load chain for export: %w", err)
	}

	transitions := make(map[string][]string, chain.NumStates())
	chain.Each(func(state string, successors []string) {
		transitions[state] = successors
	})

	exported := ExportedModel{
		Name:        modelInfo.Name,
		Order:       modelInfo.Order,
		Transitions: transitions,
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", modelInfo.Name),
		slog.Int("model_id", modelInfo.Id),
		slog.Int("states_exported", chain.NumStates()),
		slog.Int("transitions_exported", chain.Len()),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON representation of a model from an io.Reader and
// merges it into the database. If a model with the same name exists, the
// imported successors are appended after the stored ones; its order must
// match. Otherwise the model is created. The entire operation is
// transactional.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) error {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode json model: %w", err)
	}
	if imported.Name == "" {
		return errors.New("imported model has no name")
	}
	if imported.Order < 1 {
		return fmt.Errorf("imported model '%s': %w", imported.Name, ErrInvalidOrder)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID, modelOrder int
	err = tx.StmtContext(ctx, s.stmtGetModelInfo).QueryRowContext(ctx, imported.Name).Scan(&modelID, &modelOrder)
	if errors.Is(err, sql.ErrNoRows) {
		if modelID, err = s.insertModelTx(ctx, tx, imported.Name, imported.Order); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("failed to query for model '%s': %w", imported.Name, err)
	} else if modelOrder != imported.Order {
		return fmt.Errorf("model '%s' has order %d, import has order %d", imported.Name, modelOrder, imported.Order)
	}

	stmtNextSeq := tx.StmtContext(ctx, s.stmtNextSeq)
	stmtInsert := tx.StmtContext(ctx, s.stmtInsertTransition)

	merged := 0
	for state, successors := range imported.Transitions {
		var seq int
		if err := stmtNextSeq.QueryRowContext(ctx, modelID, state).Scan(&seq); err != nil {
			return fmt.Errorf("failed to find next position for state %q: %w", state, err)
		}
		for _, successor := range successors {
			if _, err := stmtInsert.ExecContext(ctx, modelID, state, seq, successor); err != nil {
				return fmt.Errorf("failed to insert transition (%q -> %q): %w", state, successor, err)
			}
			seq++
			merged++
		}
	}

	s.logger.InfoContext(ctx, "Model imported successfully",
		slog.String("model_name", imported.Name),
		slog.Int("target_model_id", modelID),
		slog.Int("states_merged", len(imported.Transitions)),
		slog.Int("transitions_merged", merged),
	)

	return tx.Commit()
}
