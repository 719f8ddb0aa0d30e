package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ModelInfo holds the essential metadata for a Markov model, including its
// unique ID, name, and the order of the chain (the number of preceding tokens
// used to predict the next one).
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// GetModelInfos retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (g *Generator) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := g.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model specified by name.
// If multiple models are needed, GetModelInfos is more efficient.
func (g *Generator) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	var modelId, modelOrder int
	err := g.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&modelId, &modelOrder)
	if err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{
		Id:    modelId,
		Name:  modelName,
		Order: modelOrder,
	}, nil
}

// InsertModel creates a new model entry in the database.
func (g *Generator) InsertModel(ctx context.Context, model ModelInfo) error {
	_, err := g.stmtAddModel.ExecContext(ctx, model.Name, model.Order)
	return err
}

// RemoveModel deletes a model along with its chain and sentence data.
// The operation is performed within a transaction.
func (g *Generator) RemoveModel(ctx context.Context, model ModelInfo) error {

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove chains for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_sentences WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove sentences for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}

	g.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// TrainModel is a convenience wrapper that registers a new model with the
// given name and order and trains it from r in one call.
func (g *Generator) TrainModel(ctx context.Context, name string, order int, r io.Reader) (ModelInfo, error) {
	if err := g.InsertModel(ctx, ModelInfo{Name: name, Order: order}); err != nil {
		return ModelInfo{}, fmt.Errorf("could not register model '%s': %w", name, err)
	}
	model, err := g.GetModelInfo(ctx, name)
	if err != nil {
		return ModelInfo{}, err
	}
	if err := g.Train(ctx, model, r); err != nil {
		return ModelInfo{}, err
	}
	return model, nil
}
