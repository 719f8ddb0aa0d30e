package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// ErrOrderMismatch is returned by Combine when the source models do not all
// share the same chain order.
var ErrOrderMismatch = errors.New("markov: combined models must share the same order")

// ModelWeight pairs a source model with its combination weight. Weights must
// be non-negative; a zero weight leaves the source out of the result entirely.
type ModelWeight struct {
	Model  ModelInfo
	Weight float64
}

// Combine merges the source models into a new model named name, scaling each
// source's transition frequencies by its weight and summing overlapping
// links: combined(s, w) = Σᵢ weightᵢ · freqᵢ(s, w). Start states merge the
// same way, since they are ordinary links out of the start-marker prefix.
// Sentence records of every positively weighted source are carried over so
// the sampler's novelty check sees both corpora.
//
// The merge is deterministic and transactional; on any error, including an
// order mismatch, no combined model is created.
func (g *Generator) Combine(ctx context.Context, name string, sources []ModelWeight) (ModelInfo, error) {
	if len(sources) == 0 {
		return ModelInfo{}, fmt.Errorf("combine '%s': no source models given", name)
	}

	order := sources[0].Model.Order
	for _, src := range sources {
		if src.Model.Order != order {
			return ModelInfo{}, fmt.Errorf("combine '%s': model '%s' has order %d, expected %d: %w",
				name, src.Model.Name, src.Model.Order, order, ErrOrderMismatch)
		}
		if src.Weight < 0 {
			return ModelInfo{}, fmt.Errorf("combine '%s': model '%s' has negative weight %v", name, src.Model.Name, src.Weight)
		}
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for combine: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	res, err := tx.ExecContext(ctx, "INSERT INTO markov_models (model_name, model_order) VALUES (?, ?)", name, order)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to insert combined model '%s': %w", name, err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to resolve id of combined model '%s': %w", name, err)
	}

	const mergeChains = `
INSERT INTO markov_chains (model_id, prefix_id, next_token_id, frequency)
SELECT ?, prefix_id, next_token_id, frequency * ?
FROM markov_chains WHERE model_id = ?
ON CONFLICT(model_id, prefix_id, next_token_id) DO UPDATE SET frequency = frequency + excluded.frequency;
`
	const copySentences = `
INSERT INTO markov_sentences (model_id, sentence_text)
SELECT ?, sentence_text FROM markov_sentences WHERE model_id = ?;
`

	for _, src := range sources {
		if src.Weight == 0 {
			continue
		}
		if _, err = tx.ExecContext(ctx, mergeChains, newID, src.Weight, src.Model.Id); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to merge chains of model '%s': %w", src.Model.Name, err)
		}
		if _, err = tx.ExecContext(ctx, copySentences, newID, src.Model.Id); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to copy sentences of model '%s': %w", src.Model.Name, err)
		}
	}

	combined := ModelInfo{Id: int(newID), Name: name, Order: order}

	g.logger.InfoContext(ctx, "Models combined",
		slog.String("model_name", name),
		slog.Int("model_id", combined.Id),
		slog.Int("model_order", order),
		slog.Int("source_count", len(sources)),
	)

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, fmt.Errorf("could not commit combine transaction: %w", err)
	}

	return combined, nil
}
