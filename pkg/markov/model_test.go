package markov

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestInsertAndGetModelInfo(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()

	// Test success case
	modelInfo := ModelInfo{Name: "test_model", Order: 2}
	if err := g.InsertModel(ctx, modelInfo); err != nil {
		t.Fatalf("InsertModel() failed: %v", err)
	}

	m, err := g.GetModelInfo(ctx, "test_model")
	if err != nil {
		t.Errorf("GetModelInfo: expected no error, got %v", err)
	}
	if m.Name != "test_model" || m.Order != 2 {
		t.Errorf("got unexpected model info: %+v", m)
	}

	// Test failure case (nonexistent)
	_, err = g.GetModelInfo(ctx, "nonexistent_model")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for nonexistent model, got %v", err)
	}

	// Test failure case (duplicate name)
	err = g.InsertModel(ctx, modelInfo)
	if err == nil {
		t.Errorf("expected an error when inserting a model with a duplicate name, but got nil")
	}
}

func TestGetModelInfos(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()

	_ = g.InsertModel(ctx, ModelInfo{Name: "test_model", Order: 2})
	_ = g.InsertModel(ctx, ModelInfo{Name: "another_model", Order: 1})

	models, err := g.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	if _, ok := models["test_model"]; !ok {
		t.Error("expected to find 'test_model'")
	}
	if _, ok := models["another_model"]; !ok {
		t.Error("expected to find 'another_model'")
	}
}

func TestTrainModel(t *testing.T) {
	_, g := setupTestDB(t)
	ctx := context.Background()

	model, err := g.TrainModel(ctx, "wrapper_test", 2, strings.NewReader("a b c. a b d."))
	if err != nil {
		t.Fatalf("TrainModel failed: %v", err)
	}
	if model.Name != "wrapper_test" || model.Order != 2 || model.Id == 0 {
		t.Errorf("got unexpected model info: %+v", model)
	}

	// A second model with the same name must fail at registration.
	if _, err := g.TrainModel(ctx, "wrapper_test", 2, strings.NewReader("x y z.")); err == nil {
		t.Error("expected an error for a duplicate model name")
	}
}

func TestRemoveModel(t *testing.T) {
	db, g := setupTestDB(t)
	ctx := context.Background()

	model := trainTestModel(t, g, "removable", 2, "one fish two fish. red fish blue fish.")

	if err := g.RemoveModel(ctx, model); err != nil {
		t.Fatalf("RemoveModel failed: %v", err)
	}

	if _, err := g.GetModelInfo(ctx, "removable"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected model to be gone, got %v", err)
	}

	for _, table := range []string{"markov_chains", "markov_sentences"} {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE model_id = ?", model.Id).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("expected no %s rows after removal, got %d", table, count)
		}
	}
}

func TestGetStats(t *testing.T) {
	ctx, g, model := setupTestDBWithTraining(t)

	stats, err := g.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats.Models) != 1 {
		t.Fatalf("expected 1 model in stats, got %d", len(stats.Models))
	}

	ms, ok := stats.Stats[model.Id]
	if !ok {
		t.Fatalf("expected stats for model %d", model.Id)
	}
	if ms.TotalChains == 0 || ms.TotalFrequency == 0 {
		t.Errorf("expected non-zero chain stats, got %+v", ms)
	}
	// Two sentence-initial tokens: "one" and "red".
	if ms.StartingTokens != 2 {
		t.Errorf("expected 2 starting tokens, got %d", ms.StartingTokens)
	}
	if stats.VocabSize == 0 || stats.PrefixSize == 0 {
		t.Errorf("expected non-zero vocab/prefix sizes, got %+v", stats)
	}
}
