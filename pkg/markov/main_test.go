package markov

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates a new SQLite database and a Generator for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Generator) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	tokenizer := NewDefaultTokenizer()
	g, err := NewGenerator(db, tokenizer)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	t.Cleanup(g.Close)

	return db, g
}

// trainTestModel registers and trains a model from the given text, failing
// the test on any error.
func trainTestModel(t *testing.T, g *Generator, name string, order int, text string) ModelInfo {
	t.Helper()
	ctx := context.Background()
	model, err := g.TrainModel(ctx, name, order, strings.NewReader(text))
	if err != nil {
		t.Fatalf("setup: TrainModel(%q) failed: %v", name, err)
	}
	return model
}

// setupTestDBWithTraining is a convenience helper that also trains a default model.
func setupTestDBWithTraining(t *testing.T) (context.Context, *Generator, ModelInfo) {
	_, g := setupTestDB(t)
	model := trainTestModel(t, g, "test_model", 2, "one fish two fish. red fish blue fish.")
	return context.Background(), g, model
}
