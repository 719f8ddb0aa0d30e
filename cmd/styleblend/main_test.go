package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpusFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunGeneratePipeline(t *testing.T) {
	dir := t.TempDir()

	techPath := writeCorpusFile(t, dir, "tech.txt",
		"the network is the computer. software eats the world. "+
			"the protocol decides the winner. the network routes around damage.")
	bardPath := writeCorpusFile(t, dir, "bard.txt",
		"the world is a stage. the lady doth protest too much. "+
			"the readiness is all. the rest is silence.")

	cfg := DefaultConfig()
	cfg.CorpusAPaths = []string{techPath}
	cfg.CorpusBPaths = []string{bardPath}
	cfg.Count = 3
	cfg.Seed = 42
	cfg.Novelty = 0 // tiny corpora cannot produce much beyond their training text
	require.NoError(t, cfg.Validate())

	sentences, err := runGenerate(context.Background(), cfg, setupLogger("error"))
	require.NoError(t, err)

	assert.NotEmpty(t, sentences)
	assert.LessOrEqual(t, len(sentences), cfg.Count)
	for _, s := range sentences {
		assert.True(t, strings.HasSuffix(s, "."), "sentence %q did not terminate", s)
		assert.LessOrEqual(t, len(s), cfg.MaxChars)
	}
}

func TestRunGenerateMissingCorpus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CorpusAPaths = []string{filepath.Join(t.TempDir(), "nope.txt")}
	cfg.Seed = 1

	_, err := runGenerate(context.Background(), cfg, setupLogger("error"))
	assert.Error(t, err)
}
