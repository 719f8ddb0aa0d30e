package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
)

// Config holds every knob for a styleblend run. Two corpora are trained into
// independent models, combined with the configured weights, and sampled.
type Config struct {
	CorpusAName  string   `json:"corpus_a_name"`
	CorpusAPaths []string `json:"corpus_a_paths"`
	CorpusBName  string   `json:"corpus_b_name"`
	CorpusBPaths []string `json:"corpus_b_paths"`
	WeightA      float64  `json:"weight_a"`
	WeightB      float64  `json:"weight_b"`
	Order        int      `json:"order"`
	Count        int      `json:"count"`
	MaxChars     int      `json:"max_chars"`
	MinWords     int      `json:"min_words"`
	Novelty      float64  `json:"novelty"`
	Tries        int      `json:"tries"`
	Seed         uint64   `json:"seed"` // 0 means a fresh random source per run
	LogLevel     string   `json:"log_level"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		CorpusAName:  "tech",
		CorpusAPaths: []string{"./corpora/tech.txt"},
		CorpusBName:  "shakespeare",
		CorpusBPaths: []string{
			"./corpora/hamlet.txt",
			"./corpora/macbeth.txt",
			"./corpora/caesar.txt",
		},
		WeightA:  1.0,
		WeightB:  1.0,
		Order:    2,
		Count:    1,
		MaxChars: 280,
		MinWords: 2,
		Novelty:  0.7,
		Tries:    10,
		Seed:     0,
		LogLevel: "info",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values. Environment
// variables (optionally from a .env file) override the file's values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the tool can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			config.applyEnv()
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return config, nil
}

// applyEnv overlays STYLEBLEND_* environment variables onto the config.
// A .env file in the working directory is honored when present.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	c.LogLevel = envStr("STYLEBLEND_LOG_LEVEL", c.LogLevel)
	c.CorpusAName = envStr("STYLEBLEND_CORPUS_A_NAME", c.CorpusAName)
	c.CorpusBName = envStr("STYLEBLEND_CORPUS_B_NAME", c.CorpusBName)
	c.WeightA = envFloat("STYLEBLEND_WEIGHT_A", c.WeightA)
	c.WeightB = envFloat("STYLEBLEND_WEIGHT_B", c.WeightB)
	c.Order = envInt("STYLEBLEND_ORDER", c.Order)
	c.Count = envInt("STYLEBLEND_COUNT", c.Count)
	c.MaxChars = envInt("STYLEBLEND_MAX_CHARS", c.MaxChars)
	c.MinWords = envInt("STYLEBLEND_MIN_WORDS", c.MinWords)
	c.Novelty = envFloat("STYLEBLEND_NOVELTY", c.Novelty)
	c.Tries = envInt("STYLEBLEND_TRIES", c.Tries)
	c.Seed = envUint("STYLEBLEND_SEED", c.Seed)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.CorpusAPaths) == 0 || len(c.CorpusBPaths) == 0 {
		return fmt.Errorf("both corpora need at least one file path")
	}
	if c.Order < 1 {
		return fmt.Errorf("order must be at least 1, got %d", c.Order)
	}
	if c.WeightA < 0 || c.WeightB < 0 {
		return fmt.Errorf("weights must be non-negative, got %v and %v", c.WeightA, c.WeightB)
	}
	if c.WeightA == 0 && c.WeightB == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	if c.MaxChars < 1 {
		return fmt.Errorf("max_chars must be at least 1, got %d", c.MaxChars)
	}
	if c.Novelty < 0 || c.Novelty > 1 {
		return fmt.Errorf("novelty must be between 0 and 1, got %v", c.Novelty)
	}
	if c.Tries < 1 {
		return fmt.Errorf("tries must be at least 1, got %d", c.Tries)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
