package markov

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// collectTokens drains a stream and returns the tokens plus the number of
// EOC tokens seen.
func collectTokens(t *testing.T, tokenizer Tokenizer, text string) ([]Token, int) {
	t.Helper()
	stream := tokenizer.NewStream(strings.NewReader(text))
	var tokens []Token
	eocCount := 0
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		tokens = append(tokens, *token)
		if token.EOC {
			eocCount++
		}
	}
	return tokens, eocCount
}

func TestStreamTokenizerSentenceBoundaries(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	_, eoc := collectTokens(t, tokenizer, "one fish two fish. red fish blue fish!")
	if eoc != 2 {
		t.Errorf("expected 2 sentence boundaries, got %d", eoc)
	}
}

func TestStreamTokenizerAbbreviations(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	cases := []struct {
		text string
		eoc  int
	}{
		{"Dr. Watson met Mr. Holmes. He left.", 2},
		{"The firm was Smith Inc. for years.", 1},
		{"J. R. Hartley wrote it.", 1},
		{"No abbreviations here. Two sentences.", 2},
	}

	for _, tc := range cases {
		if _, eoc := collectTokens(t, tokenizer, tc.text); eoc != tc.eoc {
			t.Errorf("%q: expected %d sentence boundaries, got %d", tc.text, tc.eoc, eoc)
		}
	}
}

func TestStreamTokenizerCustomAbbreviations(t *testing.T) {
	tokenizer := NewDefaultTokenizer(WithAbbreviations("approxim"))

	if _, eoc := collectTokens(t, tokenizer, "it took approxim. three days. done."); eoc != 2 {
		t.Errorf("expected custom abbreviation to be honored, got %d boundaries", eoc)
	}
}

func TestSeparatorAndEOCRendering(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	if sep := tokenizer.Separator("fish", "two"); sep != " " {
		t.Errorf("expected a space between words, got %q", sep)
	}
	if sep := tokenizer.Separator("fish", ","); sep != "" {
		t.Errorf("expected no separator before punctuation, got %q", sep)
	}
	if eoc := tokenizer.EOC("fish"); eoc != "." {
		t.Errorf("expected '.' after a word, got %q", eoc)
	}
	if eoc := tokenizer.EOC(","); eoc != "" {
		t.Errorf("expected no EOC after punctuation, got %q", eoc)
	}
}
