// Package corpus loads and normalizes the plain-text corpora the models are
// trained on. A corpus is one or more UTF-8 text files for a single style,
// concatenated and run through a cleaning pass that strips editorial noise
// (bracketed stage directions, stray numbers, double hyphens) while leaving
// sentence punctuation intact.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ErrNotFound is returned by Load when a corpus file is missing or unreadable.
var ErrNotFound = errors.New("corpus: file not found")

var (
	doubleHyphenRegex = regexp.MustCompile(`--`)
	bracketRegex      = regexp.MustCompile(`\[.*?\]`)
	numberRegex       = regexp.MustCompile(`(\b|\s+-?|^-?)(\d+|\d*\.\d+)\b`)
)

// Corpus is a named, cleaned body of text, ready for model training.
// It is immutable once loaded.
type Corpus struct {
	Name string
	Text string
}

// Load reads the given files, concatenates their contents, and cleans the
// result. Any unreadable path aborts the load with an error wrapping
// ErrNotFound; a corpus is never built from a partial file set.
func Load(name string, paths ...string) (*Corpus, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("corpus '%s': no file paths given", name)
	}

	var builder strings.Builder
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("corpus '%s': reading %s: %w: %w", name, path, ErrNotFound, err)
		}
		builder.Write(data)
		builder.WriteString("\n")
	}

	return &Corpus{
		Name: name,
		Text: Clean(builder.String()),
	}, nil
}

// Clean normalizes raw corpus text: double hyphens become spaces, bracketed
// spans (stage directions, editorial notes) and standalone numbers are
// removed, and whitespace is collapsed to single spaces.
func Clean(text string) string {
	text = doubleHyphenRegex.ReplaceAllString(text, " ")
	text = bracketRegex.ReplaceAllString(text, "")
	text = numberRegex.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Reader returns the cleaned text as an io.Reader for model training.
func (c *Corpus) Reader() io.Reader {
	return strings.NewReader(c.Text)
}
