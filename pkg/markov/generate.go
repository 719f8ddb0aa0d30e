package markov

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// ChainToken represents a potential next token in a Markov chain, including its
// unique ID and its (possibly weight-scaled) frequency after a given prefix.
type ChainToken struct {
	Id   int
	Freq float64
}

// sentenceOptions Is used by Sentences to configure default options.
type sentenceOptions struct {
	maxChars    int
	minWords    int
	tries       int
	novelty     float64
	temperature float64
	topK        int
	rng         *rand.Rand
}

// SentenceOption is a function that configures sampling parameters. It's used
// as a variadic argument to Sentences.
type SentenceOption func(*sentenceOptions)

// WithMaxChars sets the character budget for a single sentence, including its
// final punctuation. Candidates that exceed it before terminating are
// rejected and retried. Default: 280.
func WithMaxChars(n int) SentenceOption {
	return func(o *sentenceOptions) { o.maxChars = n }
}

// WithMinWords sets the minimum number of tokens an accepted sentence must
// contain. Default: 2.
func WithMinWords(n int) SentenceOption {
	return func(o *sentenceOptions) { o.minWords = n }
}

// WithTries sets the per-sentence retry multiplier: sampling gives up after
// count*tries attempts and returns whatever was accepted so far. Default: 10.
func WithTries(n int) SentenceOption {
	return func(o *sentenceOptions) { o.tries = n }
}

// WithNovelty sets the overlap ratio for the novelty check. A candidate is
// rejected when any contiguous window of max(2, round(ratio*words)) of its
// words appears verbatim in a recorded training sentence. 0 disables the
// check. Default: 0.7.
func WithNovelty(ratio float64) SentenceOption {
	return func(o *sentenceOptions) { o.novelty = ratio }
}

// WithTemperature adjusts the randomness of the token selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent tokens more likely).
// Values < 1.0 decrease randomness (making more frequent tokens even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent token).
func WithTemperature(t float64) SentenceOption {
	return func(o *sentenceOptions) { o.temperature = t }
}

// WithTopK restricts the token selection pool to the top `k` most frequent tokens
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) SentenceOption {
	return func(o *sentenceOptions) { o.topK = k }
}

// WithRand sets the random source used for start-state and next-token
// sampling, making runs reproducible. By default a fresh PCG source is used.
func WithRand(rng *rand.Rand) SentenceOption {
	return func(o *sentenceOptions) { o.rng = rng }
}

// WithSeed is shorthand for WithRand with a PCG source seeded from n.
func WithSeed(n uint64) SentenceOption {
	return WithRand(rand.New(rand.NewPCG(n, n)))
}

// Sentences samples up to count validated sentences from the model. Each
// attempt random-walks from the start-marker prefix until the end marker is
// reached, and is rejected on a dead end, on exceeding the character budget,
// on falling short of the minimum word count, or on failing the novelty
// check. Sampling stops after count*tries attempts, so fewer than count
// sentences may be returned; the shortfall is logged, not an error.
func (g *Generator) Sentences(ctx context.Context, model ModelInfo, count int, opts ...SentenceOption) ([]string, error) {
	options := &sentenceOptions{
		maxChars:    280,
		minWords:    2,
		tries:       10,
		novelty:     0.7,
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	sentences := make([]string, 0, max(count, 0))
	if count <= 0 {
		return sentences, nil
	}

	budget := count * options.tries
	attempts := 0
	tokenCache := map[int]string{SOCTokenID: SOCTokenText, EOCTokenID: EOCTokenText}

	for attempts < budget && len(sentences) < count {
		attempts++
		sentence, ok, err := g.sampleSentence(ctx, model, options, tokenCache)
		if err != nil {
			return nil, err
		}
		if ok {
			sentences = append(sentences, sentence)
		}
	}

	if len(sentences) < count {
		g.logger.WarnContext(ctx, "Sentence sampling fell short",
			slog.String("model_name", model.Name),
			slog.Int("model_id", model.Id),
			slog.Int("requested", count),
			slog.Int("produced", len(sentences)),
			slog.Int("attempts", attempts),
		)
	} else {
		g.logger.DebugContext(ctx, "Sentence sampling completed",
			slog.String("model_name", model.Name),
			slog.Int("model_id", model.Id),
			slog.Int("produced", len(sentences)),
			slog.Int("attempts", attempts),
		)
	}

	return sentences, nil
}

// sampleSentence performs one random walk. It returns ok=false when the
// candidate fails a validity check; that is a retryable outcome, not an error.
func (g *Generator) sampleSentence(ctx context.Context, model ModelInfo, options *sentenceOptions, tokenCache map[int]string) (string, bool, error) {
	var builder strings.Builder

	// The walk starts from the all-<SOC> prefix, whose outgoing links are
	// exactly the sentence-initial continuations with their start weights.
	prefix := make([]int, model.Order)
	words := make([]string, 0, 16)
	lastWord := SOCTokenText
	firstWord := true

	var keyBuf []byte
	for {
		keyBuf = prefixKey(keyBuf, prefix)

		choices, totalFreq, err := g.GetNextTokens(ctx, model, string(keyBuf))
		if err != nil {
			return "", false, fmt.Errorf("failed to get next tokens for prefix '%s': %w", string(keyBuf), err)
		}

		if len(choices) == 0 {
			// Dead end before any end marker: reject and retry.
			g.logger.DebugContext(ctx, "Sentence rejected at dead-end",
				slog.String("model_name", model.Name),
				slog.String("last_prefix", string(keyBuf)),
				slog.Int("word_count", len(words)),
			)
			return "", false, nil
		}

		nextToken := chooseNextToken(choices, totalFreq, options)

		if nextToken == EOCTokenID {
			builder.WriteString(g.tokenizer.EOC(lastWord))
			break
		}

		text, err := g.getTokenTextWithCache(ctx, nextToken, tokenCache)
		if err != nil {
			return "", false, fmt.Errorf("failed to get text for generated token %d: %w", nextToken, err)
		}
		if !firstWord {
			builder.WriteString(g.tokenizer.Separator(lastWord, text))
		} else {
			firstWord = false
		}
		lastWord = text
		builder.WriteString(text)
		words = append(words, text)

		// Every token adds at least one character, so the budget also bounds
		// the walk itself.
		if builder.Len() > options.maxChars {
			return "", false, nil
		}

		prefix = append(prefix[1:], nextToken)
	}

	if builder.Len() > options.maxChars || len(words) < options.minWords {
		return "", false, nil
	}

	if options.novelty > 0 {
		novel, err := g.isNovel(ctx, model, words, options.novelty)
		if err != nil {
			return "", false, err
		}
		if !novel {
			g.logger.DebugContext(ctx, "Sentence rejected by novelty check",
				slog.String("model_name", model.Name),
				slog.Int("word_count", len(words)),
			)
			return "", false, nil
		}
	}

	return builder.String(), true, nil
}

// isNovel reports whether no window of max(2, round(ratio*len)) consecutive
// words of the candidate occurs verbatim inside a recorded training sentence.
func (g *Generator) isNovel(ctx context.Context, model ModelInfo, words []string, ratio float64) (bool, error) {
	window := int(math.Round(ratio * float64(len(words))))
	if window < 2 {
		window = 2
	}
	if window > len(words) {
		window = len(words)
	}

	for i := 0; i+window <= len(words); i++ {
		needle := strings.Join(words[i:i+window], " ")
		var found bool
		if err := g.stmtMatchSentence.QueryRowContext(ctx, model.Id, needle).Scan(&found); err != nil {
			return false, fmt.Errorf("novelty lookup failed: %w", err)
		}
		if found {
			return false, nil
		}
	}
	return true, nil
}

// getTokenTextWithCache resolves a token ID to its text, memoizing lookups
// for the duration of a sampling run.
func (g *Generator) getTokenTextWithCache(ctx context.Context, id int, cache map[int]string) (string, error) {
	if text, ok := cache[id]; ok {
		return text, nil
	}
	text, err := g.VocabInt(ctx, id)
	if err != nil {
		return "", err
	}
	cache[id] = text
	return text, nil
}

// chooseNextToken abstracts the token selection logic from the sampling loop.
func chooseNextToken(choices []ChainToken, totalFreq float64, options *sentenceOptions) int {
	var nextToken int

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		sort.Slice(choices, func(i, j int) bool {
			return choices[i].Freq > choices[j].Freq
		})
		choices = choices[:options.topK]
		totalFreq = 0
		for _, choice := range choices {
			totalFreq += choice.Freq
		}
	}

	// temperature selection
	if options.temperature <= 0 { // Deterministic
		maxFreq := math.Inf(-1)
		for _, choice := range choices {
			if choice.Freq > maxFreq {
				maxFreq = choice.Freq
				nextToken = choice.Id
			}
		}
	} else if options.temperature == 1.0 { // Standard weighted random
		randChoice := options.rng.Float64() * totalFreq
		nextToken = choices[len(choices)-1].Id
		for _, choice := range choices {
			randChoice -= choice.Freq
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	} else { // Temperature-based sampling
		logProbabilities := make([]float64, len(choices))
		epsilon := -1e9
		for i, choice := range choices {
			lp := math.Log(choice.Freq) / options.temperature
			logProbabilities[i] = lp
			if lp > epsilon {
				epsilon = lp
			}
		}
		var totalWeight float64
		weights := make([]float64, len(choices))
		for i, lp := range logProbabilities {
			w := math.Exp(lp - epsilon)
			weights[i] = w
			totalWeight += w
		}
		randChoice := options.rng.Float64() * totalWeight
		nextToken = choices[len(choices)-1].Id
		for i, choice := range choices {
			randChoice -= weights[i]
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	}
	return nextToken
}
