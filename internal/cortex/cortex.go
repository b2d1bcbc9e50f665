// Package cortex fronts the platform AI functions the pipelines call
// (sentiment scoring, summarization, classification, completion, forecasting,
// anomaly detection). The functions are opaque to callers; the default engine
// is a deterministic local stand-in so the demo runs without remote services.
package cortex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"slicehouse/pkg/errors"
)

// Engine is the set of platform functions available to pipelines and reports.
type Engine interface {
	// Sentiment scores text in [-1, 1].
	Sentiment(ctx context.Context, text string) (float64, error)
	// Summarize produces a short extract of the text.
	Summarize(ctx context.Context, text string) (string, error)
	// Classify assigns one of the given labels to the text.
	Classify(ctx context.Context, text string, labels []string) (string, error)
	// Complete produces a completion for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Forecast extends a numeric series by horizon steps.
	Forecast(ctx context.Context, series []float64, horizon int) ([]float64, error)
	// DetectAnomalies flags series points whose rolling z-score is extreme.
	DetectAnomalies(ctx context.Context, series []float64) ([]bool, error)
}

// LocalEngine is the deterministic in-process engine. Sentiment results are
// cached: review texts repeat heavily in generated datasets.
type LocalEngine struct {
	cache *ttlcache.Cache[string, float64]
}

// NewLocalEngine creates a local engine with a one-hour sentiment cache.
func NewLocalEngine() *LocalEngine {
	cache := ttlcache.New[string, float64](
		ttlcache.WithTTL[string, float64](time.Hour),
		ttlcache.WithCapacity[string, float64](10_000),
	)
	go cache.Start()
	return &LocalEngine{cache: cache}
}

// Stop releases the cache janitor.
func (e *LocalEngine) Stop() {
	e.cache.Stop()
}

var positiveWords = map[string]bool{
	"amazing": true, "awesome": true, "best": true, "crispy": true,
	"delicious": true, "excellent": true, "fantastic": true, "fast": true,
	"fresh": true, "friendly": true, "great": true, "good": true,
	"love": true, "loved": true, "perfect": true, "tasty": true, "wonderful": true,
}

var negativeWords = map[string]bool{
	"awful": true, "bad": true, "bland": true, "burnt": true, "cold": true,
	"disappointing": true, "greasy": true, "horrible": true, "late": true,
	"rude": true, "slow": true, "soggy": true, "stale": true, "terrible": true,
	"worst": true, "wrong": true,
}

// Sentiment scores text by lexicon hit balance.
func (e *LocalEngine) Sentiment(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if item := e.cache.Get(text); item != nil {
		return item.Value(), nil
	}

	pos, neg := 0, 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"")
		if positiveWords[word] {
			pos++
		}
		if negativeWords[word] {
			neg++
		}
	}
	score := 0.0
	if pos+neg > 0 {
		score = float64(pos-neg) / float64(pos+neg)
	}
	e.cache.Set(text, score, ttlcache.DefaultTTL)
	return score, nil
}

// Summarize returns the first two sentences of the text.
func (e *LocalEngine) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	n := len(sentences)
	if n > 2 {
		n = 2
	}
	var parts []string
	for _, s := range sentences[:n] {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". "), nil
}

// Classify picks the label sharing the most words with the text; the first
// label wins ties.
func (e *LocalEngine) Classify(ctx context.Context, text string, labels []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(labels) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "classify requires at least one label")
	}
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,!?;:'\"")] = true
	}
	best, bestScore := labels[0], -1
	for _, label := range labels {
		score := 0
		for _, w := range strings.Fields(strings.ToLower(label)) {
			if words[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, nil
}

// Complete returns a canned completion incorporating the prompt.
func (e *LocalEngine) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "empty prompt")
	}
	return fmt.Sprintf("Thanks for reaching out about %q. Our team will follow up shortly.", prompt), nil
}

// Forecast uses Holt's linear trend method (alpha 0.5, beta 0.3).
func (e *LocalEngine) Forecast(ctx context.Context, series []float64, horizon int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "forecast requires at least two observations")
	}
	if horizon <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "forecast horizon must be positive")
	}

	const alpha, beta = 0.5, 0.3
	level := series[0]
	trend := series[1] - series[0]
	for _, y := range series[1:] {
		prevLevel := level
		level = alpha*y + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}

	out := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		out[h-1] = level + float64(h)*trend
	}
	return out, nil
}

// DetectAnomalies flags points whose z-score against the rest of the series
// exceeds 2.5.
func (e *LocalEngine) DetectAnomalies(ctx context.Context, series []float64) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flags := make([]bool, len(series))
	if len(series) < 3 {
		return flags, nil
	}

	mean, std := meanStd(series)
	if std == 0 {
		return flags, nil
	}
	for i, y := range series {
		if math.Abs((y-mean)/std) >= 2.5 {
			flags[i] = true
		}
	}
	return flags, nil
}

func meanStd(series []float64) (float64, float64) {
	sum := 0.0
	for _, y := range series {
		sum += y
	}
	mean := sum / float64(len(series))
	varSum := 0.0
	for _, y := range series {
		varSum += (y - mean) * (y - mean)
	}
	return mean, math.Sqrt(varSum / float64(len(series)))
}

// TopWords returns the most frequent non-trivial words in the corpus, used by
// the review themes report.
func TopWords(corpus []string, n int) []string {
	stop := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"was": true, "is": true, "it": true, "i": true, "we": true, "of": true,
		"to": true, "my": true, "our": true, "for": true, "with": true, "very": true,
	}
	counts := map[string]int{}
	for _, text := range corpus {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,!?;:'\"")
			if len(w) < 3 || stop[w] {
				continue
			}
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
