package cortex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *LocalEngine {
	t.Helper()
	e := NewLocalEngine()
	t.Cleanup(e.Stop)
	return e
}

func TestSentiment(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	pos, err := e.Sentiment(ctx, "The pizza was delicious and the crust perfect!")
	require.NoError(t, err)
	assert.Greater(t, pos, 0.5)

	neg, err := e.Sentiment(ctx, "Cold, soggy and the delivery was late. Terrible.")
	require.NoError(t, err)
	assert.Less(t, neg, -0.5)

	neutral, err := e.Sentiment(ctx, "I ordered a large pepperoni.")
	require.NoError(t, err)
	assert.Equal(t, 0.0, neutral)

	// Mixed text lands between the extremes.
	mixed, err := e.Sentiment(ctx, "Great toppings but the crust was soggy.")
	require.NoError(t, err)
	assert.Equal(t, 0.0, mixed)
}

func TestSentimentCached(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.Sentiment(ctx, "fresh and tasty")
	require.NoError(t, err)
	second, err := e.Sentiment(ctx, "fresh and tasty")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotNil(t, e.cache.Get("fresh and tasty"))
}

func TestSummarize(t *testing.T) {
	e := newEngine(t)
	got, err := e.Summarize(context.Background(),
		"Best pizza in town. The staff was friendly. We will come back next week.")
	require.NoError(t, err)
	assert.Equal(t, "Best pizza in town. The staff was friendly", got)
}

func TestClassify(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	got, err := e.Classify(ctx, "the delivery driver was late again",
		[]string{"food quality", "delivery service", "pricing"})
	require.NoError(t, err)
	assert.Equal(t, "delivery service", got)

	_, err = e.Classify(ctx, "anything", nil)
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	e := newEngine(t)
	got, err := e.Complete(context.Background(), "refund for order 42")
	require.NoError(t, err)
	assert.Contains(t, got, "refund for order 42")

	_, err = e.Complete(context.Background(), "  ")
	assert.Error(t, err)
}

func TestForecastFollowsTrend(t *testing.T) {
	e := newEngine(t)
	series := []float64{100, 110, 120, 130, 140}

	got, err := e.Forecast(context.Background(), series, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// A clean linear trend keeps rising.
	assert.Greater(t, got[0], 140.0)
	assert.Greater(t, got[1], got[0])
	assert.Greater(t, got[2], got[1])
}

func TestForecastValidation(t *testing.T) {
	e := newEngine(t)
	_, err := e.Forecast(context.Background(), []float64{1}, 2)
	assert.Error(t, err)
	_, err = e.Forecast(context.Background(), []float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestDetectAnomalies(t *testing.T) {
	e := newEngine(t)
	series := []float64{100, 102, 98, 101, 99, 100, 500, 103, 97}

	flags, err := e.DetectAnomalies(context.Background(), series)
	require.NoError(t, err)
	require.Len(t, flags, len(series))
	assert.True(t, flags[6])
	for i, f := range flags {
		if i != 6 {
			assert.False(t, f, "index %d", i)
		}
	}
}

func TestDetectAnomaliesFlatSeries(t *testing.T) {
	e := newEngine(t)
	flags, err := e.DetectAnomalies(context.Background(), []float64{5, 5, 5, 5})
	require.NoError(t, err)
	for _, f := range flags {
		assert.False(t, f)
	}
}

func TestTopWords(t *testing.T) {
	corpus := []string{
		"The crust was soggy and cold",
		"Soggy crust again, very disappointing",
		"Delicious pizza, great crust",
	}
	words := TopWords(corpus, 2)
	require.Len(t, words, 2)
	assert.Equal(t, "crust", words[0])
	assert.Equal(t, "soggy", words[1])
}
