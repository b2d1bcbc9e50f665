package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slicehouse/internal/store"
	apperrors "slicehouse/pkg/errors"
)

func noopBuild(ctx context.Context, r Reader) ([]store.Row, error) {
	return nil, nil
}

func def(name string, lag time.Duration, inputs ...string) *Definition {
	return &Definition{
		Name:   name,
		Layer:  LayerSilver,
		Inputs: inputs,
		Lag:    lag,
		Mode:   ModeAuto,
		Key:    "id",
		Build:  noopBuild,
	}
}

func TestGraphTopologicalOrder(t *testing.T) {
	g := NewGraph([]string{"orders", "reviews"})
	require.NoError(t, g.Add(def("gold_summary", time.Hour, "silver_orders", "silver_reviews")))
	require.NoError(t, g.Add(def("silver_orders", 5*time.Minute, "orders")))
	require.NoError(t, g.Add(def("silver_reviews", 10*time.Minute, "reviews")))
	require.NoError(t, g.Validate())

	defs := g.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "silver_orders", defs[0].Name)
	assert.Equal(t, "silver_reviews", defs[1].Name)
	assert.Equal(t, "gold_summary", defs[2].Name)
}

func TestGraphRejectsUnknownInput(t *testing.T) {
	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(def("silver", time.Minute, "no_such_table")))

	err := g.Validate()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePipelineUnknownInput, apperrors.GetErrorCode(err))
}

func TestGraphRejectsCycle(t *testing.T) {
	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(def("a", time.Minute, "orders", "b")))
	require.NoError(t, g.Add(def("b", time.Minute, "a")))

	err := g.Validate()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePipelineCycle, apperrors.GetErrorCode(err))
}

func TestGraphRejectsDuplicates(t *testing.T) {
	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(def("a", time.Minute, "orders")))

	err := g.Add(def("a", time.Minute, "orders"))
	assert.Equal(t, apperrors.ErrCodePipelineDuplicate, apperrors.GetErrorCode(err))

	err = g.Add(def("orders", time.Minute, "orders"))
	assert.Equal(t, apperrors.ErrCodePipelineDuplicate, apperrors.GetErrorCode(err))
}

func TestEffectiveLagTightenedByDownstream(t *testing.T) {
	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(def("silver", 24*time.Hour, "orders")))
	require.NoError(t, g.Add(def("gold", time.Hour, "silver")))
	require.NoError(t, g.Validate())

	// The gold table's 1h target constrains the silver input.
	assert.Equal(t, time.Hour, g.EffectiveLag("silver"))
	assert.Equal(t, time.Hour, g.EffectiveLag("gold"))
	assert.Equal(t, time.Hour, g.MinLag())
}

func TestDependents(t *testing.T) {
	g := NewGraph([]string{"orders"})
	require.NoError(t, g.Add(def("silver", time.Minute, "orders")))
	require.NoError(t, g.Add(def("gold_a", time.Hour, "silver")))
	require.NoError(t, g.Add(def("gold_b", time.Hour, "silver")))
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"gold_a", "gold_b"}, g.Dependents("silver"))
	assert.True(t, g.IsBase("orders"))
	assert.False(t, g.IsBase("silver"))
}
