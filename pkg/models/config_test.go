package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := &Config{
		Data: DataConfig{
			Dir:       "/tmp/slicehouse",
			Seed:      42,
			Customers: 200,
			Days:      90,
			OrdersDay: 150,
		},
		Pipeline: PipelineConfig{
			MaxParallel:          4,
			MaxRetries:           2,
			IncrementalThreshold: 0.2,
			DefaultLag:           "5m",
			LagOverrides:         map[string]string{"daily_sales_summary": "1h"},
		},
		Snowflake: Snowflake{
			Account:   "xy12345.us-east-1",
			Username:  "loader",
			Warehouse: "ANALYTICS_WH",
			Database:  "PIZZERIA",
			Schema:    "GOLD",
		},
	}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))

	assert.Equal(t, cfg.Data, loaded.Data)
	assert.Equal(t, cfg.Pipeline, loaded.Pipeline)
	assert.Equal(t, cfg.Snowflake, loaded.Snowflake)
}

func TestTierForPoints(t *testing.T) {
	cases := []struct {
		points int
		want   LoyaltyTier
	}{
		{0, TierMember},
		{99, TierMember},
		{100, TierBronze},
		{499, TierBronze},
		{500, TierSilver},
		{999, TierSilver},
		{1000, TierGold},
		{5000, TierGold},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierForPoints(c.points), "points=%d", c.points)
	}
}
