package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 1000, c.Simulation.MaxDays)
	assert.Equal(t, 100, c.Simulation.MaxRuns)
	assert.Equal(t, "all", c.Simulation.DefaultScope)
	assert.Equal(t, 10*time.Minute, c.Cache.CatalogTTL)
	assert.Equal(t, "STOCK_PRICE_SIMULATIONS", c.Results.Table)
}

func TestParse_OverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
server:
  port: 9090
simulation:
  max_days: 250
  timeout: 5s
  schedules:
    - name: nightly
      cron: "0 0 2 * * *"
      request:
        source: yahoo
        symbol: AAPL
kafka:
  enabled: true
  brokers: [kafka:9092]
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 250, c.Simulation.MaxDays)
	assert.Equal(t, 100, c.Simulation.MaxRuns)
	assert.Equal(t, 5*time.Second, c.Simulation.Timeout)
	require.Len(t, c.Simulation.Schedules, 1)
	assert.Equal(t, "AAPL", c.Simulation.Schedules[0].Request["symbol"])
	assert.Equal(t, []string{"kafka:9092"}, c.Kafka.Brokers)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"scope":      "simulation:\n  default_scope: median\n",
		"kafka":      "kafka:\n  enabled: true\n",
		"consumer":   "kafka:\n  consumer:\n    enabled: true\n",
		"log format": "log:\n  format: xml\n",
		"schedule":   "simulation:\n  schedules:\n    - name: x\n",
		"bad yaml":   "server: [",
		"jobs":       "jobs:\n  enabled: true\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestParse_ExplicitFalseKept(t *testing.T) {
	c, err := Parse([]byte("clickhouse:\n  enabled: false\nyahoo:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.ClickHouse.Enabled)
	assert.False(t, c.Yahoo.Enabled)
	assert.True(t, c.History.Enabled)
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("PORT", "7070")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 7070, c.Server.Port)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}

func TestLoad_SampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, c.History.Retention)
	assert.Equal(t, "0 30 3 * * *", c.History.PruneCron)
	require.Len(t, c.Simulation.Schedules, 1)
	assert.Equal(t, "spx-nightly", c.Simulation.Schedules[0].Name)
	assert.False(t, c.Kafka.Enabled)
	assert.False(t, c.Jobs.Enabled)
	assert.Equal(t, "stocksim:jobs", c.Jobs.KeyPrefix)
}
