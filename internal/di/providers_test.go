package di

import (
	"testing"

	"StockSim/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.ClickHouse.Enabled = false
	cfg.History.Path = ":memory:"
	cfg.Log.Format = "json"
	cfg.Log.Level = "error"
	return cfg
}

func TestInitializeCLI_Offline(t *testing.T) {
	cli, err := InitializeCLI(offlineConfig())
	require.NoError(t, err)
	defer cli.Close()

	assert.NotNil(t, cli.Simulation)
	assert.Nil(t, cli.Seed, "seeding needs ClickHouse")
}

func TestInitializeApp_Offline(t *testing.T) {
	cfg := offlineConfig()
	cfg.Server.Port = 18089
	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideLimiter_DisabledIsUntypedNil(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.RateLimit.Enabled = false
	assert.Nil(t, ProvideLimiter(cfg))

	cfg.Simulation.RateLimit.Enabled = true
	assert.NotNil(t, ProvideLimiter(cfg))
}

func TestProvideScheduler(t *testing.T) {
	cfg := offlineConfig()
	cfg.History.Enabled = false
	s, err := ProvideScheduler(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.Simulation.Schedules = []config.Schedule{{
		Name:    "spx",
		Cron:    "0 0 22 * * 1-5",
		Request: map[string]any{"source": "yahoo", "symbol": "SPX"},
	}}
	s, err = ProvideScheduler(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Len())

	cfg.Simulation.Schedules[0].Cron = "whenever"
	_, err = ProvideScheduler(cfg, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestProvideJobQueue_Disabled(t *testing.T) {
	cfg := offlineConfig()
	q, err := ProvideJobQueue(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, q)

	cfg.Jobs.Enabled = true
	q, err = ProvideJobQueue(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, q, "no redis client")
}

func TestProvideCache_MemoryWithoutRedis(t *testing.T) {
	c := ProvideCache(offlineConfig(), nil)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())
}
