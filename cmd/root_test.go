package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"slicehouse/internal/config"
	"slicehouse/internal/secrets"
)

// testConfig points the CLI at a throwaway config and data directory.
func testConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "config.yaml"))

	cfg := config.Defaults()
	cfg.Data.Dir = filepath.Join(dir, "data")
	cfg.Data.Customers = 10
	cfg.Data.Days = 3
	cfg.Data.OrdersDay = 5
	require.NoError(t, config.Save(cfg))
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"setup", "seed", "refresh", "status", "tasks",
		"analytics", "validate", "semantic", "export", "sync", "version",
	}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing command %s", name)
	}
}

func TestSeedRefreshStatusValidate(t *testing.T) {
	testConfig(t)

	require.NoError(t, execute(t, "seed", "--seed", "42"))
	// Seeding over existing data needs --fresh.
	require.Error(t, execute(t, "seed", "--seed", "42"))
	require.NoError(t, execute(t, "seed", "--fresh", "--seed", "7"))

	require.NoError(t, execute(t, "refresh"))
	require.NoError(t, execute(t, "status"))
	require.NoError(t, execute(t, "validate"))
	require.NoError(t, execute(t, "tasks", "list"))
	require.NoError(t, execute(t, "tasks", "run", "daily_summary"))
	require.NoError(t, execute(t, "semantic", "validate"))
	require.NoError(t, execute(t, "analytics", "sales", "--horizon", "3"))
	require.NoError(t, execute(t, "analytics", "menu", "--top", "5"))
	require.NoError(t, execute(t, "analytics", "locations"))
	require.NoError(t, execute(t, "analytics", "customers"))
	require.NoError(t, execute(t, "version"))
}

func TestFlagsRegistered(t *testing.T) {
	flags := map[string]map[string]bool{}
	for _, c := range rootCmd.Commands() {
		flags[c.Name()] = map[string]bool{}
		c.Flags().VisitAll(func(f *pflag.Flag) {
			flags[c.Name()][f.Name] = true
		})
	}
	assert.True(t, flags["seed"]["fresh"])
	assert.True(t, flags["seed"]["seed"])
	assert.True(t, flags["refresh"]["watch"])
	assert.True(t, flags["refresh"]["interval"])
	assert.True(t, flags["analytics"] != nil)
}

func TestSnowflakePasswordResolution(t *testing.T) {
	testConfig(t)
	keyring.MockInit()
	t.Setenv(config.EnvEncryptionKey, "test-passphrase")

	a, err := newApp()
	require.NoError(t, err)
	defer a.Close()

	// No keyring entry and no config value.
	_, err = snowflakePassword(a)
	require.Error(t, err)

	// Encrypted config value.
	enc, err := config.EncryptPassword("from-config")
	require.NoError(t, err)
	a.cfg.Snowflake.Password = enc
	pw, err := snowflakePassword(a)
	require.NoError(t, err)
	assert.Equal(t, "from-config", pw)

	// Keyring wins over the config value.
	require.NoError(t, secrets.Set(secrets.AccountSnowflake, "from-keyring"))
	pw, err = snowflakePassword(a)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", pw)
}

func TestExportWithoutConfigFails(t *testing.T) {
	testConfig(t)
	keyring.MockInit()
	assert.Error(t, execute(t, "export"))
}

func TestSyncWithoutRepoFails(t *testing.T) {
	testConfig(t)
	assert.Error(t, execute(t, "sync"))
}
