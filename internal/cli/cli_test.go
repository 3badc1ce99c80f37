package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/api"
	"github.com/nimbuslabs/nimbus/internal/config"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v1.2.3", formatVersion("v1.2.3"))
	assert.Equal(t, "", formatVersion(""))
}

func TestSyncArgs(t *testing.T) {
	env, prefix := syncArgs(nil)
	assert.Equal(t, "", env)
	assert.Equal(t, config.DefaultServicePrefix, prefix)

	env, prefix = syncArgs([]string{"live"})
	assert.Equal(t, "live", env)
	assert.Equal(t, config.DefaultServicePrefix, prefix)

	env, prefix = syncArgs([]string{"live", "ANALYTICS"})
	assert.Equal(t, "live", env)
	assert.Equal(t, "ANALYTICS", prefix)
}

func TestImportArgs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Services["ANALYTICS"] = config.Service{Type: "mysql"}

	prefix, path := importArgs(cfg, nil)
	assert.Equal(t, config.DefaultServicePrefix, prefix)
	assert.Equal(t, defaultImportDump, path)

	// A single argument naming a configured prefix selects it.
	prefix, path = importArgs(cfg, []string{"ANALYTICS"})
	assert.Equal(t, "ANALYTICS", prefix)
	assert.Equal(t, defaultImportDump, path)

	// Anything else is a dump path.
	prefix, path = importArgs(cfg, []string{"backup.sql"})
	assert.Equal(t, config.DefaultServicePrefix, prefix)
	assert.Equal(t, "backup.sql", path)

	prefix, path = importArgs(cfg, []string{"ANALYTICS", "backup.sql"})
	assert.Equal(t, "ANALYTICS", prefix)
	assert.Equal(t, "backup.sql", path)
}

func TestRenderVariableValue(t *testing.T) {
	v := "secret"
	assert.Equal(t, "secret", renderVariableValue(api.EnvironmentVariable{Name: "KEY", Value: &v}))
	assert.Equal(t, "<hidden>", renderVariableValue(api.EnvironmentVariable{Name: "KEY", IsSensitive: true}))
}

func TestCommandTree(t *testing.T) {
	expect := map[string][]string{
		"pull":   {"db", "media"},
		"push":   {"db", "media"},
		"import": {"db"},
		"export": {"db"},
		"app":    {"list", "deploy", "deployments", "env-vars"},
	}

	for parent, subs := range expect {
		cmd, _, err := rootCmd.Find([]string{parent})
		require.NoError(t, err, parent)
		for _, sub := range subs {
			_, _, err := rootCmd.Find([]string{parent, sub})
			assert.NoError(t, err, parent+" "+sub)
		}
		assert.Equal(t, parent, cmd.Name())
	}

	for _, name := range []string{"login", "doctor", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSyncCommandFlags(t *testing.T) {
	for _, cmd := range []string{"pull", "push"} {
		db, _, err := rootCmd.Find([]string{cmd, "db"})
		require.NoError(t, err)
		assert.NotNil(t, db.Flags().Lookup("keep-tempfile"))
		assert.NotNil(t, db.Flags().Lookup("noinput"))
	}

	pushDB, _, err := rootCmd.Find([]string{"push", "db"})
	require.NoError(t, err)
	assert.NotNil(t, pushDB.Flags().Lookup("dumpfile"))
}
