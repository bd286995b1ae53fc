package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/prospect-reports/internal/config"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd)
	cmd.Flags().String("owner", "", "")
	cmd.Flags().Int("concurrency", 0, "")
	cmd.Flags().Bool("fetch-site", false, "")
	cmd.Flags().Bool("use-browser", false, "")
	cmd.Flags().Int("site-pages", 0, "")
	return cmd
}

func TestApplyFlagOverrides_OnlyChangedFlags(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("owner", "user-7"))
	require.NoError(t, cmd.Flags().Set("concurrency", "0"))

	cfg := config.Default()
	cfg.APIKey = "from-env"
	applyFlagOverrides(cmd, &cfg)

	assert.Equal(t, "user-7", cfg.OwnerID)
	assert.Equal(t, 0, cfg.MaxConcurrency, "an explicit 0 removes the limit")
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.False(t, cfg.FetchSite)
}

func TestApplyFlagOverrides_UseBrowserEnablesFetch(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("use-browser", "true"))

	cfg := config.Default()
	applyFlagOverrides(cmd, &cfg)

	assert.True(t, cfg.UseBrowser)
	assert.True(t, cfg.FetchSite)
	assert.NoError(t, cfg.Validate())
}

func TestApplyFlagOverrides_SitePagesEnablesFetch(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("site-pages", "4"))

	cfg := config.Default()
	applyFlagOverrides(cmd, &cfg)

	assert.Equal(t, 4, cfg.SitePages)
	assert.True(t, cfg.FetchSite)
}

func TestApplyFlagOverrides_UndefinedFlagsIgnored(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	cfg := config.Default()
	applyFlagOverrides(cmd, &cfg)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv("REPORTS_MAX_CONCURRENCY", "3")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("concurrency", "5"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set("concurrency", "-1"))

	_, err := loadConfig(cmd)
	assert.Error(t, err)
}

func TestNewWriter_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	_, _, err := newWriter(t.Context(), &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestOpenStore_NoDatabase(t *testing.T) {
	cfg := config.Default()
	database, err := openStore(t.Context(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, database)

	_, err = requireStore(t.Context(), &cfg)
	assert.Error(t, err)
}

func TestNewEventForwarder_Disabled(t *testing.T) {
	cfg := config.Default()
	fwd, closeFn, err := newEventForwarder(t.Context(), &cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, fwd)
	closeFn()
}
