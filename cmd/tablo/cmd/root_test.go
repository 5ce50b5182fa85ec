package cmd

import (
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/config"
	"github.com/MeKo-Tech/tablo/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "tablo", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"image", "detect", "pdf", "fragments", "serve", "config", "models"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	out, err := execute(t, nil, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "fragments")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)

	out, err := execute(t, nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	_, err := execute(t, nil, "--no-such-flag")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"
	setupLogging(&cfg)
	assert.False(t, slogEnabledDebug())

	cfg.Verbose = true
	setupLogging(&cfg)
	assert.True(t, slogEnabledDebug())
}
