package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggingCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().StringP("config", "c", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "padbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"defaults", nil, "info"},
		{"file", []string{"--config", path}, "warn"},
		{"verbose beats file", []string{"--config", path, "--verbose"}, "debug"},
		{"log-level beats verbose", []string{"--config", path, "--verbose", "--log-level", "error"}, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(newLoggingCmd(t, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LogLevel)
		})
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	_, err := loadConfig(newLoggingCmd(t, "--log-level", "trace"))
	assert.ErrorContains(t, err, "invalid log level: trace")
}

func TestConfigureLogger_WritesToCommandStderr(t *testing.T) {
	cmd := newLoggingCmd(t, "--verbose")
	var buf safeBuffer
	cmd.SetErr(&buf)

	_, logger, err := configureLogger(cmd)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.Debug("hello")
	assert.Contains(t, buf.String(), "hello", "log output MUST go to the command's stderr")
}
