package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSurgeDir_HonorsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	got := GetSurgeDir()
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "surge"), got)
}

func TestGetLogsDir_UnderSurgeDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	got := GetLogsDir()
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "surge", "logs"), got)
}

func TestEnsureDirs_CreatesBothDirectories(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	require.NoError(t, EnsureDirs())

	_, err := os.Stat(GetSurgeDir())
	assert.NoError(t, err, "surge dir not created")
	_, err = os.Stat(GetLogsDir())
	assert.NoError(t, err, "logs dir not created")
}

func TestLoadSettings_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.Equal(t, DefaultSettings(), LoadSettings())
}

func TestSaveThenLoadSettings_RoundTrips(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	s := Settings{DefaultThreads: 8, DefaultOutputDir: "/tmp/out", MaxTaskRetries: 3, UserAgent: "test-agent"}
	require.NoError(t, SaveSettings(s))
	assert.Equal(t, s, LoadSettings())
}
