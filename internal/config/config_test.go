package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewConfig(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("BOTIPY_LOG_DIR", logDir)

	// Test with missing token
	t.Setenv("BOTIPY_BOT_TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "")
	_, err := NewConfig()
	require.Error(t, err)

	// Fallback variable name
	t.Setenv("DISCORD_TOKEN", "fallback_token")
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, "fallback_token", cfg.GetBotToken())

	t.Setenv("BOTIPY_BOT_TOKEN", "test_token")
	t.Setenv("BOTIPY_YTDLP_PROXY", "socks5://127.0.0.1:1080")
	cfg, err = NewConfig()
	require.NoError(t, err)
	require.Equal(t, "test_token", cfg.GetBotToken())
	require.Equal(t, "socks5://127.0.0.1:1080", cfg.GetYtdlpProxy())
	require.Equal(t, logDir, cfg.GetLogDir())
}

func TestMusicDefaults(t *testing.T) {
	cfg := NewMockConfig(map[string]interface{}{"bot_token": "test_token"})

	assert.Equal(t, "ffmpeg", cfg.GetFFmpegPath())
	assert.Equal(t, 0.5, cfg.GetDefaultVolume())
	assert.Equal(t, 4, cfg.GetResolverWorkers())
	assert.Equal(t, 720*time.Hour, cfg.GetHistoryRetention())
	assert.Equal(t, rate.Limit(1), cfg.GetPanelEditRate())
}

func TestMusicOverrides(t *testing.T) {
	cfg := NewMockConfig(map[string]interface{}{
		"music_default_volume":         5.0,
		"music_resolver_workers":       -1,
		"music_panel_edits_per_second": 0,
		"music_history_retention":      "48h",
	})

	assert.Equal(t, 2.0, cfg.GetDefaultVolume(), "volume is clamped")
	assert.Equal(t, 4, cfg.GetResolverWorkers())
	assert.Equal(t, rate.Inf, cfg.GetPanelEditRate())
	assert.Equal(t, 48*time.Hour, cfg.GetHistoryRetention())
}

func TestPruneOldLogFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "botipy_old.log")
	fresh := filepath.Join(dir, "botipy_new.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	require.NoError(t, pruneOldLogFiles(dir, logRetention))

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other, "only log files are pruned")
}

func TestRotateAndPruneLogs(t *testing.T) {
	dir := t.TempDir()
	cfg := NewMockConfig(map[string]interface{}{"log_dir": dir})

	require.NoError(t, cfg.RotateAndPruneLogs())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	cfg.Logger.Info("hello")
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
