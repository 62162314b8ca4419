package config

import (
	"time"

	"golang.org/x/time/rate"
)

func (c *Config) GetBotToken() string {
	return c.v.GetString("bot_token")
}

func (c *Config) GetDatabasePath() string {
	return c.v.GetString("database_path")
}

func (c *Config) GetLogDir() string {
	return c.v.GetString("log_dir")
}

// GetString returns the string value for a given config key
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// Music playback
// -----

func (c *Config) GetFFmpegPath() string {
	return c.v.GetString("music_ffmpeg_path")
}

func (c *Config) GetYtdlpCookiesFile() string {
	return c.v.GetString("music_ytdlp_cookies_file")
}

func (c *Config) GetYtdlpProxy() string {
	return c.v.GetString("music_ytdlp_proxy")
}

// GetLogChannelID returns the channel that receives playback failure reports, if any
func (c *Config) GetLogChannelID() string {
	return c.v.GetString("log_channel_id")
}

// GetDefaultVolume returns the starting volume for guilds that never set one,
// clamped to [0, 2].
func (c *Config) GetDefaultVolume() float64 {
	v := c.v.GetFloat64("music_default_volume")
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}

// GetResolverWorkers returns how many lookups may run at once (default 4)
func (c *Config) GetResolverWorkers() int {
	n := c.v.GetInt("music_resolver_workers")
	if n <= 0 {
		return 4
	}
	return n
}

// GetHistoryRetention returns how long play history rows are kept (default 30 days)
func (c *Config) GetHistoryRetention() time.Duration {
	d := c.v.GetDuration("music_history_retention")
	if d <= 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// GetPanelEditRate returns the per-player limit on control panel edits.
// Zero or negative disables the limit.
func (c *Config) GetPanelEditRate() rate.Limit {
	r := c.v.GetFloat64("music_panel_edits_per_second")
	if r <= 0 {
		return rate.Inf
	}
	return rate.Limit(r)
}
