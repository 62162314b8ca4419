package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// logRetention is how long rotated log files are kept.
const logRetention = 7 * 24 * time.Hour

type Config struct {
	v      *viper.Viper
	Logger *log.Logger

	mu      sync.Mutex
	logFile *os.File
}

// NewConfig loads the configuration from various sources using viper
func NewConfig() (*Config, error) {
	// A missing .env is normal in production; env vars come from the host.
	_ = godotenv.Load()

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Try to read config file (don't error if it doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		// Config file can't be read, continue with env vars and defaults
		l := log.New(os.Stderr)
		l.Warnf("error reading config file: %v\nContinuing with envs...", err)
	}

	// Bind environment variables
	err := bindEnvs(v)
	if err != nil {
		// If env binding also fails, we'll basically have no config
		// and need to exit at this point.
		return nil, fmt.Errorf("error binding environment variables: %w", err)
	}

	logFile, err := newLogFile(v.GetString("log_dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := pruneOldLogFiles(v.GetString("log_dir"), logRetention); err != nil {
		return nil, fmt.Errorf("failed to prune old log files: %w", err)
	}

	newCfg := &Config{
		v:       v,
		Logger:  log.NewWithOptions(io.MultiWriter(os.Stderr, logFile), log.Options{ReportTimestamp: true}),
		logFile: logFile,
	}
	newCfg.applyLogLevel()

	// Validate required fields
	if err := validateConfig(newCfg); err != nil {
		return nil, err
	}

	return newCfg, nil
}

// newLogFile generates a new log file
func newLogFile(dir string) (*os.File, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is not set")
	}

	// Create dir if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create a new log file with timestamp
	name := fmt.Sprintf("botipy_%s.log", time.Now().Format("20060102_150405"))
	return os.Create(filepath.Join(dir, name))
}

// RotateAndPruneLogs starts a fresh log file, points the logger at it and
// removes files past the retention window.
func (c *Config) RotateAndPruneLogs() error {
	dir := c.GetLogDir()
	next, err := newLogFile(dir)
	if err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	c.mu.Lock()
	prev := c.logFile
	c.logFile = next
	c.Logger.SetOutput(io.MultiWriter(os.Stderr, next))
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return pruneOldLogFiles(dir, logRetention)
}

// pruneOldLogFiles removes log files in dir older than maxAge
func pruneOldLogFiles(dir string, maxAge time.Duration) error {
	logFiles, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, file := range logFiles {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
				return fmt.Errorf("failed to remove old log file %s: %w", file.Name(), err)
			}
		}
	}

	return nil
}

// NewMockConfig creates a mock configuration for testing
func NewMockConfig(kv map[string]interface{}) *Config {
	v := viper.New()
	setDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	return &Config{
		v:      v,
		Logger: log.New(os.Stderr),
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_path", "./botipy.db")
	v.SetDefault("music_ffmpeg_path", "ffmpeg")
	v.SetDefault("music_default_volume", 0.5)
	v.SetDefault("music_resolver_workers", 4)
	v.SetDefault("music_history_retention", "720h")
	v.SetDefault("music_panel_edits_per_second", 1.0)
}

// bindEnvs binds environment variables to viper keys
func bindEnvs(v *viper.Viper) error {
	bindings := []struct {
		key  string
		envs []string
	}{
		{"bot_token", []string{"BOTIPY_BOT_TOKEN", "DISCORD_TOKEN"}},
		{"log_dir", []string{"BOTIPY_LOG_DIR"}},
		{"log_level", []string{"BOTIPY_LOG_LEVEL"}},
		{"database_path", []string{"BOTIPY_DATABASE_PATH"}},
		{"log_channel_id", []string{"BOTIPY_LOG_CHANNEL_ID"}},
		{"music_ffmpeg_path", []string{"BOTIPY_FFMPEG_PATH"}},
		{"music_ytdlp_cookies_file", []string{"BOTIPY_YTDLP_COOKIES_FILE"}},
		{"music_ytdlp_proxy", []string{"BOTIPY_YTDLP_PROXY"}},
		{"music_default_volume", []string{"BOTIPY_DEFAULT_VOLUME"}},
	}

	for _, binding := range bindings {
		args := append([]string{binding.key}, binding.envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("error binding %s environment variable: %w", binding.key, err)
		}
	}
	return nil
}

func (c *Config) applyLogLevel() {
	lvl, err := log.ParseLevel(c.v.GetString("log_level"))
	if err != nil {
		c.Logger.Warnf("unknown log_level %q, using info", c.v.GetString("log_level"))
		lvl = log.InfoLevel
	}
	c.Logger.SetLevel(lvl)
}

// validateConfig validates that all required configuration fields are present
func validateConfig(cfg *Config) error {
	if cfg.v.GetString("bot_token") == "" {
		return fmt.Errorf("bot_token is required (set BOTIPY_BOT_TOKEN or DISCORD_TOKEN environment variable)")
	}

	if cfg.GetYtdlpCookiesFile() != "" {
		if _, err := os.Stat(cfg.GetYtdlpCookiesFile()); err != nil {
			cfg.Logger.Warnf("music_ytdlp_cookies_file %s is not readable: %v", cfg.GetYtdlpCookiesFile(), err)
		}
	}

	return nil
}
