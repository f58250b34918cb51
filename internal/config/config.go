package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Player   PlayerConfig   `mapstructure:"player"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds media server configuration. The engine assumes an
// already-authenticated endpoint; obtaining the token is out of scope.
type ServerConfig struct {
	URL      string `mapstructure:"url"`       // Server URL
	Token    string `mapstructure:"token"`     // API access token
	UserID   string `mapstructure:"user_id"`   // Server-side user id
	DeviceID string `mapstructure:"device_id"` // Stable per-install device id
}

// QualityPreset names a bitrate ceiling for transcoded playback
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"    // 1.5 Mbps
	QualityMedium QualityPreset = "medium" // 4 Mbps
	QualityHigh   QualityPreset = "high"   // 8 Mbps
	QualityUltra  QualityPreset = "ultra"  // 20 Mbps
)

// Bitrate returns the preset's bitrate ceiling in bps, or 0 for unknown
// presets so the resolver falls through to its default cap.
func (q QualityPreset) Bitrate() int {
	switch q {
	case QualityLow:
		return 1_500_000
	case QualityMedium:
		return 4_000_000
	case QualityHigh:
		return 8_000_000
	case QualityUltra:
		return 20_000_000
	default:
		return 0
	}
}

// PlaybackConfig holds playback preferences and capability overrides
type PlaybackConfig struct {
	Quality          QualityPreset `mapstructure:"quality"`           // Named bitrate preset
	MaxBitrate       int           `mapstructure:"max_bitrate"`       // Explicit bps override, wins over preset
	ForceTranscode   bool          `mapstructure:"force_transcode"`   // Skip direct play/stream entirely
	AudioLanguage    string        `mapstructure:"audio_language"`    // Preferred audio language
	SubtitleLanguage string        `mapstructure:"subtitle_language"` // Preferred subtitle language

	// Capability overrides for the device profiler
	ForceHDR         bool `mapstructure:"force_hdr"`
	ForceDolbyVision bool `mapstructure:"force_dolby_vision"`
	MaxAudioChannels int  `mapstructure:"max_audio_channels"`
	DisplayWidth     int  `mapstructure:"display_width"`
}

// PlayerConfig holds external playback engine configuration
type PlayerConfig struct {
	Command string   `mapstructure:"command"` // Engine binary, empty for mpv
	Args    []string `mapstructure:"args"`    // Extra engine arguments
}

// CacheConfig holds local cache configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{},
		Playback: PlaybackConfig{
			Quality:          QualityHigh,
			MaxAudioChannels: 2,
			DisplayWidth:     1920,
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "flick", "flick.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "flick", "flick.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "flick")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "flick")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "flick", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "flick", "cache")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("FLICK")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Every install reports under a stable device id; mint one on first run
	if cfg.Server.DeviceID == "" {
		cfg.Server.DeviceID = uuid.NewString()
		if err := SaveConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to persist device id: %w", err)
		}
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.token", cfg.Server.Token)
	viper.Set("server.user_id", cfg.Server.UserID)
	viper.Set("server.device_id", cfg.Server.DeviceID)

	viper.Set("playback.quality", string(cfg.Playback.Quality))
	viper.Set("playback.max_bitrate", cfg.Playback.MaxBitrate)
	viper.Set("playback.force_transcode", cfg.Playback.ForceTranscode)
	viper.Set("playback.audio_language", cfg.Playback.AudioLanguage)
	viper.Set("playback.subtitle_language", cfg.Playback.SubtitleLanguage)
	viper.Set("playback.force_hdr", cfg.Playback.ForceHDR)
	viper.Set("playback.force_dolby_vision", cfg.Playback.ForceDolbyVision)
	viper.Set("playback.max_audio_channels", cfg.Playback.MaxAudioChannels)
	viper.Set("playback.display_width", cfg.Playback.DisplayWidth)

	viper.Set("player.command", cfg.Player.Command)
	viper.Set("player.args", cfg.Player.Args)

	viper.Set("cache.dir", cfg.Cache.Dir)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if the server URL and token are set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != "" && c.Server.Token != ""
}

// ClearCache removes all cached data
func ClearCache(cfg *Config) error {
	if err := os.RemoveAll(cfg.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
