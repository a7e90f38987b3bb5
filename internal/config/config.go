package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the application version, injected at build time via ldflags.
var Version = "0.0.1-dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Indexers  IndexersConfig  `mapstructure:"indexers"`
	Search    SearchConfig    `mapstructure:"search"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Import    ImportConfig    `mapstructure:"import"`
	DVR       DVRConfig       `mapstructure:"dvr"`
	EPG       EPGConfig       `mapstructure:"epg"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// IndexersConfig holds indexer worker configuration.
type IndexersConfig struct {
	RSSIntervalMinutes int   `mapstructure:"rss_interval_minutes"`
	MaxResults         int   `mapstructure:"max_results"`
	RequestTimeoutSecs int   `mapstructure:"request_timeout_seconds"`
	CacheTTLDays       int   `mapstructure:"cache_ttl_days"`
	CacheSweepMinutes  int   `mapstructure:"cache_sweep_minutes"`
	DefaultCategories  []int `mapstructure:"default_categories"`
}

// SearchConfig holds search planner configuration.
type SearchConfig struct {
	IntervalMinutes        int `mapstructure:"interval_minutes"`
	BroadcastWindowMinutes int `mapstructure:"broadcast_window_minutes"`
}

// DownloadsConfig holds download monitor configuration.
type DownloadsConfig struct {
	MonitorIntervalSeconds int  `mapstructure:"monitor_interval_seconds"`
	StallThresholdMinutes  int  `mapstructure:"stall_threshold_minutes"`
	RemoveCompleted        bool `mapstructure:"remove_completed"`
	RemoveFailed           bool `mapstructure:"remove_failed"`
	RedownloadFailed       bool `mapstructure:"redownload_failed"`
}

// ImportConfig holds importer configuration.
type ImportConfig struct {
	UseHardlinks bool `mapstructure:"use_hardlinks"`
}

// DVRConfig holds DVR scheduler configuration.
type DVRConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	WindowDays      int    `mapstructure:"window_days"`
	PrePadMinutes   int    `mapstructure:"pre_pad_minutes"`
	PostPadMinutes  int    `mapstructure:"post_pad_minutes"`
	OutputDir       string `mapstructure:"output_dir"`
	EncodingProfile string `mapstructure:"encoding_profile"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	FFprobePath     string `mapstructure:"ffprobe_path"`
	StableSeconds   int    `mapstructure:"stable_seconds"`
}

// EPGConfig holds EPG ingestion configuration.
type EPGConfig struct {
	URL          string `mapstructure:"url"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// HealthConfig holds periodic health check configuration.
type HealthConfig struct {
	CheckIntervalMinutes int `mapstructure:"check_interval_minutes"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// Load .env if present so SIDELINE_* vars set there are visible.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sideline")
		v.AddConfigPath("/etc/sideline")
	}

	v.SetEnvPrefix("SIDELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8484)
	v.SetDefault("server.api_key", "")

	v.SetDefault("database.path", "./data/sideline.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("indexers.rss_interval_minutes", 15)
	v.SetDefault("indexers.max_results", 1000)
	v.SetDefault("indexers.request_timeout_seconds", 100)
	v.SetDefault("indexers.cache_ttl_days", 7)
	v.SetDefault("indexers.cache_sweep_minutes", 60)
	v.SetDefault("indexers.default_categories", []int{5060, 5070})

	v.SetDefault("search.interval_minutes", 10)
	v.SetDefault("search.broadcast_window_minutes", 30)

	v.SetDefault("downloads.monitor_interval_seconds", 30)
	v.SetDefault("downloads.stall_threshold_minutes", 10)
	v.SetDefault("downloads.remove_completed", true)
	v.SetDefault("downloads.remove_failed", true)
	v.SetDefault("downloads.redownload_failed", true)

	v.SetDefault("import.use_hardlinks", true)

	v.SetDefault("dvr.enabled", false)
	v.SetDefault("dvr.interval_minutes", 15)
	v.SetDefault("dvr.window_days", 14)
	v.SetDefault("dvr.pre_pad_minutes", 5)
	v.SetDefault("dvr.post_pad_minutes", 30)
	v.SetDefault("dvr.output_dir", "./data/recordings")
	v.SetDefault("dvr.encoding_profile", "copy")
	v.SetDefault("dvr.ffmpeg_path", "ffmpeg")
	v.SetDefault("dvr.ffprobe_path", "ffprobe")
	v.SetDefault("dvr.stable_seconds", 30)

	v.SetDefault("epg.url", "")
	v.SetDefault("epg.refresh_hours", 6)

	v.SetDefault("health.check_interval_minutes", 15)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
