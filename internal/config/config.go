package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MENJAVA_SERVER_ADDR.
const EnvPrefix = "MENJAVA"

// Config holds all configuration for the server.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Log      Log      `mapstructure:"log"`
	Trade    Trade    `mapstructure:"trade"`
	Room     Room     `mapstructure:"room"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Admin    Admin    `mapstructure:"admin"`
}

// Server holds the HTTP listener configuration.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Database holds the SQLite configuration.
type Database struct {
	Path string `mapstructure:"path"`
}

// Log holds the logger configuration.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Trade holds the negotiation and settlement rules.
type Trade struct {
	MaxValueDiffPct float64       `mapstructure:"max_value_diff_pct"`
	RequestTTL      time.Duration `mapstructure:"request_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// Room holds the WebSocket room configuration.
type Room struct {
	ChatRate  float64 `mapstructure:"chat_rate"`
	ChatBurst int     `mapstructure:"chat_burst"`
}

// Catalog holds the card value cache configuration.
type Catalog struct {
	CacheSize int `mapstructure:"cache_size"`
}

// Admin holds the first-run bootstrap account.
type Admin struct {
	Username string `mapstructure:"username"`
}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.path", "menjava.sqlite3")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", FormatText)
	v.SetDefault("log.file", "")
	v.SetDefault("trade.max_value_diff_pct", 10)
	v.SetDefault("trade.request_ttl", "48h")
	v.SetDefault("trade.sweep_interval", "10m")
	v.SetDefault("room.chat_rate", 2) // messages per second
	v.SetDefault("room.chat_burst", 5)
	v.SetDefault("catalog.cache_size", 1024)
	v.SetDefault("admin.username", "Admin")
}

// Load reads configuration from defaults, an optional file and the
// environment. With an empty path, menjava.yml is looked up in the working
// directory and skipped if missing. An explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("menjava")
		v.SetConfigType("yml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path required")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	if c.Trade.MaxValueDiffPct <= 0 || c.Trade.MaxValueDiffPct >= 100 {
		return fmt.Errorf("trade.max_value_diff_pct must be between 0 and 100")
	}
	if c.Trade.RequestTTL <= 0 {
		return fmt.Errorf("trade.request_ttl must be positive")
	}
	if c.Trade.SweepInterval <= 0 {
		return fmt.Errorf("trade.sweep_interval must be positive")
	}
	return nil
}

// SlogLevel parses the configured log level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", l.Level)
	}
	return level, nil
}
