package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingEnvironmentVariables = errors.New("missing required environment variables")
	ErrUnknownStorageBackend       = errors.New("unknown storage backend")
)

// Storage backends selectable with storage.backend.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePebble   = "pebble"
	StoragePostgres = "postgres"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string    `mapstructure:"env"`      // current application environment (local, dev, production etc)
	TelegramAPIToken string    `mapstructure:"-"`        // Telegram API token loaded from environment
	Quran            Quran     `mapstructure:"quran"`    // verse data provider and audio addressing
	Storage          Storage   `mapstructure:"storage"`  // persistence of progress and notes
	DB               DB        `mapstructure:"database"` // database configuration section
	Player           Player    `mapstructure:"player"`   // local audio backend
	Reminders        Reminders `mapstructure:"reminders"`
	Sessions         Sessions  `mapstructure:"sessions"` // per-chat reader sessions of the bot
	LogFile          string    `mapstructure:"log_file"` // log destination of the terminal reader
}

// Quran contains the remote text source and the audio CDN parameters.
type Quran struct {
	APIBaseURL         string        `mapstructure:"api_base_url"`        // alquran.cloud REST endpoint
	TextEdition        string        `mapstructure:"text_edition"`        // edition with the original script
	TranslationEdition string        `mapstructure:"translation_edition"` // edition shown next to the original
	SearchEdition      string        `mapstructure:"search_edition"`      // edition keyword search runs against
	AudioBaseURL       string        `mapstructure:"audio_base_url"`      // recitation CDN
	AudioBitrate       int           `mapstructure:"audio_bitrate"`       // kbps segment of the CDN path
	Reciter            string        `mapstructure:"reciter"`             // audio edition identifier
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`       // upper bound of a single provider call
}

// Storage selects the persistence backend.
type Storage struct {
	Backend string `mapstructure:"backend"` // memory, file, pebble or postgres
	Path    string `mapstructure:"path"`    // state file or pebble directory
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// Player configures the ffplay audio backend.
type Player struct {
	Command      string `mapstructure:"command"`       // player binary
	ProbeCommand string `mapstructure:"probe_command"` // binary used to read the duration
}

// Reminders configures the daily reading reminders of the bot.
type Reminders struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron spec, evaluated in UTC
}

// Sessions bounds the per-chat sessions the bot keeps in memory.
type Sessions struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"` // unused sessions are released after this, 0 keeps them
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// RequireTelegram reports an error when the bot token is not configured.
func (c *Config) RequireTelegram() error {
	if c.TelegramAPIToken == "" {
		return fmt.Errorf("TELEGRAM_API_TOKEN: %w", ErrMissingEnvironmentVariables)
	}
	return nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// A missing .env is fine, the process environment is used as is.
	_ = godotenv.Load()

	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_file", "quran-reader.log")

	v.SetDefault("quran.api_base_url", "https://api.alquran.cloud/v1")
	v.SetDefault("quran.text_edition", "quran-uthmani")
	v.SetDefault("quran.translation_edition", "fr.hamidullah")
	v.SetDefault("quran.search_edition", "")
	v.SetDefault("quran.audio_base_url", "https://cdn.islamic.network/quran/audio")
	v.SetDefault("quran.audio_bitrate", 128)
	v.SetDefault("quran.reciter", "ar.alafasy")
	v.SetDefault("quran.fetch_timeout", "15s")

	v.SetDefault("storage.backend", StorageFile)
	v.SetDefault("storage.path", "data/state.json")

	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")

	v.SetDefault("player.command", "ffplay")
	v.SetDefault("player.probe_command", "ffprobe")

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.schedule", "0 20 * * *")

	v.SetDefault("sessions.idle_timeout", "30m")
}

func decode(v *viper.Viper) (*Config, error) {
	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	cfg.DB.URL = v.GetString("database_url")

	if cfg.Quran.SearchEdition == "" {
		cfg.Quran.SearchEdition = cfg.Quran.TranslationEdition
	}

	switch cfg.Storage.Backend {
	case StorageMemory, StorageFile, StoragePebble:
	case StoragePostgres:
		if cfg.DB.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL: %w", ErrMissingEnvironmentVariables)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageBackend, cfg.Storage.Backend)
	}

	return &cfg, nil
}
