package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xaenox/markov-bot/internal/storage"
)

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Posting    PostingConfig    `mapstructure:"posting"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Discord    DiscordConfig    `mapstructure:"discord"`
	Bluesky    BlueskyConfig    `mapstructure:"bluesky"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Secret is a credential that must never end up in logs.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// Value returns the raw credential.
func (s Secret) Value() string { return string(s) }

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type PostingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Period    time.Duration `mapstructure:"period"`
	JitterMin time.Duration `mapstructure:"jitter_min"`
	JitterMax time.Duration `mapstructure:"jitter_max"`
	Retries   int           `mapstructure:"retries"`
	MaxLength int           `mapstructure:"max_length"`
	Fallback  []string      `mapstructure:"fallback"`
}

type CorpusConfig struct {
	Capacity        int `mapstructure:"capacity"`
	RetrainInterval int `mapstructure:"retrain_interval"`
	StateSize       int `mapstructure:"state_size"`
}

type FiltersConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	LearnedLog string `mapstructure:"learned_log"`
	SpokenLog  string `mapstructure:"spoken_log"`
	PostsLog   string `mapstructure:"posts_log"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password Secret `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ChatConfig struct {
	Platform string `mapstructure:"platform"`
}

type TelegramConfig struct {
	Token  Secret `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type DiscordConfig struct {
	Token     Secret `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

type BlueskyConfig struct {
	Host        string        `mapstructure:"host"`
	Handle      string        `mapstructure:"handle"`
	Password    Secret        `mapstructure:"password"`
	IntervalMin time.Duration `mapstructure:"interval_min"`
	IntervalMax time.Duration `mapstructure:"interval_max"`
	StaticPosts string        `mapstructure:"static_posts"`
	StateSize   int           `mapstructure:"state_size"`
	Curate      bool          `mapstructure:"curate"`
	Attempts    int           `mapstructure:"attempts"`
}

type ModerationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type OpenAIConfig struct {
	APIKey Secret `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Storage backends.
const (
	BackendFile     = storage.BackendFile
	BackendPostgres = storage.BackendPostgres
	BackendSQLite   = storage.BackendSQLite
	BackendMemory   = storage.BackendMemory
)

// Chat platforms.
const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
)

// DefaultFallback is the filler used when no safe generated message is available.
var DefaultFallback = []string{"just vibing", "KEKW", "peepoHappy", "<3"}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: Secret(password),
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("posting.enabled", true)
	v.SetDefault("posting.period", 30*time.Second)
	v.SetDefault("posting.jitter_min", 120*time.Second)
	v.SetDefault("posting.jitter_max", 300*time.Second)
	v.SetDefault("posting.retries", 5)
	v.SetDefault("posting.max_length", 200)
	v.SetDefault("posting.fallback", DefaultFallback)

	v.SetDefault("corpus.capacity", 10000)
	v.SetDefault("corpus.retrain_interval", 50)
	v.SetDefault("corpus.state_size", 2)

	v.SetDefault("filters.dir", "filters")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.learned_log", "learned.log")
	v.SetDefault("storage.spoken_log", "spoken.log")
	v.SetDefault("storage.posts_log", "bsky_posts.log")
	v.SetDefault("storage.sqlite_path", "markov-bot.db")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "markov_bot")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("chat.platform", PlatformTelegram)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.channel_id", "")

	v.SetDefault("bluesky.host", "https://bsky.social")
	v.SetDefault("bluesky.handle", "")
	v.SetDefault("bluesky.password", "")
	v.SetDefault("bluesky.interval_min", 2*time.Hour)
	v.SetDefault("bluesky.interval_max", 8*time.Hour)
	v.SetDefault("bluesky.static_posts", "filters/static_posts.txt")
	v.SetDefault("bluesky.state_size", 2)
	v.SetDefault("bluesky.curate", false)
	v.SetDefault("bluesky.attempts", 5)

	v.SetDefault("moderation.enabled", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "omni-moderation-latest")

	v.SetDefault("metrics.addr", "")
}

// LoadConfig reads configuration from the optional YAML file at path, the
// process environment and a .env file in the working directory.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// Legacy variable names from older .env files.
	if v.IsSet("BOT_ACTIVE") {
		config.Posting.Enabled = strings.EqualFold(v.GetString("BOT_ACTIVE"), "true")
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = Secret(token)
	}
	if token := v.GetString("DISCORD_TOKEN"); token != "" {
		config.Discord.Token = Secret(token)
	}
	if handle := v.GetString("BSKY_HANDLE"); handle != "" {
		config.Bluesky.Handle = handle
	}
	if password := v.GetString("BSKY_PASSWORD"); password != "" {
		config.Bluesky.Password = Secret(password)
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = Secret(apiKey)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise surface as confusing runtime
// behaviour.
func (c *Config) Validate() error {
	if c.Corpus.Capacity <= 0 {
		return fmt.Errorf("corpus.capacity must be positive, got %d", c.Corpus.Capacity)
	}
	if c.Corpus.RetrainInterval <= 0 {
		return fmt.Errorf("corpus.retrain_interval must be positive, got %d", c.Corpus.RetrainInterval)
	}
	if c.Corpus.StateSize < 1 || c.Bluesky.StateSize < 1 {
		return errors.New("state_size must be at least 1")
	}
	if c.Posting.JitterMax < c.Posting.JitterMin {
		return errors.New("posting.jitter_max must not be below posting.jitter_min")
	}
	if c.Bluesky.IntervalMax < c.Bluesky.IntervalMin {
		return errors.New("bluesky.interval_max must not be below bluesky.interval_min")
	}
	if len(c.Posting.Fallback) == 0 {
		return errors.New("posting.fallback must not be empty")
	}
	switch c.Storage.Backend {
	case BackendFile, BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Chat.Platform {
	case PlatformTelegram, PlatformDiscord:
	default:
		return fmt.Errorf("unknown chat.platform %q", c.Chat.Platform)
	}
	return nil
}

// StorageOptions describes the configured log backend.
func (c *Config) StorageOptions() storage.OpenConfig {
	return storage.OpenConfig{
		Backend: c.Storage.Backend,
		Files: map[string]string{
			storage.KindLearned: c.Storage.LearnedLog,
			storage.KindSpoken:  c.Storage.SpokenLog,
			storage.KindPosts:   c.Storage.PostsLog,
		},
		SQLitePath: c.Storage.SQLitePath,
		Database: storage.DatabaseConfig{
			Host:     c.Database.Host,
			Port:     c.Database.Port,
			User:     c.Database.User,
			Password: c.Database.Password.Value(),
			DBName:   c.Database.DBName,
			SSLMode:  c.Database.SSLMode,
		},
	}
}
