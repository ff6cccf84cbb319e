package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override.
const envPrefix = "WEBMAIL_"

// APIConfig holds settings for the mail API the client talks to.
type APIConfig struct {
	// BaseURL is the root of the API, including any path prefix
	// (e.g., https://mail.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url" env:"API_URL"`

	// Timeout bounds a single mailbox operation, including a refresh
	// and the replayed request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" env:"API_TIMEOUT"`

	// PageSize is the number of messages requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size" env:"PAGE_SIZE"`
}

// CredentialConfig controls where the access credential is persisted.
type CredentialConfig struct {
	Service  string   `mapstructure:"service" yaml:"service" env:"KEYRING_SERVICE"`
	Key      string   `mapstructure:"key" yaml:"key" env:"KEYRING_KEY"`
	Backends []string `mapstructure:"backends" yaml:"backends" env:"KEYRING_BACKENDS"`
	FileDir  string   `mapstructure:"file_dir" yaml:"file_dir" env:"KEYRING_FILE_DIR"`
}

// MailboxConfig holds controller tuning.
type MailboxConfig struct {
	ToastTTL time.Duration `mapstructure:"toast_ttl" yaml:"toast_ttl" env:"TOAST_TTL"`

	// PollInterval is how often the current listing is refreshed in
	// the background. Zero disables polling.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// LogConfig selects the log level and output format ("text" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `mapstructure:"format" yaml:"format" env:"LOG_FORMAT"`
}

// ServerConfig configures the reference mail store server.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr" env:"SERVER_ADDR"`
	DBPath        string        `mapstructure:"db_path" yaml:"db_path" env:"SERVER_DB_PATH"`
	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret" env:"SERVER_JWT_SECRET"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" yaml:"access_ttl" env:"SERVER_ACCESS_TTL"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl" env:"SERVER_REFRESH_TTL"`
	SecureCookies bool          `mapstructure:"secure_cookies" yaml:"secure_cookies" env:"SERVER_SECURE_COOKIES"`

	// AIKey enables POST /ai/draft. Drafting answers 503 without it.
	AIKey   string `mapstructure:"ai_key" yaml:"ai_key" env:"AI_KEY"`
	AIModel string `mapstructure:"ai_model" yaml:"ai_model" env:"AI_MODEL"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
	Mailbox    MailboxConfig    `mapstructure:"mailbox" yaml:"mailbox"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/webmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "webmail", "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:  "http://localhost:8025/api",
			Timeout:  30 * time.Second,
			PageSize: 20,
		},
		Credential: CredentialConfig{
			Service: "webmail",
			Key:     "accessToken",
			FileDir: "~/.config/webmail/credentials",
		},
		Mailbox: MailboxConfig{
			ToastTTL:     3 * time.Second,
			PollInterval: 120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:       ":8025",
			DBPath:     "webmail.db",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies WEBMAIL_* environment overrides (a .env file in the working
// directory is loaded first when present). A missing file is not an error.
func LoadConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if cfg.API.PageSize < 1 {
		cfg.API.PageSize = 20
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Mailbox.ToastTTL <= 0 {
		cfg.Mailbox.ToastTTL = 3 * time.Second
	}

	return cfg, nil
}

func readConfigFile(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout", defaults.API.Timeout)
	v.SetDefault("api.page_size", defaults.API.PageSize)
	v.SetDefault("credential.service", defaults.Credential.Service)
	v.SetDefault("credential.key", defaults.Credential.Key)
	v.SetDefault("credential.file_dir", defaults.Credential.FileDir)
	v.SetDefault("mailbox.toast_ttl", defaults.Mailbox.ToastTTL)
	v.SetDefault("mailbox.poll_interval", defaults.Mailbox.PollInterval)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.db_path", defaults.Server.DBPath)
	v.SetDefault("server.access_ttl", defaults.Server.AccessTTL)
	v.SetDefault("server.refresh_ttl", defaults.Server.RefreshTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.page_size", cfg.API.PageSize)
	v.Set("credential.service", cfg.Credential.Service)
	v.Set("credential.key", cfg.Credential.Key)
	v.Set("credential.backends", cfg.Credential.Backends)
	v.Set("credential.file_dir", cfg.Credential.FileDir)
	v.Set("mailbox.toast_ttl", cfg.Mailbox.ToastTTL.String())
	v.Set("mailbox.poll_interval", cfg.Mailbox.PollInterval.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.db_path", cfg.Server.DBPath)
	v.Set("server.access_ttl", cfg.Server.AccessTTL.String())
	v.Set("server.refresh_ttl", cfg.Server.RefreshTTL.String())
	v.Set("server.secure_cookies", cfg.Server.SecureCookies)
	v.Set("server.ai_model", cfg.Server.AIModel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
