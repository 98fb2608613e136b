package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "JOBTRACKER"

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Auth       AuthConfig
	Google     GoogleConfig
	Firebase   FirebaseConfig
	Classifier ClassifierConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	Security   SecurityConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver string // postgres or sqlite
	DSN    string
}

type LoggingConfig struct {
	Level  string
	Format string // json or console
}

type AuthConfig struct {
	JWTSecret string
}

type GoogleConfig struct {
	ClientID           string
	ClientSecret       string
	ProjectID          string
	PubSubTopic        string
	PubSubSubscription string
	CredentialsFile    string
}

type FirebaseConfig struct {
	CredentialsFile string
}

type ClassifierConfig struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	Backoff      []time.Duration
	ModelBackoff map[string][]time.Duration
	MaxBodyChars int
}

type SyncConfig struct {
	PageSize     int64
	LookbackDays int
	GmailQPS     float64
}

type SchedulerConfig struct {
	Enabled     bool
	RunAt       string
	Timezone    string
	Concurrency int
}

type SecurityConfig struct {
	EncryptionKey string
}

// Load reads .env, then config.yaml (or configFile when set), then
// JOBTRACKER_* environment variables, over the defaults.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := NewViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

// NewViper returns a viper instance carrying the defaults and the
// environment binding, without any config file.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.project_id", "")
	v.SetDefault("google.pubsub_topic", "")
	v.SetDefault("google.pubsub_subscription", "")
	v.SetDefault("google.credentials_file", "")

	v.SetDefault("firebase.credentials_file", "")

	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.backoff_ms", "400,800,1600")
	v.SetDefault("classifier.model_backoff_ms", "")
	v.SetDefault("classifier.max_body_chars", 8000)

	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.lookback_days", 7)
	v.SetDefault("sync.gmail_qps", 5.0)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.run_at", "06:00")
	v.SetDefault("scheduler.timezone", "America/Los_Angeles")
	v.SetDefault("scheduler.concurrency", 3)

	v.SetDefault("security.encryption_key", "")
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	backoff, err := ParseBackoff(v.Get("classifier.backoff_ms"))
	if err != nil {
		return nil, fmt.Errorf("classifier.backoff_ms: %w", err)
	}
	modelBackoff, err := ParseModelBackoff(v.Get("classifier.model_backoff_ms"))
	if err != nil {
		return nil, fmt.Errorf("classifier.model_backoff_ms: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			DSN:    v.GetString("database.dsn"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Auth: AuthConfig{JWTSecret: v.GetString("auth.jwt_secret")},
		Google: GoogleConfig{
			ClientID:           v.GetString("google.client_id"),
			ClientSecret:       v.GetString("google.client_secret"),
			ProjectID:          v.GetString("google.project_id"),
			PubSubTopic:        v.GetString("google.pubsub_topic"),
			PubSubSubscription: v.GetString("google.pubsub_subscription"),
			CredentialsFile:    v.GetString("google.credentials_file"),
		},
		Firebase: FirebaseConfig{CredentialsFile: v.GetString("firebase.credentials_file")},
		Classifier: ClassifierConfig{
			Provider:     strings.ToLower(v.GetString("classifier.provider")),
			Model:        v.GetString("classifier.model"),
			APIKey:       v.GetString("classifier.api_key"),
			BaseURL:      v.GetString("classifier.base_url"),
			Backoff:      backoff,
			ModelBackoff: modelBackoff,
			MaxBodyChars: v.GetInt("classifier.max_body_chars"),
		},
		Sync: SyncConfig{
			PageSize:     v.GetInt64("sync.page_size"),
			LookbackDays: v.GetInt("sync.lookback_days"),
			GmailQPS:     v.GetFloat64("sync.gmail_qps"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("scheduler.enabled"),
			RunAt:       v.GetString("scheduler.run_at"),
			Timezone:    v.GetString("scheduler.timezone"),
			Concurrency: v.GetInt("scheduler.concurrency"),
		},
		Security: SecurityConfig{EncryptionKey: v.GetString("security.encryption_key")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be json or console, got %q", c.Logging.Format))
	}
	if _, err := time.Parse("15:04", c.Scheduler.RunAt); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.run_at: %w", err))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	if c.Sync.PageSize <= 0 {
		errs = append(errs, errors.New("sync.page_size: must be positive"))
	}
	return errors.Join(errs...)
}

// Location is the scheduler's time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Ladders returns the per-model retry ladders, with the configured model
// using Backoff unless ModelBackoff overrides it.
func (c ClassifierConfig) Ladders() map[string][]time.Duration {
	out := make(map[string][]time.Duration, len(c.ModelBackoff)+1)
	if len(c.Backoff) > 0 {
		out[c.Model] = c.Backoff
	}
	for model, ladder := range c.ModelBackoff {
		out[model] = ladder
	}
	return out
}

// ParseBackoff accepts a millisecond ladder as a YAML list or as a string
// separated by commas or spaces ("400,800,1600").
func ParseBackoff(value any) ([]time.Duration, error) {
	var parts []string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	case []string:
		parts = v
	case []int:
		for _, n := range v {
			parts = append(parts, strconv.Itoa(n))
		}
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		return nil, fmt.Errorf("unsupported ladder value %T", value)
	}

	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		ms, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid backoff step %q", p)
		}
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out, nil
}

// ParseModelBackoff accepts a YAML map of model to ladder, or a string of
// the form "model-a=400,800;model-b=1000 2000".
func ParseModelBackoff(value any) (map[string][]time.Duration, error) {
	out := map[string][]time.Duration{}
	switch v := value.(type) {
	case nil:
	case string:
		for _, entry := range strings.Split(v, ";") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			model, ladder, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(model) == "" {
				return nil, fmt.Errorf("invalid entry %q", entry)
			}
			steps, err := ParseBackoff(ladder)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", model, err)
			}
			out[strings.TrimSpace(model)] = steps
		}
	case map[string]any:
		for model, ladder := range v {
			steps, err := ParseBackoff(ladder)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", model, err)
			}
			out[model] = steps
		}
	default:
		return nil, fmt.Errorf("unsupported ladder map %T", value)
	}
	return out, nil
}
