package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// It is loaded once at start-up and passed by value afterwards.
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Voice VoiceConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV" envDefault:"local"`
	Port int    `env:"APP_PORT" envDefault:"3000"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DBConfig struct {
	// URL selects the backend by scheme: mongodb, mongodb+srv, postgres, postgresql.
	URL string `env:"DATABASE_URL" envDefault:"mongodb://localhost:27017/callbridge"`

	// MigrateOnStart applies embedded migrations before serving (Postgres only).
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" envDefault:"false"`
}

type RedisConfig struct {
	// Addr is optional. When empty, end-call runs without a distributed lock.
	Addr    string        `env:"REDIS_ADDR"`
	LockTTL time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
}

type VoiceConfig struct {
	APIKey             string        `env:"ELEVENLABS_API_KEY"`
	AgentID            string        `env:"ELEVENLABS_AGENT_ID"`
	AgentPhoneNumberID string        `env:"ELEVENLABS_AGENT_PHONE_NUMBER_ID"`
	BaseURL            string        `env:"ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	StartTimeout       time.Duration `env:"ELEVENLABS_START_TIMEOUT" envDefault:"30s"`
	RequestTimeout     time.Duration `env:"ELEVENLABS_REQUEST_TIMEOUT" envDefault:"15s"`
}

// Configured reports whether a provider credential is present.
// A missing key is not a start-up error; make-call reports it per request.
func (v VoiceConfig) Configured() bool {
	return strings.TrimSpace(v.APIKey) != ""
}

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	c.App.Env = strings.TrimSpace(c.App.Env)
	c.DB.URL = strings.TrimSpace(c.DB.URL)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Voice.AgentID = strings.TrimSpace(c.Voice.AgentID)
	c.Voice.AgentPhoneNumberID = strings.TrimSpace(c.Voice.AgentPhoneNumberID)
	c.Voice.BaseURL = strings.TrimRight(strings.TrimSpace(c.Voice.BaseURL), "/")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	} else if _, err := c.DB.Driver(); err != nil {
		errs = append(errs, err)
	} else if c.DB.MigrateOnStart && !c.DB.IsPostgres() {
		errs = append(errs, errors.New("DB_MIGRATE_ON_START is only supported for postgres DATABASE_URL"))
	}

	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_LOCK_TTL must be positive, got %s", c.Redis.LockTTL))
	}

	if c.Voice.Configured() {
		if c.Voice.AgentID == "" {
			errs = append(errs, errors.New("ELEVENLABS_AGENT_ID is required when ELEVENLABS_API_KEY is set"))
		}
		if c.Voice.AgentPhoneNumberID == "" {
			errs = append(errs, errors.New("ELEVENLABS_AGENT_PHONE_NUMBER_ID is required when ELEVENLABS_API_KEY is set"))
		}
	}
	if u, err := url.Parse(c.Voice.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ELEVENLABS_BASE_URL must be an absolute URL, got %q", c.Voice.BaseURL))
	}
	if c.Voice.StartTimeout <= 0 {
		errs = append(errs, errors.New("ELEVENLABS_START_TIMEOUT must be positive"))
	}
	if c.Voice.RequestTimeout <= 0 {
		errs = append(errs, errors.New("ELEVENLABS_REQUEST_TIMEOUT must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// Driver maps the DATABASE_URL scheme to a store backend.
func (d DBConfig) Driver() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		// Avoid echoing the URL; it may contain credentials.
		return "", errors.New("DATABASE_URL is not a valid URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return DriverMongo, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("DATABASE_URL scheme must be mongodb, mongodb+srv, postgres or postgresql, got %q", u.Scheme)
	}
}

func (d DBConfig) IsPostgres() bool {
	drv, err := d.Driver()
	return err == nil && drv == DriverPostgres
}

// MongoDatabase is the database named in the URL path, or "callbridge".
func (d DBConfig) MongoDatabase() string {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "callbridge"
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return "callbridge"
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
