package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"

	devJWTSecret = "dev-secret-change-in-production"
)

// Config holds every setting of the application.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`
	StaticDir   string `mapstructure:"STATIC_DIR"`
	DBPath      string `mapstructure:"DB_PATH"`

	JWTSecret                string        `mapstructure:"JWT_SECRET"`
	SessionTTL               time.Duration `mapstructure:"SESSION_TTL"`
	RequireEmailConfirmation bool          `mapstructure:"REQUIRE_EMAIL_CONFIRMATION"`
	PublicURL                string        `mapstructure:"PUBLIC_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     string `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFile   string `mapstructure:"LOG_FILE"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`
	AuthRateLimit int    `mapstructure:"AUTH_RATE_LIMIT"`
}

var defaults = map[string]any{
	"ENVIRONMENT":                EnvDevelopment,
	"PORT":                       "3001",
	"STATIC_DIR":                 "./web",
	"DB_PATH":                    "./tasks.db",
	"JWT_SECRET":                 "",
	"SESSION_TTL":                "168h",
	"REQUIRE_EMAIL_CONFIRMATION": false,
	"PUBLIC_URL":                 "http://localhost:3001",
	"SMTP_HOST":                  "",
	"SMTP_PORT":                  "",
	"SMTP_USERNAME":              "",
	"SMTP_PASSWORD":              "",
	"SMTP_FROM":                  "",
	"LOG_LEVEL":                  "info",
	"LOG_FILE":                   "",
	"LOG_FORMAT":                 "console",
	"CORS_ORIGINS":               "*",
	"AUTH_RATE_LIMIT":            20,
}

// Load reads the optional .env file in dir, then the environment. Values
// from the environment win.
func Load(dir string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c Config) Validate() error {
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.AuthRateLimit <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be positive, got %d", c.AuthRateLimit)
	}
	return nil
}

// Secret returns the JWT signing key, falling back to a fixed key in development.
func (c Config) Secret() []byte {
	if c.JWTSecret == "" {
		return []byte(devJWTSecret)
	}
	return []byte(c.JWTSecret)
}

// AllowedOrigins splits CORS_ORIGINS.
func (c Config) AllowedOrigins() []string {
	origins := []string{}
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
