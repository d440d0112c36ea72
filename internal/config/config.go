package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Database   Database
	LogLevel   string
	Validation Validation
}

type Database struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Validation tunes batch structure validation.
type Validation struct {
	Workers    int
	QueueSize  int
	Retries    int
	RetryDelay time.Duration
}

// DSN returns DATABASE_URL when set, otherwise a url built from the parts.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "surveyflow")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VALIDATION_WORKERS", 4)
	v.SetDefault("VALIDATION_QUEUE_SIZE", 16)
	v.SetDefault("VALIDATION_RETRIES", 3)
	v.SetDefault("VALIDATION_RETRY_DELAY", "200ms")
}

// NewConfig reads an optional .env file in the working directory, then the
// environment. Values already bound on v (e.g. cli flags) take precedence.
func NewConfig(v *viper.Viper) (*Config, error) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Debug().Msg("no .env file, using environment only")
	}

	var config Config

	config.Database.URL = v.GetString("DATABASE_URL")
	config.Database.Host = v.GetString("DATABASE_HOST")
	config.Database.Port = v.GetString("DATABASE_PORT")
	config.Database.User = v.GetString("DATABASE_USER")
	config.Database.Password = v.GetString("DATABASE_PASSWORD")
	config.Database.Name = v.GetString("DATABASE_NAME")
	config.Database.SSLMode = v.GetString("DATABASE_SSLMODE")

	config.LogLevel = v.GetString("LOG_LEVEL")

	config.Validation.Workers = v.GetInt("VALIDATION_WORKERS")
	config.Validation.QueueSize = v.GetInt("VALIDATION_QUEUE_SIZE")
	config.Validation.Retries = v.GetInt("VALIDATION_RETRIES")
	config.Validation.RetryDelay = v.GetDuration("VALIDATION_RETRY_DELAY")

	if config.Validation.Workers < 1 {
		return nil, fmt.Errorf("VALIDATION_WORKERS must be at least 1, got %d", config.Validation.Workers)
	}
	if config.Validation.Retries < 1 {
		return nil, fmt.Errorf("VALIDATION_RETRIES must be at least 1, got %d", config.Validation.Retries)
	}
	if config.Validation.QueueSize < 0 {
		return nil, fmt.Errorf("VALIDATION_QUEUE_SIZE cannot be negative, got %d", config.Validation.QueueSize)
	}

	log.Debug().
		Str("database", config.Database.Host).
		Str("logLevel", config.LogLevel).
		Int("workers", config.Validation.Workers).
		Msg("config loaded")

	return &config, nil
}
