// Package config loads service configuration from STUDIO_* environment
// variables, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Prefix is the environment variable prefix, e.g. STUDIO_STORE.
const Prefix = "STUDIO"

// Store backends.
const (
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Gemini client implementations.
const (
	ProviderREST = "rest"
	ProviderSDK  = "sdk"
)

// Config is the full service configuration.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Store       string `envconfig:"STORE" default:"sqlite"`
	DynamoTable string `envconfig:"DYNAMO_TABLE"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"brand-studio.db"`

	AssetBucket    string        `envconfig:"ASSET_BUCKET"`
	AssetDir       string        `envconfig:"ASSET_DIR" default:"generated-assets"`
	AssetURLExpiry time.Duration `envconfig:"ASSET_URL_EXPIRY" default:"1h"`

	EventBus string `envconfig:"EVENT_BUS"`

	SSMAPIKeyParam string        `envconfig:"SSM_API_KEY_PARAM" default:"/brand-studio/prod/gemini-api-key"`
	Provider       string        `envconfig:"PROVIDER" default:"rest"`
	ImageModel     string        `envconfig:"IMAGE_MODEL" default:"gemini-3-pro-image-preview"`
	TextModel      string        `envconfig:"TEXT_MODEL" default:"gemini-3-flash-preview"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"2"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	ReferenceCap   int           `envconfig:"REFERENCE_CAP" default:"5"`

	OriginVerifySecret string `envconfig:"ORIGIN_VERIFY_SECRET"`
	ListenAddr         string `envconfig:"LISTEN_ADDR" default:":8080"`
}

// Load reads .env files (missing files are ignored), then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s: %w", f, err)
			}
			continue
		}
		log.Debug().Str("file", f).Msg("Loaded environment file")
	}

	cfg := &Config{}
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process %s_* environment: %w", Prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the chosen backends have what they need.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreDynamo:
		if c.DynamoTable == "" {
			return fmt.Errorf("%s_DYNAMO_TABLE is required when %s_STORE=%s", Prefix, Prefix, StoreDynamo)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required when %s_STORE=%s", Prefix, Prefix, StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%s_SQLITE_PATH must not be empty", Prefix)
		}
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store, StoreDynamo, StorePostgres, StoreSQLite)
	}

	switch c.Provider {
	case ProviderREST, ProviderSDK:
	default:
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderREST, ProviderSDK)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("%s_MAX_RETRIES must be >= 0", Prefix)
	}
	if c.ReferenceCap < 1 || c.ReferenceCap > 10 {
		return fmt.Errorf("%s_REFERENCE_CAP must be between 1 and 10", Prefix)
	}
	return nil
}
