package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database  *DBConfig
	Service   *ServiceConfig
	Cloud     *CloudConfig
	Token     *TokenConfig
	Reconcile *ReconcileConfig
	Events    *EventsConfig
	Tracing   *TracingConfig
}

type DBConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"cloud-instances"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASS"`
	Logging  bool   `envconfig:"DB_LOGGING" default:"false"`
}

type ServiceConfig struct {
	Address     string `envconfig:"SVC_ADDRESS" default:":8080"`
	LogLevel    string `envconfig:"SVC_LOG_LEVEL" default:"info"`
	Environment string `envconfig:"SVC_ENVIRONMENT" default:"development"`
}

// CloudConfig bounds every call made to a remote cloud provider.
type CloudConfig struct {
	Timeout time.Duration `envconfig:"CLOUD_TIMEOUT" default:"5s"`
}

type TokenConfig struct {
	ValidDurationS int `envconfig:"TOKEN_VALID_DURATION_S" default:"60"`
}

type ReconcileConfig struct {
	Enabled  bool          `envconfig:"RECONCILE_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
}

// EventsConfig configures lifecycle event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL string `envconfig:"NATS_URL"`
}

type TracingConfig struct {
	Enabled bool `envconfig:"TRACING_ENABLED" default:"false"`
}

func Load() (*Config, error) {
	// A missing .env file is not an error; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if cfg.Database.Type != "pgsql" && cfg.Database.Type != "sqlite" {
		log.Printf("WARNING: invalid DB_TYPE %q, defaulting to sqlite", cfg.Database.Type)
		cfg.Database.Type = "sqlite"
	}
	if cfg.Token.ValidDurationS <= 0 {
		log.Printf("WARNING: invalid TOKEN_VALID_DURATION_S %d, defaulting to 60", cfg.Token.ValidDurationS)
		cfg.Token.ValidDurationS = 60
	}
	if cfg.Reconcile.Interval <= 0 {
		log.Printf("WARNING: invalid RECONCILE_INTERVAL %s, defaulting to 1m", cfg.Reconcile.Interval)
		cfg.Reconcile.Interval = time.Minute
	}
	return cfg, nil
}
