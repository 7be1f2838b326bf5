package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/types"
)

// Configuration is the root application configuration, loaded from
// config/config.yaml with environment variable overrides (CRAFTLY_*)
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Billing    BillingConfig    `mapstructure:"billing"`
	PayHub     PayHubConfig     `mapstructure:"payhub"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// BillingConfig carries the scheduler and billing policy knobs
type BillingConfig struct {
	// RenewalCronSpec fires the monthly renewal pass (followed by the
	// pack-exceeded pass) at the start of each billing month
	RenewalCronSpec string `mapstructure:"renewal_cron_spec" validate:"required"`

	// RetryCronSpec fires the retry pass for past-due subscriptions
	RetryCronSpec string `mapstructure:"retry_cron_spec" validate:"required"`

	// GracePeriodDays is the default grace window after a failed renewal
	// charge; tenants may override it via lifecycle config
	GracePeriodDays int `mapstructure:"grace_period_days" validate:"min=0"`

	// MaxRetryAttempts caps charge retries per subscription per period;
	// 0 means unlimited
	MaxRetryAttempts int `mapstructure:"max_retry_attempts" validate:"min=0"`

	// ChargeTimeout bounds each payment processor call
	ChargeTimeout time.Duration `mapstructure:"charge_timeout" validate:"required"`

	// WorkerCount bounds per-pass concurrency over subscriptions
	WorkerCount int `mapstructure:"worker_count" validate:"min=1"`
}

type PayHubConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// NewConfig loads the configuration from file and environment
func NewConfig() (*Configuration, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Local development convenience; missing .env is not an error
	_ = godotenv.Load()

	v.SetEnvPrefix("CRAFTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read configuration file").
				Mark(ierr.ErrValidation)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrValidation)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.RunModeServer)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "craftly")
	v.SetDefault("postgres.dbname", "craftly")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open", 10)
	v.SetDefault("postgres.max_idle", 5)
	v.SetDefault("billing.renewal_cron_spec", "0 0 1 * *")
	v.SetDefault("billing.retry_cron_spec", "0 */6 * * *")
	v.SetDefault("billing.grace_period_days", 7)
	v.SetDefault("billing.max_retry_attempts", 8)
	v.SetDefault("billing.charge_timeout", 30*time.Second)
	v.SetDefault("billing.worker_count", 10)
	v.SetDefault("payhub.timeout", 30*time.Second)
	v.SetDefault("payhub.max_retries", 2)
}

// Validate checks the configuration against its struct tags
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid configuration").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.RunModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "craftly",
			DBName:  "craftly",
			SSLMode: "disable",
			MaxOpen: 10,
			MaxIdle: 5,
		},
		Billing: BillingConfig{
			RenewalCronSpec:  "0 0 1 * *",
			RetryCronSpec:    "0 */6 * * *",
			GracePeriodDays:  7,
			MaxRetryAttempts: 8,
			ChargeTimeout:    30 * time.Second,
			WorkerCount:      10,
		},
		PayHub: PayHubConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
	}
}
