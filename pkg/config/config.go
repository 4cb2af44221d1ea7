package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main application configuration struct.
type Config struct {
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`

	Logging  LoggingConfig  `mapstructure:"logging"`
	Database PostgresConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Email    EmailConfig    `mapstructure:"email"`

	Notifications NotificationConfig `mapstructure:"notifications"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type EmailConfig struct {
	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`
	FromAddress          string `mapstructure:"from_address"`
}

// NotificationConfig holds the delivery-engine knobs.
type NotificationConfig struct {
	MaxRetryAttempts        int  `mapstructure:"max_retry_attempts"`
	QueueBatchSize          int  `mapstructure:"queue_batch_size"`
	RetryDelayMinutes       int  `mapstructure:"retry_delay_minutes"`
	DispatchIntervalSeconds int  `mapstructure:"dispatch_interval_seconds"`
	StaleClaimMinutes       int  `mapstructure:"stale_claim_minutes"`
	DispatchConcurrency     int  `mapstructure:"dispatch_concurrency"`
	DeliveryTimeoutSeconds  int  `mapstructure:"delivery_timeout_seconds"`
	FCMEnabled              bool `mapstructure:"fcm_enabled"`
	EmailEnabled            bool `mapstructure:"email_enabled"`
}

// Load reads config.yaml (if present) layered under environment variables.
// A .env file is loaded first so local development matches deployment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kidsnest")
	v.SetDefault("database.database", "kidsnest")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("notifications.max_retry_attempts", 3)
	v.SetDefault("notifications.queue_batch_size", 50)
	v.SetDefault("notifications.retry_delay_minutes", 5)
	v.SetDefault("notifications.dispatch_interval_seconds", 60)
	v.SetDefault("notifications.stale_claim_minutes", 10)
	v.SetDefault("notifications.dispatch_concurrency", 8)
	v.SetDefault("notifications.delivery_timeout_seconds", 30)
	v.SetDefault("notifications.fcm_enabled", true)
	v.SetDefault("notifications.email_enabled", true)
}
