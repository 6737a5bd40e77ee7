package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database PostgresConfig `mapstructure:"database"`
	Redis    RedisConfig
	MQTT     MQTTConfig
	Auth     AuthConfig
	Ingest   IngestConfig
	Cleanup  CleanupConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MQTTConfig struct {
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Topic     string `mapstructure:"topic"`
	QoS       byte   `mapstructure:"qos"`
}

type AuthConfig struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type IngestConfig struct {
	Workers       int           `mapstructure:"workers"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type CleanupConfig struct {
	SessionSweepInterval time.Duration `mapstructure:"session_sweep_interval"`
	TokenSweepInterval   time.Duration `mapstructure:"token_sweep_interval"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("HUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "database")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "mqtt")
	viper.SetDefault("database.dbname", "sensors")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 16)
	viper.SetDefault("database.query_timeout", "5s")

	// Redis defaults
	viper.SetDefault("redis.host", "redis")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// MQTT defaults
	viper.SetDefault("mqtt.broker_url", "tcp://mqtt:1883")
	viper.SetDefault("mqtt.client_id", "telemetry-hub")
	viper.SetDefault("mqtt.topic", "sensors/+/data")
	viper.SetDefault("mqtt.qos", 1)

	// Auth defaults
	viper.SetDefault("auth.session_ttl", "24h")
	viper.SetDefault("auth.bcrypt_cost", 10)

	// Ingest defaults
	viper.SetDefault("ingest.workers", 8)
	viper.SetDefault("ingest.retry_attempts", 3)
	viper.SetDefault("ingest.retry_backoff", "250ms")

	// Cleanup defaults
	viper.SetDefault("cleanup.session_sweep_interval", "10m")
	viper.SetDefault("cleanup.token_sweep_interval", "1h")
}

func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt broker url is required")
	}
	if config.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest workers must be positive")
	}
	if config.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}
