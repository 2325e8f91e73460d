// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	RabbitMQ RabbitMQConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	YouTube  YouTubeConfig
	OAuth    OAuthConfig
	Sync     SyncConfig
	Deletion DeletionConfig
}

// ServerConfig contains HTTP server configuration. With no API keys
// configured the API endpoints are left open.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	APIKeys         []string
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// RedisConfig contains cache connection configuration.
type RedisConfig struct {
	Host     string
	Password string
	Port     int
	DB       int
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
// Leave Host empty to disable event publishing.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// YouTubeConfig contains platform API credentials and call limits.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type YouTubeConfig struct {
	APIKeys        []string
	EnableFallback bool
}

// OAuthConfig contains the OAuth client used for refresh-token grants.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// SyncConfig contains video and comment sync limits.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type SyncConfig struct {
	MaxVideosInitial    int
	MaxVideosPerRun     int
	MaxCommentsInitial  int
	MaxCommentsPerVideo int
	TopVideosPerChannel int
	CacheTTL            time.Duration
	ProcessedTTL        time.Duration
}

// DeletionConfig contains deletion worker tuning.
type DeletionConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	QuotaBackoff time.Duration
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Sync.MaxVideosInitial > 20 {
		cfg.Sync.MaxVideosInitial = 20
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.apikeys", []string{})

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "creatorshield")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// RabbitMQ (optional, disabled when host is empty)
	viper.SetDefault("rabbitmq.host", "")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "youtube.sync")
	viper.SetDefault("rabbitmq.queue", "youtube.sync.events")
	viper.SetDefault("rabbitmq.routingkey", "sync.completed")

	// YouTube API
	viper.SetDefault("youtube.apikeys", []string{})
	viper.SetDefault("youtube.enablefallback", true)

	// OAuth
	viper.SetDefault("oauth.clientid", "")
	viper.SetDefault("oauth.clientsecret", "")
	viper.SetDefault("oauth.tokenurl", "https://oauth2.googleapis.com/token")

	// Sync limits
	viper.SetDefault("sync.maxvideosinitial", 5)
	viper.SetDefault("sync.maxvideosperrun", 50)
	viper.SetDefault("sync.maxcommentsinitial", 100)
	viper.SetDefault("sync.maxcommentspervideo", 0) // 0 means uncapped
	viper.SetDefault("sync.topvideosperchannel", 20)
	viper.SetDefault("sync.cachettl", 72*time.Hour)
	viper.SetDefault("sync.processedttl", 720*time.Hour)

	// Deletion worker
	viper.SetDefault("deletion.pollinterval", 10*time.Second)
	viper.SetDefault("deletion.batchsize", 10)
	viper.SetDefault("deletion.maxretries", 3)
	viper.SetDefault("deletion.quotabackoff", 1*time.Hour)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
