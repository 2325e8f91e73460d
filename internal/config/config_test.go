package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				// Reset viper
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
				if cfg.Database.Host != "localhost" {
					t.Errorf("Database.Host = %s, want localhost", cfg.Database.Host)
				}
				if cfg.Redis.Port != 6379 {
					t.Errorf("Redis.Port = %d, want 6379", cfg.Redis.Port)
				}
				if !cfg.YouTube.EnableFallback {
					t.Error("YouTube.EnableFallback = false, want true")
				}
				if cfg.Sync.MaxVideosInitial != 5 {
					t.Errorf("Sync.MaxVideosInitial = %d, want 5", cfg.Sync.MaxVideosInitial)
				}
				if cfg.Sync.MaxVideosPerRun != 50 {
					t.Errorf("Sync.MaxVideosPerRun = %d, want 50", cfg.Sync.MaxVideosPerRun)
				}
				if cfg.Deletion.PollInterval != 10*time.Second {
					t.Errorf("Deletion.PollInterval = %v, want 10s", cfg.Deletion.PollInterval)
				}
				if cfg.Deletion.MaxRetries != 3 {
					t.Errorf("Deletion.MaxRetries = %d, want 3", cfg.Deletion.MaxRetries)
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_SERVER_PORT", "9090")
				os.Setenv("APP_DATABASE_HOST", "testdb")
				os.Setenv("APP_REDIS_HOST", "testredis")
				os.Setenv("APP_SYNC_MAXVIDEOSPERRUN", "25")
				// Manually bind env vars since AutomaticEnv doesn't work with nested keys
				viper.BindEnv("server.port", "APP_SERVER_PORT")
				viper.BindEnv("database.host", "APP_DATABASE_HOST")
				viper.BindEnv("redis.host", "APP_REDIS_HOST")
				viper.BindEnv("sync.maxvideosperrun", "APP_SYNC_MAXVIDEOSPERRUN")
			},
			cleanup: func() {
				os.Unsetenv("APP_SERVER_PORT")
				os.Unsetenv("APP_DATABASE_HOST")
				os.Unsetenv("APP_REDIS_HOST")
				os.Unsetenv("APP_SYNC_MAXVIDEOSPERRUN")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Database.Host != "testdb" {
					t.Errorf("Database.Host = %s, want testdb", cfg.Database.Host)
				}
				if cfg.Redis.Host != "testredis" {
					t.Errorf("Redis.Host = %s, want testredis", cfg.Redis.Host)
				}
				if cfg.Sync.MaxVideosPerRun != 25 {
					t.Errorf("Sync.MaxVideosPerRun = %d, want 25", cfg.Sync.MaxVideosPerRun)
				}
			},
		},
		{
			name: "initial video cap is clamped to 20",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_SYNC_MAXVIDEOSINITIAL", "50")
				viper.BindEnv("sync.maxvideosinitial", "APP_SYNC_MAXVIDEOSINITIAL")
			},
			cleanup: func() {
				os.Unsetenv("APP_SYNC_MAXVIDEOSINITIAL")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Sync.MaxVideosInitial != 20 {
					t.Errorf("Sync.MaxVideosInitial = %d, want 20", cfg.Sync.MaxVideosInitial)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			defer func() {
				if tt.cleanup != nil {
					tt.cleanup()
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	setDefaults()

	tests := []struct {
		name string
		key  string
		want interface{}
	}{
		{"server port", "server.port", 8080},
		{"database host", "database.host", "localhost"},
		{"database port", "database.port", 5432},
		{"database name", "database.name", "creatorshield"},
		{"database user", "database.user", "postgres"},
		{"database maxconnections", "database.maxconnections", 10},
		{"database minconnections", "database.minconnections", 5},
		{"redis host", "redis.host", "localhost"},
		{"redis port", "redis.port", 6379},
		{"rabbitmq port", "rabbitmq.port", 5672},
		{"rabbitmq exchange", "rabbitmq.exchange", "youtube.sync"},
		{"rabbitmq queue", "rabbitmq.queue", "youtube.sync.events"},
		{"rabbitmq routingkey", "rabbitmq.routingkey", "sync.completed"},
		{"youtube enablefallback", "youtube.enablefallback", true},
		{"oauth tokenurl", "oauth.tokenurl", "https://oauth2.googleapis.com/token"},
		{"sync maxvideosinitial", "sync.maxvideosinitial", 5},
		{"sync maxvideosperrun", "sync.maxvideosperrun", 50},
		{"sync topvideosperchannel", "sync.topvideosperchannel", 20},
		{"deletion batchsize", "deletion.batchsize", 10},
		{"deletion maxretries", "deletion.maxretries", 3},
		{"logging level", "logging.level", "info"},
		{"logging file", "logging.file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.want {
				t.Errorf("viper.Get(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	// Test time.Duration defaults
	if viper.GetDuration("server.shutdowntimeout") != 30*time.Second {
		t.Errorf("server.shutdowntimeout = %v, want 30s", viper.GetDuration("server.shutdowntimeout"))
	}
	if viper.GetDuration("deletion.pollinterval") != 10*time.Second {
		t.Errorf("deletion.pollinterval = %v, want 10s", viper.GetDuration("deletion.pollinterval"))
	}
	if viper.GetDuration("deletion.quotabackoff") != 1*time.Hour {
		t.Errorf("deletion.quotabackoff = %v, want 1h", viper.GetDuration("deletion.quotabackoff"))
	}
	if viper.GetDuration("sync.cachettl") != 72*time.Hour {
		t.Errorf("sync.cachettl = %v, want 72h", viper.GetDuration("sync.cachettl"))
	}
}

func TestConfigStructs(t *testing.T) {
	// Test that structs can be created and fields are accessible
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Name:           "test",
			User:           "user",
			Password:       "pass",
			MaxConnections: 10,
			MinConnections: 5,
			MaxIdleTime:    10 * time.Minute,
			MaxLifetime:    1 * time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		YouTube: YouTubeConfig{
			APIKeys:        []string{"key-a", "key-b"},
			EnableFallback: true,
		},
		Deletion: DeletionConfig{
			PollInterval: 10 * time.Second,
			BatchSize:    10,
			MaxRetries:   3,
			QuotaBackoff: time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "/tmp/test.log",
		},
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.YouTube.APIKeys) != 2 {
		t.Errorf("len(YouTube.APIKeys) = %d, want 2", len(cfg.YouTube.APIKeys))
	}
	if cfg.Deletion.BatchSize != 10 {
		t.Errorf("Deletion.BatchSize = %d, want 10", cfg.Deletion.BatchSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
}
