package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv hides overrides that may be set in the developer's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvWebhookURL, EnvDatabasePassword, EnvRabbitMQPassword} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "jobs_db", cfg.Database.Database)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.Equal(t, 4, cfg.Engine.Concurrency)
				assert.Equal(t, 3*time.Second, cfg.Engine.WorkDuration)
				assert.Equal(t, time.Minute, cfg.Engine.JobTimeout)
				assert.True(t, cfg.Engine.RecoverOnStart)
				assert.Equal(t, "https://hooks.example.com/jobs", cfg.Notifier.Webhook.URL)
				assert.Equal(t, 4, cfg.Notifier.Webhook.RetryMax)
				assert.Equal(t, 20.0, cfg.Notifier.Webhook.RateLimit)
				assert.True(t, cfg.Notifier.AMQP.Enabled)
				assert.Equal(t, "jobs_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "job-dispatcher", cfg.App.Name)
				assert.Equal(t, "https://dashboard.example.com", cfg.CORS.AllowOrigin)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/sqlite_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "./data/jobs.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Engine.Concurrency)
	assert.Equal(t, 3*time.Second, cfg.Engine.WorkDuration)
	assert.Equal(t, 30*time.Second, cfg.Engine.JobTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Notifier.Webhook.Timeout)
	assert.Empty(t, cfg.Notifier.Webhook.URL)
	assert.Equal(t, "*", cfg.CORS.AllowOrigin)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvWebhookURL, "http://localhost:9999/hook")
	t.Setenv(EnvDatabasePassword, "from-env")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/hook", cfg.Notifier.Webhook.URL)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "guest", cfg.RabbitMQ.Password)

	// an explicitly empty WEBHOOK_URL disables delivery
	t.Setenv(EnvWebhookURL, "")
	cfg, err = Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Notifier.Webhook.URL)
}

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			Database: "jobs_db",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			modify:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			modify:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			modify:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			modify:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "unknown driver",
			modify:    func(c *Config) { c.Database.Driver = "mysql" },
			wantErr:   true,
			errString: "unsupported database driver",
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "sqlite3"}
			},
			wantErr:   true,
			errString: "database path is required",
		},
		{
			name: "sqlite with path",
			modify: func(c *Config) {
				c.Database = DatabaseConfig{Driver: "sqlite3", Path: "jobs.db"}
			},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			modify:    func(c *Config) { c.Engine.Concurrency = -1 },
			wantErr:   true,
			errString: "engine concurrency must be greater than 0",
		},
		{
			name:      "relative webhook url",
			modify:    func(c *Config) { c.Notifier.Webhook.URL = "/hooks" },
			wantErr:   true,
			errString: "invalid webhook url",
		},
		{
			name:      "unsupported webhook scheme",
			modify:    func(c *Config) { c.Notifier.Webhook.URL = "ftp://example.com/hook" },
			wantErr:   true,
			errString: "invalid webhook url",
		},
		{
			name:    "https webhook url",
			modify:  func(c *Config) { c.Notifier.Webhook.URL = "https://example.com/hook" },
			wantErr: false,
		},
		{
			name: "amqp enabled without rabbitmq host",
			modify: func(c *Config) {
				c.Notifier.AMQP.Enabled = true
				c.RabbitMQ.Port = 5672
				c.RabbitMQ.Exchange.Name = "jobs_events"
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "amqp enabled without exchange",
			modify: func(c *Config) {
				c.Notifier.AMQP.Enabled = true
				c.RabbitMQ.Host = "localhost"
				c.RabbitMQ.Port = 5672
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "rabbitmq ignored when amqp disabled",
			modify: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	clearEnv(t)

	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestClientConfigs(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	db := cfg.DatabaseClientConfig()
	assert.Equal(t, "postgres", db.Driver)
	assert.Equal(t, "jobs_db", db.Database)
	assert.Equal(t, 20, db.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, db.ConnMaxLifetime)

	mq := cfg.RabbitMQClientConfig()
	assert.Equal(t, "jobs_events", mq.ExchangeName)
	assert.Equal(t, "topic", mq.ExchangeType)
	assert.Equal(t, "job.completed", mq.RoutingKey)
	assert.Equal(t, 5, mq.RetryAttempts)
	assert.Equal(t, 2*time.Second, mq.RetryInterval)
}
