package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/job-dispatcher/shared/database"
	"github.com/cuongbtq/job-dispatcher/shared/rabbitmq"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Environment variables that override the file
const (
	EnvWebhookURL       = "WEBHOOK_URL"
	EnvDatabasePassword = "DATABASE_PASSWORD"
	EnvRabbitMQPassword = "RABBITMQ_PASSWORD"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Notifier NotifierConfig `yaml:"notifier"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds job store connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres or sqlite3
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	Path            string        `yaml:"path"` // sqlite3 only
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// EngineConfig holds execution engine configuration
type EngineConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	WorkDuration   time.Duration `yaml:"work_duration"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
	NotifyTimeout  time.Duration `yaml:"notify_timeout"`
	RecoverOnStart bool          `yaml:"recover_on_start"`
}

// NotifierConfig holds completion notification configuration
type NotifierConfig struct {
	Webhook WebhookConfig      `yaml:"webhook"`
	AMQP    AMQPNotifierConfig `yaml:"amqp"`
}

// WebhookConfig holds webhook delivery settings. An empty URL disables delivery.
type WebhookConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
}

// AMQPNotifierConfig toggles publishing completion events to RabbitMQ
type AMQPNotifierConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds the optional queue bound to the events exchange
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	TimeFormat   string `yaml:"time_format"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// CORSConfig holds the allowed browser origin
type CORSConfig struct {
	AllowOrigin string `yaml:"allow_origin"`
}

// Load reads and parses the configuration file, then applies environment
// overrides and defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.ApplyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvWebhookURL); ok {
		c.Notifier.Webhook.URL = v
	}
	if v := os.Getenv(EnvDatabasePassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvRabbitMQPassword); v != "" {
		c.RabbitMQ.Password = v
	}
}

// ApplyDefaults fills zero values with working defaults
func (c *Config) ApplyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Engine.Concurrency == 0 {
		c.Engine.Concurrency = 10
	}
	if c.Engine.WorkDuration == 0 {
		c.Engine.WorkDuration = 3 * time.Second
	}
	if c.Engine.JobTimeout == 0 {
		c.Engine.JobTimeout = 30 * time.Second
	}
	if c.Engine.NotifyTimeout == 0 {
		c.Engine.NotifyTimeout = 30 * time.Second
	}

	if c.Notifier.Webhook.Timeout == 0 {
		c.Notifier.Webhook.Timeout = 10 * time.Second
	}
	if c.Notifier.Webhook.RetryWaitMin == 0 {
		c.Notifier.Webhook.RetryWaitMin = 500 * time.Millisecond
	}
	if c.Notifier.Webhook.RetryWaitMax == 0 {
		c.Notifier.Webhook.RetryWaitMax = 5 * time.Second
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "job.completed"
	}

	if c.CORS.AllowOrigin == "" {
		c.CORS.AllowOrigin = "*"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("engine concurrency must be greater than 0")
	}

	if c.Engine.JobTimeout <= 0 {
		return fmt.Errorf("engine job_timeout must be greater than 0")
	}

	if c.Engine.WorkDuration < 0 {
		return fmt.Errorf("engine work_duration must not be negative")
	}

	if c.Notifier.Webhook.URL != "" {
		u, err := url.Parse(c.Notifier.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid webhook url: %q (must be an absolute http or https URL)", c.Notifier.Webhook.URL)
		}
	}

	if c.Notifier.Webhook.RetryMax < 0 {
		return fmt.Errorf("webhook retry_max must not be negative")
	}

	if c.Notifier.AMQP.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	return nil
}

// ValidateDatabase checks only the database section. The CLI needs nothing else.
func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}

		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}

		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	return nil
}

// DatabaseClientConfig converts the database section for the database client
func (c *Config) DatabaseClientConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// RabbitMQClientConfig converts the rabbitmq section for the RabbitMQ client
func (c *Config) RabbitMQClientConfig() *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.RabbitMQ.Host,
		Port:               c.RabbitMQ.Port,
		User:               c.RabbitMQ.User,
		Password:           c.RabbitMQ.Password,
		VHost:              c.RabbitMQ.VHost,
		ExchangeName:       c.RabbitMQ.Exchange.Name,
		ExchangeType:       c.RabbitMQ.Exchange.Type,
		ExchangeDurable:    c.RabbitMQ.Exchange.Durable,
		ExchangeAutoDelete: c.RabbitMQ.Exchange.AutoDelete,
		QueueName:          c.RabbitMQ.Queue.Name,
		QueueDurable:       c.RabbitMQ.Queue.Durable,
		RoutingKey:         c.RabbitMQ.RoutingKey,
		RetryAttempts:      c.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:      c.RabbitMQ.Connection.RetryInterval,
		Heartbeat:          c.RabbitMQ.Connection.Heartbeat,
		PublishRetries:     c.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay:  c.RabbitMQ.Publish.RetryInterval,
	}
}
