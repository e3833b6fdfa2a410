package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v4"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FAAModeHTTP = "http"
	FAAModeFake = "fake"

	DefaultSQLitePath = "ridbox.db"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	FAA      FAAConfig      `yaml:"faa"`
	RIDBox   RIDBoxConfig   `yaml:"ridbox"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=sqlite postgres"`
	Path   string `yaml:"path"`

	Host     string `yaml:"host" validate:"required_if=Driver postgres"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name" validate:"required_if=Driver postgres"`
	SSLMode  string `yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	SerialsSyncedTopicName string `yaml:"serials_synced_topic_name"`
}

type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"min=0"`
	KeyPrefix string `yaml:"key_prefix"`
}

type FAAConfig struct {
	Mode                 string `yaml:"mode" validate:"omitempty,oneof=http fake"`
	BaseURL              string `yaml:"base_url" validate:"omitempty,url"`
	ListTimeoutSeconds   int    `yaml:"list_timeout_seconds" validate:"min=0"`
	LookupTimeoutSeconds int    `yaml:"lookup_timeout_seconds" validate:"min=0"`
	PageSize             int    `yaml:"page_size" validate:"min=0,max=100"`
}

type RIDBoxConfig struct {
	HTTPAddr                   string `yaml:"http_addr"`
	KafkaConsumerGroup         string `yaml:"kafka_consumer_group"`
	LookupCacheTTLSeconds      int    `yaml:"lookup_cache_ttl_seconds" validate:"min=0"`
	FallbackRateLimitPerMinute int    `yaml:"fallback_rate_limit_per_minute" validate:"min=0"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerSyncIntervalSeconds int    `yaml:"worker_sync_interval_seconds" validate:"min=0"`
	WorkerSyncJitterSeconds   int    `yaml:"worker_sync_jitter_seconds" validate:"min=0"`
	WorkerSyncLimit           int    `yaml:"worker_sync_limit" validate:"min=0"`
	WorkerLockTTLSeconds      int    `yaml:"worker_lock_ttl_seconds" validate:"min=0"`
	WorkerSkipInitialSync     bool   `yaml:"worker_skip_initial_sync"`

	// Backoff after consecutive failed syncs. Defaults: 5/15/30/60 minutes,
	// never longer than the sync interval.
	WorkerBackoff1Seconds int `yaml:"worker_backoff_1_seconds" validate:"min=0"`
	WorkerBackoff2Seconds int `yaml:"worker_backoff_2_seconds" validate:"min=0"`
	WorkerBackoff3Seconds int `yaml:"worker_backoff_3_seconds" validate:"min=0"`
	WorkerBackoff4Seconds int `yaml:"worker_backoff_4_seconds" validate:"min=0"`
}

// Default is the configuration used when no file is given: a local SQLite
// database and the public FAA API.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite, Path: DefaultSQLitePath},
		FAA:      FAAConfig{Mode: FAAModeHTTP},
	}
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) DatabaseDriver() string {
	if c.Database.Driver == "" {
		return DriverSQLite
	}
	return c.Database.Driver
}

func (c *Config) SQLitePath() string {
	if c.Database.Path == "" {
		return DefaultSQLitePath
	}
	return c.Database.Path
}

func (c *Config) PostgresConnString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Database.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, hostPort(c.Database.Host, port), c.Database.DBName, sslMode)
}

// RedisAddr is empty when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	port := c.Redis.Port
	if port == 0 {
		port = 6379
	}
	return hostPort(c.Redis.Host, port)
}

// KafkaBrokers is nil when Kafka is not configured.
func (c *Config) KafkaBrokers() []string {
	if c.Kafka.Host == "" {
		return nil
	}
	port := c.Kafka.Port
	if port == 0 {
		port = 9092
	}
	return []string{hostPort(c.Kafka.Host, port)}
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
