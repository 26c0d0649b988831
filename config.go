package dataeditor

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AdapterKind selects the storage backend of a model.
type AdapterKind string

const (
	AdapterMemory   AdapterKind = "memory"
	AdapterFile     AdapterKind = "file"
	AdapterREST     AdapterKind = "rest"
	AdapterS3       AdapterKind = "s3"
	AdapterSQL      AdapterKind = "sql"
	AdapterPostgres AdapterKind = "postgres"
	AdapterRedis    AdapterKind = "redis"
	AdapterDynamoDB AdapterKind = "dynamodb"
)

var adapterKinds = []AdapterKind{
	AdapterMemory, AdapterFile, AdapterREST, AdapterS3,
	AdapterSQL, AdapterPostgres, AdapterRedis, AdapterDynamoDB,
}

// Key generator names accepted by ModelConfig.KeyGenerator.
const (
	KeyGeneratorUUID = "uuid"
	KeyGeneratorULID = "ulid"
)

// Config holds everything the server and tools need to build the models.
type Config struct {
	Server          ServerConfig  `yaml:"server" json:"server"`
	Auth            AuthConfig    `yaml:"auth" json:"auth"`
	Logging         LoggingConfig `yaml:"logging" json:"logging"`
	Metrics         MetricsConfig `yaml:"metrics" json:"metrics"`
	Storage         StorageConfig `yaml:"storage" json:"storage"`
	Events          EventsConfig  `yaml:"events" json:"events"`
	SchemaDirectory string        `yaml:"schemaDirectory" json:"schemaDirectory"`
	Models          []ModelConfig `yaml:"models" json:"models"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	APIPrefix       string        `yaml:"apiPrefix" json:"apiPrefix"`
	StaticDirectory string        `yaml:"staticDirectory" json:"staticDirectory"`
	EnableCORS      bool          `yaml:"enableCors" json:"enableCors"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// AuthConfig contains the optional basic-auth credentials of the API.
type AuthConfig struct {
	Credentials Credentials `yaml:"credentials" json:"credentials"`
	PublicReads bool        `yaml:"publicReads" json:"publicReads"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Format      string `yaml:"format" json:"format"`
	AccessLog   bool   `yaml:"accessLog" json:"accessLog"`
	Development bool   `yaml:"development" json:"development"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Path      string `yaml:"path" json:"path"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// StorageConfig holds connection settings shared by every model of a backend.
type StorageConfig struct {
	Postgres DatabaseConfig `yaml:"postgres" json:"postgres"`
	SQL      SQLConfig      `yaml:"sql" json:"sql"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	S3       S3Config       `yaml:"s3" json:"s3"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb" json:"dynamodb"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"sslMode" json:"sslMode"`
	MaxConnections  int           `yaml:"maxConnections" json:"maxConnections"`
	MinConnections  int           `yaml:"minConnections" json:"minConnections"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime" json:"connMaxIdleTime"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	Table           string        `yaml:"table" json:"table"`
	// UseIAM replaces Password with a short-lived Aurora DSQL token.
	UseIAM bool   `yaml:"useIam" json:"useIam"`
	Region string `yaml:"region" json:"region"`
}

// SQLConfig configures the database/sql backend (sqlite, duckdb or mysql).
type SQLConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Table  string `yaml:"table" json:"table"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`
}

// AWSConfig holds the settings common to the AWS-backed stores.
type AWSConfig struct {
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"accessKey" json:"accessKey"`
	SecretKey string `yaml:"secretKey" json:"secretKey"`
}

// S3Config contains S3 bucket settings
type S3Config struct {
	AWSConfig    `yaml:",inline"`
	Bucket       string `yaml:"bucket" json:"bucket"`
	Prefix       string `yaml:"prefix" json:"prefix"`
	UsePathStyle bool   `yaml:"usePathStyle" json:"usePathStyle"`
}

// DynamoDBConfig contains DynamoDB table settings
type DynamoDBConfig struct {
	AWSConfig `yaml:",inline"`
	Table     string `yaml:"table" json:"table"`
}

// EventsConfig configures change-event publishing.
type EventsConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchTimeout time.Duration `yaml:"batchTimeout" json:"batchTimeout"`
}

// ModelConfig binds one schema to a storage backend. Models without an
// entry here use the memory adapter seeded from the schema directory.
type ModelConfig struct {
	ID            string      `yaml:"id" json:"id"`
	Adapter       AdapterKind `yaml:"adapter" json:"adapter"`
	AutoIncrement bool        `yaml:"autoIncrement" json:"autoIncrement"`
	KeyGenerator  string      `yaml:"keyGenerator" json:"keyGenerator"`
	// Path is the JSON file of the file adapter.
	Path string `yaml:"path" json:"path"`
	// Address is the collection URL of the rest adapter.
	Address           string        `yaml:"address" json:"address"`
	Credentials       Credentials   `yaml:"credentials" json:"credentials"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":3000",
			APIPrefix:       "/api",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			AccessLog: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "dataeditor",
		},
		Storage: StorageConfig{
			Postgres: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				SSLMode:         "disable",
				MaxConnections:  10,
				MinConnections:  1,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
				Timeout:         30 * time.Second,
				Table:           "dataeditor_records",
			},
			SQL: SQLConfig{
				Driver: "sqlite",
				DSN:    "file:dataeditor.db",
				Table:  "dataeditor_records",
			},
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "dataeditor",
			},
			DynamoDB: DynamoDBConfig{
				Table: "dataeditor_records",
			},
		},
		Events: EventsConfig{
			Topic:        "dataeditor.changes",
			BatchTimeout: 100 * time.Millisecond,
		},
		SchemaDirectory: "schemas",
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ModelConfig returns the configuration of model id, or a memory-backed default.
func (c *Config) ModelConfig(id string) ModelConfig {
	for _, m := range c.Models {
		if m.ID == id {
			if m.Adapter == "" {
				m.Adapter = AdapterMemory
			}
			return m
		}
	}
	return ModelConfig{ID: id, Adapter: AdapterMemory}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return &ConfigError{Field: "server.address", Message: "must not be empty"}
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return &ConfigError{Field: "server.apiPrefix", Message: "must start with '/'"}
	}
	creds := c.Auth.Credentials
	if (creds.Login == "") != (creds.Password == "") {
		return &ConfigError{Field: "auth.credentials", Message: "login and password must be set together"}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be 'json' or 'console'"}
	}
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return &ConfigError{Field: "events.brokers", Message: "must list at least one broker"}
		}
		if c.Events.Topic == "" {
			return &ConfigError{Field: "events.topic", Message: "must not be empty"}
		}
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d]", i)
		if m.ID == "" {
			return &ConfigError{Field: field + ".id", Message: "must not be empty"}
		}
		if seen[m.ID] {
			return &ConfigError{Field: field + ".id", Message: fmt.Sprintf("duplicate model %s", m.ID)}
		}
		seen[m.ID] = true
		if m.Adapter != "" && !slices.Contains(adapterKinds, m.Adapter) {
			return &ConfigError{Field: field + ".adapter", Message: fmt.Sprintf("unknown adapter %q", m.Adapter)}
		}
		switch m.KeyGenerator {
		case "", KeyGeneratorUUID, KeyGeneratorULID:
		default:
			return &ConfigError{Field: field + ".keyGenerator", Message: fmt.Sprintf("unknown key generator %q", m.KeyGenerator)}
		}
		if err := c.validateAdapter(field, m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateAdapter(field string, m ModelConfig) error {
	switch m.Adapter {
	case AdapterFile:
		if m.Path == "" {
			return &ConfigError{Field: field + ".path", Message: "is required for the file adapter"}
		}
	case AdapterREST:
		if m.Address == "" {
			return &ConfigError{Field: field + ".address", Message: "is required for the rest adapter"}
		}
		if m.RequestsPerSecond < 0 {
			return &ConfigError{Field: field + ".requestsPerSecond", Message: "must not be negative"}
		}
	case AdapterS3:
		if c.Storage.S3.Bucket == "" {
			return &ConfigError{Field: "storage.s3.bucket", Message: "is required for the s3 adapter"}
		}
	case AdapterSQL:
		switch c.Storage.SQL.Driver {
		case "sqlite", "duckdb", "mysql":
		default:
			return &ConfigError{Field: "storage.sql.driver", Message: "must be one of sqlite, duckdb, mysql"}
		}
		if c.Storage.SQL.DSN == "" {
			return &ConfigError{Field: "storage.sql.dsn", Message: "is required for the sql adapter"}
		}
	case AdapterPostgres:
		if c.Storage.Postgres.MaxConnections <= 0 {
			return &ConfigError{Field: "storage.postgres.maxConnections", Message: "must be greater than 0"}
		}
	case AdapterDynamoDB:
		if c.Storage.DynamoDB.Table == "" {
			return &ConfigError{Field: "storage.dynamodb.table", Message: "is required for the dynamodb adapter"}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
