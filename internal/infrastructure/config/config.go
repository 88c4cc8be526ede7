package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config is the attribute service configuration, read from .env.<env>
// files and the process environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	DynamoDB DynamoDBConfig
	Log      LogConfig
}

// ServerConfig holds the gRPC and metrics listeners
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int
}

// CacheConfig configures the attribute registry snapshot cache
type CacheConfig struct {
	Enabled        bool
	MaxMemoryBytes int64
	Metrics        bool
	TTLMinutes     int
}

// TTL returns the snapshot staleness bound, zero for the registry default
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// DatabaseConfig selects and addresses the SQL store
type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Path     string // SQLite file
}

// DynamoDBConfig configures the optional attribute value mirror
type DynamoDBConfig struct {
	Enabled   bool
	Region    string
	Table     string
	AccessKey string
	SecretKey string
	Endpoint  string // e.g. DynamoDB Local
}

// LogConfig configures the zap logger
type LogConfig struct {
	JSON  bool
	Level string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrInvalidConfig marks every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// findProjectRoot walks up from the working directory to the nearest go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig points viper at .env.<env> in the project root and installs the
// defaults. A missing file is not an error; the environment wins over both.
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	root, err := findProjectRoot()
	if err != nil {
		return errors.Wrap(err, "failed to find project root")
	}

	viper.SetConfigName(".env." + env)
	viper.SetConfigType("env")
	viper.AddConfigPath(root)
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()

	for key, value := range defaults(root) {
		viper.SetDefault(key, value)
	}
	return nil
}

func defaults(root string) map[string]interface{} {
	return map[string]interface{}{
		"SERVER_HOST":  "0.0.0.0",
		"SERVER_PORT":  50051,
		"METRICS_PORT": 9090,

		"DB_DRIVER":  DriverPostgres,
		"DB_HOST":    "localhost",
		"DB_PORT":    15432,
		"DB_USER":    "astudio",
		"DB_NAME":    "astudio_dev",
		"DB_SSLMODE": "disable",
		"DB_PATH":    filepath.Join(root, "data", "astudio.db"),

		"CACHE_ENABLED":          true,
		"CACHE_MAX_MEMORY_BYTES": 10 << 20,
		"CACHE_METRICS":          true,
		"CACHE_TTL_MINUTES":      5,

		"DYNAMODB_ENABLED": false,
		"DYNAMODB_REGION":  "us-east-1",
		"DYNAMODB_TABLE":   "attribute_values",

		"LOG_JSON":  false,
		"LOG_LEVEL": "info",
	}
}

// Load builds a Config from viper and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server:   loadServer(),
		Database: loadDatabase(),
		Cache:    loadCache(),
		DynamoDB: loadDynamoDB(),
		Log: LogConfig{
			JSON:  viper.GetBool("LOG_JSON"),
			Level: viper.GetString("LOG_LEVEL"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadServer() ServerConfig {
	return ServerConfig{
		Host:        viper.GetString("SERVER_HOST"),
		Port:        viper.GetInt("SERVER_PORT"),
		MetricsPort: viper.GetInt("METRICS_PORT"),
	}
}

func loadDatabase() DatabaseConfig {
	driver := strings.ToLower(strings.TrimSpace(viper.GetString("DB_DRIVER")))
	if driver == "" {
		driver = DriverPostgres
	}
	return DatabaseConfig{
		Driver:   driver,
		Host:     viper.GetString("DB_HOST"),
		Port:     viper.GetInt("DB_PORT"),
		User:     viper.GetString("DB_USER"),
		Password: viper.GetString("DB_PASSWORD"),
		Database: viper.GetString("DB_NAME"),
		SSLMode:  viper.GetString("DB_SSLMODE"),
		Path:     viper.GetString("DB_PATH"),
	}
}

func loadCache() CacheConfig {
	return CacheConfig{
		Enabled:        viper.GetBool("CACHE_ENABLED"),
		MaxMemoryBytes: viper.GetInt64("CACHE_MAX_MEMORY_BYTES"),
		Metrics:        viper.GetBool("CACHE_METRICS"),
		TTLMinutes:     viper.GetInt("CACHE_TTL_MINUTES"),
	}
}

func loadDynamoDB() DynamoDBConfig {
	return DynamoDBConfig{
		Enabled:   viper.GetBool("DYNAMODB_ENABLED"),
		Region:    viper.GetString("DYNAMODB_REGION"),
		Table:     viper.GetString("DYNAMODB_TABLE"),
		AccessKey: viper.GetString("DYNAMODB_ACCESS_KEY"),
		SecretKey: viper.GetString("DYNAMODB_SECRET_KEY"),
		Endpoint:  viper.GetString("DYNAMODB_ENDPOINT"),
	}
}

// Validate reports the first setting that cannot work, marked ErrInvalidConfig
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Mark(errors.Newf(format, args...), ErrInvalidConfig)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return errors.WithHint(invalid("DB_PASSWORD is required for postgres"),
				"set it in the environment or the .env file")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return invalid("DB_PATH is required for sqlite")
		}
	default:
		return invalid("unsupported DB_DRIVER %q (want %s or %s)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}

	if !validPort(c.Server.Port) {
		return invalid("SERVER_PORT %d out of range", c.Server.Port)
	}
	if !validPort(c.Server.MetricsPort) {
		return invalid("METRICS_PORT %d out of range", c.Server.MetricsPort)
	}
	if c.Server.Port == c.Server.MetricsPort {
		return invalid("SERVER_PORT and METRICS_PORT must differ (both %d)", c.Server.Port)
	}

	if c.Cache.TTLMinutes < 0 {
		return invalid("CACHE_TTL_MINUTES must not be negative")
	}
	if c.Cache.Enabled && c.Cache.MaxMemoryBytes <= 0 {
		return invalid("CACHE_MAX_MEMORY_BYTES must be positive when the cache is enabled")
	}

	if c.DynamoDB.Enabled && (c.DynamoDB.Table == "" || c.DynamoDB.Region == "") {
		return invalid("DYNAMODB_TABLE and DYNAMODB_REGION are required when DynamoDB is enabled")
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// ConnectionString returns the lib/pq keyword/value DSN
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
