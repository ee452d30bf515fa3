package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds all database configuration
type DatabaseConfig struct {
	Driver         string         `yaml:"driver"`
	MySQL          MySQLConfig    `yaml:"mysql"`
	PostgreSQL     PostgresConfig `yaml:"postgres"`
	SQLite         SQLiteConfig   `yaml:"sqlite"`
	ConnectionPool PoolConfig     `yaml:"connection_pool"`
}

// MySQLConfig holds MySQL specific configuration
type MySQLConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// MigrationConfig holds migration specific configuration
type MigrationConfig struct {
	AutoMigrate bool `yaml:"auto_migrate"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	LogFile      string `yaml:"log_file"`
	LogToConsole bool   `yaml:"log_to_console"`
	LogLevel     string `yaml:"log_level"`
}

// DashboardConfig holds the power input gate and history settings
type DashboardConfig struct {
	PowerMin          float64 `yaml:"power_min"`
	PowerMax          float64 `yaml:"power_max"`
	HistoryLimit      int     `yaml:"history_limit"`
	DefaultExportName string  `yaml:"default_export_name"`
	ChartWidth        int     `yaml:"chart_width"`
	ChartHeight       int     `yaml:"chart_height"`
}

// ServerConfig holds the HTTP surface configuration
type ServerConfig struct {
	Address                string `yaml:"address"`
	SessionLifetimeMinutes int    `yaml:"session_lifetime_minutes"`
}

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns a configuration usable without any config file.
// The database sink is left unconfigured.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified YAML file.
// A missing file at the default path is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.LogFile == "" {
		c.Logging.LogFile = "result.log"
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = "info"
	}
	if c.Dashboard.PowerMin == 0 && c.Dashboard.PowerMax == 0 {
		c.Dashboard.PowerMin = -150
		c.Dashboard.PowerMax = 150
	}
	if c.Dashboard.HistoryLimit <= 0 {
		c.Dashboard.HistoryLimit = 5
	}
	if c.Dashboard.DefaultExportName == "" {
		c.Dashboard.DefaultExportName = "power_data"
	}
	if c.Dashboard.ChartWidth <= 0 {
		c.Dashboard.ChartWidth = 1024
	}
	if c.Dashboard.ChartHeight <= 0 {
		c.Dashboard.ChartHeight = 480
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.SessionLifetimeMinutes <= 0 {
		c.Server.SessionLifetimeMinutes = 12 * 60
	}
}

// applyEnv overrides values from POWERDASH_* environment variables
func (c *Config) applyEnv() {
	if v := os.Getenv("POWERDASH_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("POWERDASH_SQLITE_PATH"); v != "" {
		c.Database.SQLite.Path = v
	}
	if v := os.Getenv("POWERDASH_MYSQL_PASSWORD"); v != "" {
		c.Database.MySQL.Password = v
	}
	if v := os.Getenv("POWERDASH_POSTGRES_PASSWORD"); v != "" {
		c.Database.PostgreSQL.Password = v
	}
	if v := os.Getenv("POWERDASH_LOG_LEVEL"); v != "" {
		c.Logging.LogLevel = v
	}
	if v := os.Getenv("POWERDASH_LOG_FILE"); v != "" {
		c.Logging.LogFile = v
	}
	if v := os.Getenv("POWERDASH_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("POWERDASH_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dashboard.HistoryLimit = n
		}
	}
}

// DatabaseEnabled reports whether a database export sink is configured
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Driver != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "":
	case "mysql":
		if c.Database.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if c.Database.MySQL.User == "" {
			return fmt.Errorf("mysql user is required")
		}
		if c.Database.MySQL.DBName == "" {
			return fmt.Errorf("mysql database name is required")
		}
	case "postgres":
		if c.Database.PostgreSQL.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Database.PostgreSQL.User == "" {
			return fmt.Errorf("postgres user is required")
		}
		if c.Database.PostgreSQL.DBName == "" {
			return fmt.Errorf("postgres database name is required")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Dashboard.PowerMin >= c.Dashboard.PowerMax {
		return fmt.Errorf("power_min (%g) must be below power_max (%g)", c.Dashboard.PowerMin, c.Dashboard.PowerMax)
	}

	switch c.Logging.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Logging.LogLevel)
	}

	return nil
}

// GetDSN returns the database connection string based on the configured driver
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "mysql":
		mysql := c.Database.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
			mysql.User, mysql.Password, mysql.Host, mysql.Port, mysql.DBName,
			mysql.Charset, mysql.ParseTime, mysql.Loc)
		return dsn
	case "postgres":
		pg := c.Database.PostgreSQL
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode, pg.TimeZone)
		return dsn
	case "sqlite":
		return c.Database.SQLite.Path
	default:
		return ""
	}
}
