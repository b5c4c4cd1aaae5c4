package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBName     string `mapstructure:"DB_NAME"`

	InputPath     string `mapstructure:"INPUT_PATH"`
	InputEncoding string `mapstructure:"INPUT_ENCODING"`
	OutputDir     string `mapstructure:"OUTPUT_DIR"`
	BatchSize     int    `mapstructure:"BATCH_SIZE"`

	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Database holds the connection settings handed to the connection factory.
type Database struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     int
	Name     string
}

var defaults = map[string]any{
	"DB_DRIVER":      DriverMySQL,
	"DB_USER":        "root",
	"DB_PASSWORD":    "",
	"DB_HOST":        "localhost",
	"DB_NAME":        "localidades",
	"INPUT_PATH":     "data/localidades.csv",
	"INPUT_ENCODING": "utf-8",
	"OUTPUT_DIR":     "data/processed/localidades_por_provincia",
	"BATCH_SIZE":     1000,
	"SERVER_ADDRESS": ":8080",
	"LOG_LEVEL":      "info",
	"LOG_FORMAT":     "console",
}

// LoadConfig reads configuration from app.env in path (if present) and from
// environment variables, which take precedence over the file.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// DB_PORT has no static default: it depends on the driver.
	if err = v.BindEnv("DB_PORT"); err != nil {
		return config, fmt.Errorf("config: bind DB_PORT: %w", err)
	}
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: unmarshal: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks values that viper cannot type-check on its own.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q (want %q or %q)", c.DBDriver, DriverMySQL, DriverPostgres)
	}
	if c.DBPort < 0 || c.DBPort > 65535 {
		return fmt.Errorf("config: DB_PORT out of range: %d", c.DBPort)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	return nil
}

// Database returns the connection settings, filling in the driver's
// default port when DB_PORT was not given.
func (c Config) Database() Database {
	port := c.DBPort
	if port == 0 {
		port = defaultMySQLPort
		if c.DBDriver == DriverPostgres {
			port = defaultPostgresPort
		}
	}
	return Database{
		Driver:   c.DBDriver,
		User:     c.DBUser,
		Password: c.DBPassword,
		Host:     c.DBHost,
		Port:     port,
		Name:     c.DBName,
	}
}
