package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config wraps the application configuration. It also implements the
// core.RobotConfig contract: robot-scoped parameters live under
// robots.<domain>.<key> and fall back to the same key at top level.
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mailster/")
	v.AddConfigPath("$HOME/.mailster")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("SCENARIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper
// instance. Tests use this with NewEmptyViper.
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values.
func setDefaults(v *viper.Viper) {
	// Scenario resolution defaults
	v.SetDefault("scenario.paths", []string{"/etc/mailster", "./etc"})
	v.SetDefault("scenario.dont_reload", false)

	// Cache defaults
	v.SetDefault("cache.filter_ttl", "1h")
	v.SetDefault("cache.robot_params_ttl", "10s")
	v.SetDefault("cache.cleanup_frequency", "10m")

	// Database defaults (backend for .sql named filters)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.sqlite_path", "/data/mailster.db")
	v.SetDefault("database.mysql_dsn", "user:password@tcp(localhost:3306)/mailster")

	// LDAP defaults (backend for .ldap named filters)
	v.SetDefault("ldap.timeout", "10s")

	// Engine defaults
	v.SetDefault("engine.blacklist_file", "blacklist.txt")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetBool gets a boolean value from the configuration.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration.
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Get returns a robot configuration parameter, per-robot value first, then
// the site-wide value. ok is false when the key is unknown or empty.
func (c *Config) Get(robot, key string) (string, bool) {
	if robot != "" {
		robotKey := "robots." + robot + "." + key
		if c.v.IsSet(robotKey) {
			val := c.v.GetString(robotKey)
			return val, val != ""
		}
	}
	if c.v.IsSet(key) {
		val := c.v.GetString(key)
		return val, val != ""
	}
	return "", false
}

// Listmasters returns the listmaster addresses configured for the robot,
// falling back to the site-wide listmasters.
func (c *Config) Listmasters(robot string) []string {
	if robot != "" {
		robotKey := "robots." + robot + ".listmasters"
		if c.v.IsSet(robotKey) {
			return c.v.GetStringSlice(robotKey)
		}
	}
	return c.v.GetStringSlice("listmasters")
}
