package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Roles       RolesConfig       `mapstructure:"roles"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Functions   FunctionsConfig   `mapstructure:"functions"`
	Admin       AdminConfig       `mapstructure:"admin"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig holds Redis configuration. Without Redis, role changes reach
// other sessions by polling only.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
	RefreshHours    int    `mapstructure:"refresh_hours"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// RolesConfig tunes role caching, propagation and the accounts with fixed privileges
type RolesConfig struct {
	CacheTTL         time.Duration     `mapstructure:"cache_ttl"`
	PollInterval     time.Duration     `mapstructure:"poll_interval"`
	MinFetchInterval time.Duration     `mapstructure:"min_fetch_interval"`
	UpdateTimeout    time.Duration     `mapstructure:"update_timeout"`
	BreakGlassEmails []string          `mapstructure:"break_glass_emails"`
	PinnedAccounts   []PinnedAccount   `mapstructure:"pinned_accounts"`
}

// PinnedAccount forces an account to a fixed role. Emails contain dots, which
// viper treats as key separators, so accounts are a list rather than a map.
type PinnedAccount struct {
	Email string `mapstructure:"email"`
	Role  string `mapstructure:"role"`
}

// PinnedMap returns the pinned accounts keyed by email
func (c *RolesConfig) PinnedMap() map[string]string {
	out := make(map[string]string, len(c.PinnedAccounts))
	for _, a := range c.PinnedAccounts {
		out[a.Email] = a.Role
	}
	return out
}

// PermissionsConfig tunes permission checks
type PermissionsConfig struct {
	FailOpen bool          `mapstructure:"fail_open"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// FunctionsConfig points at the privileged role functions
type FunctionsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AdminConfig is the account created on first start
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/camwatch")

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 60)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "camwatch")
	viper.SetDefault("database.password", "camwatch")
	viper.SetDefault("database.dbname", "camwatch")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 20)

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel_prefix", "camwatch:roles:")

	// JWT defaults
	viper.SetDefault("jwt.secret", "your-super-secret-key-change-in-production")
	viper.SetDefault("jwt.expiration_hours", 24)
	viper.SetDefault("jwt.refresh_hours", 168)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", true)

	// Role defaults
	viper.SetDefault("roles.cache_ttl", 30*time.Second)
	viper.SetDefault("roles.poll_interval", 30*time.Second)
	viper.SetDefault("roles.min_fetch_interval", 5*time.Second)
	viper.SetDefault("roles.update_timeout", 10*time.Second)
	viper.SetDefault("roles.break_glass_emails", []string{})

	// Permission defaults
	viper.SetDefault("permissions.fail_open", false)
	viper.SetDefault("permissions.cache_ttl", 30*time.Second)

	// Function defaults
	viper.SetDefault("functions.base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("functions.timeout", 8*time.Second)

	// Admin defaults
	viper.SetDefault("admin.email", "admin@camwatch.local")
	viper.SetDefault("admin.password", "ChangeMe!2024")
	viper.SetDefault("admin.name", "Admin")
}

func (c *Config) validate() error {
	if c.Roles.CacheTTL <= 0 {
		return fmt.Errorf("roles.cache_ttl must be positive")
	}
	if c.Roles.PollInterval <= 0 {
		return fmt.Errorf("roles.poll_interval must be positive")
	}
	if c.Roles.UpdateTimeout <= 0 {
		return fmt.Errorf("roles.update_timeout must be positive")
	}
	if c.Permissions.CacheTTL <= 0 {
		return fmt.Errorf("permissions.cache_ttl must be positive")
	}
	for _, a := range c.Roles.PinnedAccounts {
		if a.Email == "" || a.Role == "" {
			return fmt.Errorf("roles.pinned_accounts entries need email and role")
		}
	}
	return nil
}

// DSN returns PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL returns the Redis connection URL
func (c *RedisConfig) URL() string {
	return fmt.Sprintf("redis://%s/%d", c.Addr(), c.DB)
}

// Addr returns server address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
