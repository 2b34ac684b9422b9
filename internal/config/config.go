package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendPostgres}

type Config struct {
	// HTTP server
	Port               string
	AppEnv             string
	LogLevel           string
	RateLimitRPM       int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; an empty URL disables expense events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	AnalyticsCacheTTL time.Duration
}

// NewViper returns a viper instance with every default set and environment
// variables bound by upper-cased key.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("port", "5000")
	v.SetDefault("app_env", EnvProduction)
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit_rpm", 120)
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("data_backend", BackendSQLite)
	v.SetDefault("sqlite_db_path", "./data/budget.db")
	v.SetDefault("database_url", "")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "budget")
	v.SetDefault("amqp_queue", "expense_events")
	v.SetDefault("analytics_cache_ttl", "1m")
	v.AutomaticEnv()
	return v
}

// BindFlags registers --port, --backend and --db on fs and binds them to v.
// A flag set on the command line wins over the environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("port", "", "HTTP listen port (env PORT)")
	fs.String("backend", "", "storage backend: memory, sqlite or postgres (env DATA_BACKEND)")
	fs.String("db", "", "SQLite database path (env SQLITE_DB_PATH)")

	for key, flag := range map[string]string{
		"port":           "port",
		"data_backend":   "backend",
		"sqlite_db_path": "db",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads an optional .env file and the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromViper(NewViper())
}

func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:               v.GetString("port"),
		AppEnv:             strings.ToLower(v.GetString("app_env")),
		LogLevel:           v.GetString("log_level"),
		RateLimitRPM:       v.GetInt("rate_limit_rpm"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
		DataBackend:        strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath:       v.GetString("sqlite_db_path"),
		DatabaseURL:        v.GetString("database_url"),
		AMQPURL:            v.GetString("amqp_url"),
		AMQPExchange:       v.GetString("amqp_exchange"),
		AMQPQueue:          v.GetString("amqp_queue"),
		AnalyticsCacheTTL:  v.GetDuration("analytics_cache_ttl"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Diagnostic reports whether internal error detail may be exposed to clients.
func (c *Config) Diagnostic() bool {
	return c.AppEnv == EnvDevelopment
}

// EventsEnabled reports whether an AMQP broker is configured.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate returns every configuration problem in a single error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction && c.AppEnv != "test" {
		errors = append(errors, fmt.Sprintf("invalid app env '%s': must be development, production or test", c.AppEnv))
	}

	isValidBackend := false
	for _, b := range validBackends {
		if c.DataBackend == b {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		errors = append(errors, "CORS allowed origins cannot be empty (use '*' to allow all)")
	}
	if c.AnalyticsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid analytics cache TTL %v: must not be negative", c.AnalyticsCacheTTL))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
