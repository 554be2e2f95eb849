package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Auth      AuthConfig
	Store     StoreConfig
	Cache     CacheConfig
	MQTT      MQTTConfig
	Evaluator EvaluatorConfig
	Stock     StockConfig
	Log       LogConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiry     time.Duration
	AdminEmail    string
	AdminPassword string
}

// StoreConfig selects the authoritative device store: "postgres" or "memory".
type StoreConfig struct {
	Driver string
}

// CacheConfig selects where the last-known-good stock snapshot lives:
// "sqlite" or "file".
type CacheConfig struct {
	Driver string
	Path   string
}

type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

type EvaluatorConfig struct {
	Interval      time.Duration
	Workers       int
	DueSoonWindow int
}

type StockConfig struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

type LogConfig struct {
	Environment string
	Level       string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.name", "arcade")
	v.SetDefault("db.user", "arcade")
	v.SetDefault("db.password", "arcade")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.jwt_expiry", "24h")
	v.SetDefault("auth.admin_email", "admin@arcade.local")
	v.SetDefault("auth.admin_password", "admin")

	v.SetDefault("store.driver", "postgres")

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "/data/arcade-cache.db")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "arcade/devices/changed")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("evaluator.interval", "1h")
	v.SetDefault("evaluator.workers", 1)
	v.SetDefault("evaluator.due_soon_window", 7)

	v.SetDefault("stock.refresh_interval", "1m")
	v.SetDefault("stock.fetch_timeout", "10s")

	v.SetDefault("log.environment", "development")
	v.SetDefault("log.level", "")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000")
}

// Load reads configuration from defaults, an optional file and ARCADE_*
// environment variables, in increasing order of precedence. Nested keys map
// to env names by upper-casing and replacing dots, e.g. db.host is
// ARCADE_DB_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetString("server.port"),
		},
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Name:     v.GetString("db.name"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("auth.jwt_secret"),
			JWTExpiry:     v.GetDuration("auth.jwt_expiry"),
			AdminEmail:    v.GetString("auth.admin_email"),
			AdminPassword: v.GetString("auth.admin_password"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
		},
		Cache: CacheConfig{
			Driver: strings.ToLower(v.GetString("cache.driver")),
			Path:   v.GetString("cache.path"),
		},
		MQTT: MQTTConfig{
			Enabled:  v.GetBool("mqtt.enabled"),
			Broker:   v.GetString("mqtt.broker"),
			ClientID: v.GetString("mqtt.client_id"),
			Username: v.GetString("mqtt.username"),
			Password: v.GetString("mqtt.password"),
			Topic:    v.GetString("mqtt.topic"),
			QoS:      byte(v.GetUint("mqtt.qos")),
		},
		Evaluator: EvaluatorConfig{
			Interval:      v.GetDuration("evaluator.interval"),
			Workers:       v.GetInt("evaluator.workers"),
			DueSoonWindow: v.GetInt("evaluator.due_soon_window"),
		},
		Stock: StockConfig{
			RefreshInterval: v.GetDuration("stock.refresh_interval"),
			FetchTimeout:    v.GetDuration("stock.fetch_timeout"),
		},
		Log: LogConfig{
			Environment: v.GetString("log.environment"),
			Level:       v.GetString("log.level"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid store driver %q", c.Store.Driver)
	}
	switch c.Cache.Driver {
	case "sqlite", "file":
	default:
		return fmt.Errorf("invalid cache driver %q", c.Cache.Driver)
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("invalid auth.jwt_expiry %s", c.Auth.JWTExpiry)
	}
	if c.Evaluator.Interval <= 0 {
		return fmt.Errorf("invalid evaluator.interval %s", c.Evaluator.Interval)
	}
	if c.Evaluator.Workers < 1 {
		return fmt.Errorf("evaluator.workers must be at least 1, got %d", c.Evaluator.Workers)
	}
	if c.Evaluator.DueSoonWindow < 1 {
		return fmt.Errorf("evaluator.due_soon_window must be at least 1, got %d", c.Evaluator.DueSoonWindow)
	}
	if c.Stock.RefreshInterval <= 0 || c.Stock.FetchTimeout <= 0 {
		return fmt.Errorf("stock refresh interval and fetch timeout must be positive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt.qos %d", c.MQTT.QoS)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
