package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	State     StateConfig     `yaml:"state"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Records   RecordsConfig   `yaml:"records"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort int    `yaml:"rest_port"`
	WWWRoot  string `yaml:"www_root"`
}

type GameConfig struct {
	MapsFile             string `yaml:"maps_file"`
	TickPeriodMs         int    `yaml:"tick_period_ms"`
	RandomizeSpawnPoints bool   `yaml:"randomize_spawn_points"`
	MaxDogsPerSession    int    `yaml:"max_dogs_per_session"`
}

type StateConfig struct {
	Backend      string `yaml:"backend"` // file | badger | redis | memory
	Path         string `yaml:"path"`
	SavePeriodMs int    `yaml:"save_period_ms"`
	Compress     bool   `yaml:"compress"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisKey     string `yaml:"redis_key"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type RecordsConfig struct {
	Backend  string `yaml:"backend"` // memory | mariadb | mongo
	DSN      string `yaml:"dsn"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTLMin  int    `yaml:"token_ttl_minutes"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8080)
}

// TickPeriod - период автоматических тиков; 0 - ручной режим
func (g *GameConfig) TickPeriod() time.Duration {
	return time.Duration(g.TickPeriodMs) * time.Millisecond
}

// SavePeriod - период автосохранения в игровом времени
func (s *StateConfig) SavePeriod() time.Duration {
	return time.Duration(s.SavePeriodMs) * time.Millisecond
}

// RetentionPeriod - время хранения событий в стриме
func (e *EventBusConfig) RetentionPeriod() time.Duration {
	if e.Retention <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.Retention) * time.Hour
}

// TokenTTL - время жизни токена администратора
func (a *AdminConfig) TokenTTL() time.Duration {
	if a.TokenTTLMin <= 0 {
		return time.Hour
	}
	return time.Duration(a.TokenTTLMin) * time.Minute
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.State.Backend == "" {
		c.State.Backend = "file"
		if c.State.Path == "" {
			c.State.Backend = "memory"
		}
	}
	if c.State.RedisAddr == "" {
		c.State.RedisAddr = "localhost:6379"
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = "DOGS"
	}
	if c.Records.Backend == "" {
		c.Records.Backend = "memory"
	}
	if c.Records.MongoDB == "" {
		c.Records.MongoDB = "dogs"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "dog-gatherer"
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if secret := os.Getenv("GAME_JWT_SECRET"); secret != "" && c.Admin.JWTSecret == "" {
		c.Admin.JWTSecret = secret
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "badger":
		if c.State.Path == "" {
			return fmt.Errorf("state.path обязателен для бэкенда %s", c.State.Backend)
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("неизвестный бэкенд состояния: %q", c.State.Backend)
	}

	switch c.Records.Backend {
	case "memory":
	case "mariadb":
		if c.Records.DSN == "" {
			return fmt.Errorf("records.dsn обязателен для mariadb")
		}
	case "mongo":
		if c.Records.MongoURI == "" {
			return fmt.Errorf("records.mongo_uri обязателен для mongo")
		}
	default:
		return fmt.Errorf("неизвестный бэкенд рекордов: %q", c.Records.Backend)
	}

	if c.Game.TickPeriodMs < 0 || c.State.SavePeriodMs < 0 {
		return fmt.Errorf("периоды не могут быть отрицательными")
	}
	return nil
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
