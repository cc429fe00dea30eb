package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/micro-ha/entitycache/internal/logging"
	"github.com/micro-ha/entitycache/internal/model"
)

const (
	defaultHTTPAddr        = ":8099"
	defaultDBPath          = "/data/entitycache.db"
	defaultEventsTransport = TransportSSE
	defaultReconnectDelay  = 5 * time.Second
	defaultRefreshInterval = 30 * time.Second
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

var ErrInvalidTransport = errors.New("invalid events transport")

// Config stores runtime settings loaded from an optional YAML file and
// environment variables. Environment variables win.
type Config struct {
	HTTPAddr        string
	Server          model.ServerConfig
	EventsURL       string
	EventsTransport string
	ReconnectDelay  time.Duration
	RefreshInterval time.Duration
	DBPath          string
	LogLevel        slog.Level
	CacheDisabled   []string
}

type fileConfig struct {
	HTTPAddr string             `yaml:"http_addr"`
	Server   model.ServerConfig `yaml:"server"`
	Events   struct {
		URL            string `yaml:"url"`
		Transport      string `yaml:"transport"`
		ReconnectDelay string `yaml:"reconnect_delay"`
	} `yaml:"events"`
	RefreshInterval string   `yaml:"refresh_interval"`
	DBPath          string   `yaml:"db_path"`
	LogLevel        string   `yaml:"log_level"`
	CacheDisabled   []string `yaml:"cache_disabled"`
}

// Load builds Config from CONFIG_FILE (when set) and environment variables
// using stable defaults.
func Load() (Config, error) {
	return LoadFile(getenv("CONFIG_FILE", ""))
}

// LoadFile is Load with an explicit YAML file path; an empty path skips the
// file.
func LoadFile(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:        defaultHTTPAddr,
		EventsTransport: defaultEventsTransport,
		ReconnectDelay:  defaultReconnectDelay,
		RefreshInterval: defaultRefreshInterval,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
	}
	if path = strings.TrimSpace(path); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Server.Host = getenv("SERVER_URL", cfg.Server.Host)
	cfg.Server.Token = getenv("API_TOKEN", cfg.Server.Token)
	cfg.EventsURL = getenv("EVENTS_URL", cfg.EventsURL)
	cfg.EventsTransport = strings.ToLower(getenv("EVENTS_TRANSPORT", cfg.EventsTransport))
	cfg.ReconnectDelay = parseDuration("RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.RefreshInterval = parseDuration("REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	if raw := getenv("LOG_LEVEL", ""); raw != "" {
		cfg.LogLevel = logging.ParseLevel(raw)
	}
	if raw := getenv("CACHE_DISABLED", ""); raw != "" {
		cfg.CacheDisabled = splitList(raw)
	}

	if cfg.EventsURL == "" {
		cfg.EventsURL = cfg.Server.EventsURL()
	}
	if cfg.EventsTransport != TransportSSE && cfg.EventsTransport != TransportWebSocket {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidTransport, cfg.EventsTransport)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.HTTPAddr != "" {
		c.HTTPAddr = file.HTTPAddr
	}
	c.Server = file.Server
	c.EventsURL = strings.TrimSpace(file.Events.URL)
	if file.Events.Transport != "" {
		c.EventsTransport = strings.ToLower(file.Events.Transport)
	}
	c.ReconnectDelay = durationOr(file.Events.ReconnectDelay, c.ReconnectDelay)
	c.RefreshInterval = durationOr(file.RefreshInterval, c.RefreshInterval)
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.LogLevel != "" {
		c.LogLevel = logging.ParseLevel(file.LogLevel)
	}
	c.CacheDisabled = file.CacheDisabled
	return nil
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

// CacheEnabled reports whether the named collection keeps its fast path.
func (c Config) CacheEnabled(collection string) bool {
	return !slices.Contains(c.CacheDisabled, collection)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return durationOr(raw, fallback)
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
