package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPath = "config.toml"
	PathEnvVar  = "MOVIESYNC_CONFIG"
	envPrefix   = "MOVIESYNC_"
)

var ErrMissingField = errors.New("missing required config field")

type Config struct {
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Database DatabaseConfig `koanf:"database"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Log      LogConfig      `koanf:"log"`
}

type TMDBConfig struct {
	Token         Secret        `koanf:"token"`
	APIBaseURL    string        `koanf:"api_base_url"`
	ExportBaseURL string        `koanf:"export_base_url"`
	Timeout       time.Duration `koanf:"timeout"`
}

type DatabaseConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	User          string        `koanf:"user"`
	Password      Secret        `koanf:"password"`
	Name          string        `koanf:"name"`
	SSLMode       string        `koanf:"sslmode"`
	MaxConns      int32         `koanf:"max_conns"`
	WatchInterval time.Duration `koanf:"watch_interval"`
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password.Reveal()),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type PipelineConfig struct {
	// QueueSize is the capacity of the channel between fetcher and writer.
	QueueSize int `koanf:"queue_size"`
	// Drain makes the run wait for the writer to persist every queued packet.
	Drain bool `koanf:"drain"`
	// MaxMovies limits how many exported ids are processed; 0 means all.
	MaxMovies int `koanf:"max_movies"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() Config {
	return Config{
		TMDB: TMDBConfig{
			APIBaseURL:    "https://api.themoviedb.org",
			ExportBaseURL: "http://files.tmdb.org",
			Timeout:       30 * time.Second,
		},
		Database: DatabaseConfig{
			Port:          5432,
			Name:          "postgres",
			SSLMode:       "disable",
			MaxConns:      4,
			WatchInterval: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			QueueSize: 50,
			Drain:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// legacyKeys maps the flat keys of the original config.toml onto nested keys.
var legacyKeys = map[string]string{
	"token":             "tmdb.token",
	"postgres_host":     "database.host",
	"postgres_user":     "database.user",
	"postgres_password": "database.password",
}

var sections = map[string]bool{"tmdb": true, "database": true, "pipeline": true, "log": true}

// Load reads the config file named by MOVIESYNC_CONFIG, or config.toml in the
// working directory.
func Load() (*Config, error) {
	path := os.Getenv(PathEnvVar)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile layers defaults, the given file and MOVIESYNC_* environment variables.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := mergeLayer(k, fk); err != nil {
		return nil, err
	}

	ek := koanf.New(".")
	if err := ek.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := mergeLayer(k, ek); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// mergeLayer rewrites legacy flat keys onto their nested keys within one layer,
// then merges the layer over k.
func mergeLayer(k, layer *koanf.Koanf) error {
	for flat, nested := range legacyKeys {
		if !layer.Exists(flat) {
			continue
		}
		if err := layer.Set(nested, layer.Get(flat)); err != nil {
			return fmt.Errorf("failed to set %s: %w", nested, err)
		}
		layer.Delete(flat)
	}
	return k.Merge(layer)
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

// envKey turns MOVIESYNC_PIPELINE_QUEUE_SIZE into pipeline.queue_size and
// MOVIESYNC_POSTGRES_HOST into the legacy key postgres_host.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if ok && sections[section] {
		return section + "." + rest
	}
	return key
}

func (c *Config) Validate() error {
	var errs []error
	if c.TMDB.Token == "" {
		errs = append(errs, fmt.Errorf("%w: tmdb.token", ErrMissingField))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("%w: database.host", ErrMissingField))
	}
	if c.Database.User == "" {
		errs = append(errs, fmt.Errorf("%w: database.user", ErrMissingField))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port out of range: %d", c.Database.Port))
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("database.max_conns must be at least 1, got %d", c.Database.MaxConns))
	}
	if c.Database.WatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("database.watch_interval must be positive, got %s", c.Database.WatchInterval))
	}
	if c.Pipeline.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size must be at least 1, got %d", c.Pipeline.QueueSize))
	}
	if c.Pipeline.MaxMovies < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_movies must not be negative, got %d", c.Pipeline.MaxMovies))
	}
	return errors.Join(errs...)
}
