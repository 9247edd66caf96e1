package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		PublicHost      string `yaml:"publicHost"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		DefaultTimePerQuestion int `yaml:"defaultTimePerQuestion"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML config and fills defaults.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.PublicHost == "" {
		cfg.Server.PublicHost = "localhost:5000"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Quiz.DefaultTimePerQuestion <= 0 {
		cfg.Quiz.DefaultTimePerQuestion = 30
	}
}

// Validate checks the store driver has what it needs.
func (cfg Config) Validate() error {
	switch cfg.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("redis driver needs redis.addr")
		}
	case DriverPostgres:
		if cfg.Postgres.URL == "" {
			return errors.New("postgres driver needs postgres.url")
		}
	default:
		return errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

// ShutdownTimeout is how long in-flight requests get on shutdown.
func (cfg Config) ShutdownTimeout() time.Duration {
	return Duration(cfg.Server.ShutdownTimeout, 5*time.Second)
}

// Logger builds the process logger from the log section.
func (cfg Config) Logger() *logrus.Logger {
	return cfg.LoggerTo(os.Stderr)
}

func (cfg Config) LoggerTo(out io.Writer) *logrus.Logger {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	var formatter logrus.Formatter = new(logrus.TextFormatter)
	if strings.EqualFold(cfg.Log.Format, "json") {
		formatter = new(logrus.JSONFormatter)
	}
	return &logrus.Logger{
		Out:       out,
		Formatter: formatter,
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
