// Package config loads the monitor's operational settings from an optional
// .env file, an optional YAML file and the environment. The camera
// identification is compiled in and not configurable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultDumpPath  = "pw-dump"
	DefaultMQTTTopic = "camera-led"
)

// Config represents the configuration file structure
type Config struct {
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	DumpPath   string `yaml:"pw_dump_path"`
	StatusAddr string `yaml:"status_addr"`
	MQTTBroker string `yaml:"mqtt_broker"`
	MQTTTopic  string `yaml:"mqtt_topic"`
	ReadOnly   bool   `yaml:"read_only"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		DumpPath:  DefaultDumpPath,
		MQTTTopic: DefaultMQTTTopic,
	}
}

// Loader reads configuration. The lookup function defaults to
// os.LookupEnv and is replaced in tests.
type Loader struct {
	envFiles []string
	lookup   func(string) (string, bool)
	logger   *zap.Logger
}

// NewLoader creates a new configuration loader. envFiles are passed to
// godotenv; with none, ./.env is tried.
func NewLoader(logger *zap.Logger, envFiles ...string) *Loader {
	return &Loader{
		envFiles: envFiles,
		lookup:   os.LookupEnv,
		logger:   logger,
	}
}

// Load builds the configuration: defaults, then the CONFIG_FILE YAML, then
// environment variables.
func (l *Loader) Load() (*Config, error) {
	if err := godotenv.Load(l.envFiles...); err != nil {
		l.logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := Default()

	if path, ok := l.lookup("CONFIG_FILE"); ok && path != "" {
		if err := l.loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *Config) error {
	l.logger.Debug("Loading config file", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":    &cfg.LogLevel,
		"LOG_FORMAT":   &cfg.LogFormat,
		"PW_DUMP_PATH": &cfg.DumpPath,
		"STATUS_ADDR":  &cfg.StatusAddr,
		"MQTT_BROKER":  &cfg.MQTTBroker,
		"MQTT_TOPIC":   &cfg.MQTTTopic,
	}
	for key, dst := range strs {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := l.lookup("READ_ONLY"); ok && v != "" {
		readOnly, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid READ_ONLY value %q: %w", v, err)
		}
		cfg.ReadOnly = readOnly
	}
	return nil
}

// Validate checks the values that have a fixed set of choices
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q: want json or console", c.LogFormat)
	}
	if c.DumpPath == "" {
		return fmt.Errorf("pw-dump path must not be empty")
	}
	if c.MQTTTopic == "" {
		return fmt.Errorf("mqtt topic must not be empty")
	}
	return nil
}
