package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ISUPIPE_"

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Config struct {
	ServerAddr       string         `koanf:"server_addr"`
	AllowedOrigins   []string       `koanf:"allowed_origins"`
	SigningSecret    string         `koanf:"signing_secret"`
	SessionTTL       time.Duration  `koanf:"session_ttl"`
	FallbackIconPath string         `koanf:"fallback_icon_path"`
	MigrateOnStart   bool           `koanf:"migrate_on_start"`
	Database         DatabaseConfig `koanf:"database"`
	Log              LogConfig      `koanf:"log"`

	// SigningKey is the decoded SigningSecret.
	SigningKey []byte `koanf:"-"`
}

func Default() Config {
	return Config{
		ServerAddr:       "localhost:8080",
		AllowedOrigins:   []string{},
		SessionTTL:       time.Hour,
		FallbackIconPath: "img/NoImage.jpg",
		Database: DatabaseConfig{
			DSN:             "host=localhost user=isucon password=isucon dbname=isupipe sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKeys maps ISUPIPE_* variables, minus the prefix and lowercased, to
// config paths.
var envKeys = map[string]string{
	"server_addr":                "server_addr",
	"allowed_origins":            "allowed_origins",
	"signing_secret":             "signing_secret",
	"session_ttl":                "session_ttl",
	"fallback_icon_path":         "fallback_icon_path",
	"migrate_on_start":           "migrate_on_start",
	"database_dsn":               "database.dsn",
	"database_max_open_conns":    "database.max_open_conns",
	"database_max_idle_conns":    "database.max_idle_conns",
	"database_conn_max_lifetime": "database.conn_max_lifetime",
	"log_level":                  "log.level",
	"log_format":                 "log.format",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if path, ok := envKeys[key]; ok {
		return path
	}
	// Unknown variables are dropped.
	return ""
}

// envValue maps a variable to its config path and splits comma-separated
// lists.
func envValue(key, value string) (string, interface{}) {
	path := envTransform(key)
	if path == "allowed_origins" {
		origins := []string{}
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return path, origins
	}

	return path, value
}

// Load layers defaults, the optional YAML file at path and ISUPIPE_*
// environment variables, in that order, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewConfig builds a validated config from the essential settings, with
// defaults for everything else.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	cfg := Default()
	cfg.ServerAddr = serverAddr
	cfg.Database.DSN = databaseDSN
	cfg.SigningSecret = base64Secret
	cfg.AllowedOrigins = allowedOrigins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required settings and decodes the signing secret into
// SigningKey.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.FallbackIconPath == "" {
		return fmt.Errorf("fallback icon path cannot be empty")
	}

	signingKey, err := decodeSigningSecret(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	return nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}

	return key, nil
}
