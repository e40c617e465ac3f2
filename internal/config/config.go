// Package config loads recman settings from a YAML file, RECMAN_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "recman"
	configFileType = "yaml"
	envPrefix      = "RECMAN"

	KeyBackend      = "backend"
	KeyDatabasePath = "database.path"
	KeyDatabaseDSN  = "database.dsn"
	KeySchemaDir    = "schema.dir"
	KeyLogLevel     = "log.level"
	KeyOutputFormat = "output.format"
)

// Backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the resolved configuration.
type Config struct {
	Backend  string         `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Log      LogConfig      `mapstructure:"log"`
	Output   OutputConfig   `mapstructure:"output"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // sqlite file
	DSN  string `mapstructure:"dsn"`  // postgres connection string
}

type SchemaConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// FlagBindings maps config keys to the flag names that override them.
var FlagBindings = map[string]string{
	KeyDatabasePath: "db",
	KeySchemaDir:    "schema",
	KeyOutputFormat: "format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendSQLite)
	v.SetDefault(KeyDatabasePath, "recman.db")
	v.SetDefault(KeyDatabaseDSN, "")
	v.SetDefault(KeySchemaDir, "schema")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyOutputFormat, "text")
}

// Load resolves configuration.
//
// When path is empty, recman.yaml is looked up in the working directory and
// a missing file is not an error. An explicit path must exist. Flags in
// flags that were set on the command line override file and environment.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for key, name := range FlagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("config: %s is required for the sqlite backend", KeyDatabasePath)
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("config: %s is required for the postgres backend", KeyDatabaseDSN)
		}
	default:
		return fmt.Errorf("config: invalid %s %q: must be %s or %s", KeyBackend, c.Backend, BackendSQLite, BackendPostgres)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid %s %q: must be text or json", KeyOutputFormat, c.Output.Format)
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", KeyLogLevel, s, err)
	}
	return l, nil
}

// Level returns the configured log level. Validate has already checked it.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.Log.Level)
	return l
}
