// Package config loads weft settings from a YAML file and WEFT_*
// environment variables.
//
// Lookup order: an explicit path given by the caller, then ./weft.yaml,
// then ~/.weft/weft.yaml. Environment variables override file values
// (WEFT_API_KEY, WEFT_STORE_KIND, ...). No config file at all is fine;
// defaults and environment carry the day.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	// Backend selects the completion backend: openai, anthropic,
	// cohere, ollama, or gemini.
	Backend string `mapstructure:"backend"`
	// Model overrides the backend's default model.
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// StoreConfig selects and parameterizes the template store.
type StoreConfig struct {
	// Kind is one of memory, dir, redis, postgres, or s3.
	Kind string `mapstructure:"kind"`
	// Dir is the root directory for the dir store.
	Dir string `mapstructure:"dir"`
	// DSN is the connection string for the postgres store.
	DSN string `mapstructure:"dsn"`
	// Addr is the host:port for the redis store.
	Addr string `mapstructure:"addr"`
	// Bucket and Prefix locate the s3 store.
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// storeKinds lists the accepted StoreConfig.Kind values.
var storeKinds = []string{"memory", "dir", "redis", "postgres", "s3"}

// Load reads the configuration. An empty path falls back to the search
// path; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults double as the key registry: AutomaticEnv only surfaces
	// keys viper already knows about.
	v.SetDefault("backend", "openai")
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.dir", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.addr", "")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.prefix", "")
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("weft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".weft"))
		}
	}

	v.SetEnvPrefix("WEFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	ok := false
	for _, kind := range storeKinds {
		if c.Store.Kind == kind {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("config: unknown store kind %q (want one of %s)", c.Store.Kind, strings.Join(storeKinds, ", "))
	}
	switch c.Store.Kind {
	case "dir":
		if c.Store.Dir == "" {
			return fmt.Errorf("config: store.dir required for the dir store")
		}
	case "redis":
		if c.Store.Addr == "" {
			return fmt.Errorf("config: store.addr required for the redis store")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn required for the postgres store")
		}
	case "s3":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config: store.bucket required for the s3 store")
		}
	}
	return nil
}
