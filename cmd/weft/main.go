// Command weft manages versioned prompt templates and invokes them
// against completion backends.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/klejdi94/weft/backend"
	"github.com/klejdi94/weft/config"
	"github.com/klejdi94/weft/registry"
	"github.com/klejdi94/weft/registry/s3blob"
	"github.com/klejdi94/weft/runlog"
)

var (
	cfgPath   string
	storeKind string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "weft",
	Short:         "Versioned prompt templates and completion backends",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if storeKind != "" {
			loaded.Store.Kind = storeKind
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		logger = newLogger(cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: ./weft.yaml, ~/.weft/weft.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "template store kind (memory, dir, redis, postgres, s3)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "weft:", err)
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// openStore builds the template store selected by the config. The
// returned func releases the underlying connection, if any.
func openStore(ctx context.Context) (registry.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Kind {
	case "memory":
		return registry.NewMemory(), noop, nil
	case "dir":
		store, err := registry.NewDir(cfg.Store.Dir)
		return store, noop, err
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.Addr})
		return registry.NewRedis(client, cfg.Store.Prefix), func() { client.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store, err := registry.NewPostgres(db, "")
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	case "s3":
		blobs, err := s3blob.NewFromConfig(ctx, cfg.Store.Bucket, "")
		if err != nil {
			return nil, nil, fmt.Errorf("s3: %w", err)
		}
		return registry.NewBlob(blobs, cfg.Store.Prefix), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}

// openRunlog builds the run log store backing invoke --record, stats,
// and serve. It shares the template store's connection settings.
func openRunlog(maxMemory int) (runlog.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Kind {
	case "memory":
		return runlog.NewMemory(maxMemory), noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.Addr})
		return runlog.NewRedis(client, ""), func() { client.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store, err := runlog.NewPostgres(db, "")
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("run log needs a memory, redis, or postgres store (have %q)", cfg.Store.Kind)
}

func openBackend(ctx context.Context) (backend.Backend, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "openai":
		b, err := backend.NewOpenAI(backend.OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		return b, noop, err
	case "anthropic":
		b, err := backend.NewAnthropic(backend.AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		return b, noop, err
	case "cohere":
		b, err := backend.NewCohere(backend.CohereConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		return b, noop, err
	case "ollama":
		return backend.NewOllama(backend.OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), noop, nil
	case "gemini":
		b, err := backend.NewGemini(ctx, backend.GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
