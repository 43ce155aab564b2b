package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/blob"
	"github.com/jonathan/skill-gap-wizard/internal/config"
	"github.com/jonathan/skill-gap-wizard/internal/llm"
	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/requirements"
)

// loadConfig resolves configuration: built-in defaults, then the config
// file, then environment variables. Command flags are applied by callers.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg := &config.Config{}
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if opts.verbose {
		merged.Verbose = true
	}
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// openKV connects the configured snapshot store. The returned func releases it.
func openKV(ctx context.Context, cfg config.Config) (persistence.KV, func(), error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pg, err := persistence.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.StorageSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return persistence.NewMemoryKV(), func() {}, nil
	}
}

func openBlobs(cfg config.Config) (blob.Store, error) {
	if cfg.BlobBackend == config.BlobS3 {
		return blob.NewS3Store(cfg.S3)
	}
	return blob.NewMemoryStore(), nil
}

// newGenerator prefers a requirements service over calling the model
// directly. It returns a nil Generator when neither is configured.
func newGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (requirements.Generator, func(), error) {
	switch {
	case cfg.RequirementsURL != "":
		return requirements.NewHTTPGenerator(cfg.RequirementsURL, nil, logger), func() {}, nil
	case cfg.GeminiAPIKey != "":
		client, err := llm.NewGeminiClient(ctx, cfg.LLMConfig(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return requirements.NewLLMGenerator(client, logger), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
