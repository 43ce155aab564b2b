package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/config"
	"github.com/jonathan/skill-gap-wizard/internal/extraction"
	"github.com/jonathan/skill-gap-wizard/internal/roles"
	"github.com/jonathan/skill-gap-wizard/internal/server"
	"github.com/jonathan/skill-gap-wizard/internal/server/ratelimit"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port       int
		flow       string
		exitPolicy string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wizard HTTP API server",
		Long:  `Start an HTTP server that hosts wizard sessions and relays their events over SSE.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("flow") {
				cfg.Flow = flow
			}
			if cmd.Flags().Changed("exit-policy") {
				cfg.ExitPolicy = exitPolicy
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, opts.logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().StringVar(&flow, "flow", "", "Wizard flow: standard or compact")
	cmd.Flags().StringVar(&exitPolicy, "exit-policy", "", "Back from step 1: exit or stay")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}
	defer closeKV()

	blobs, err := openBlobs(cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s blob store: %w", cfg.BlobBackend, err)
	}

	deps := server.Deps{KV: kv, Blobs: blobs, Logger: logger}
	if cfg.RolesURL != "" {
		rc, err := roles.NewClient(cfg.RolesURL, roles.Options{CacheSize: cfg.RoleCacheSize, Logger: logger})
		if err != nil {
			return err
		}
		deps.Roles = rc
	} else {
		logger.Warn("ROLES_URL not set, role search is disabled")
	}
	if cfg.ExtractionURL != "" {
		deps.Extractor = extraction.NewClient(cfg.ExtractionURL, nil, logger)
	} else {
		logger.Warn("EXTRACTION_URL not set, resume uploads are disabled")
	}

	gen, closeGen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGen()
	if gen != nil {
		deps.Generator = gen
	}

	srv, err := server.New(server.Config{
		Port:             cfg.Port,
		Flow:             cfg.WizardFlow(),
		ExitPolicy:       cfg.WizardExitPolicy(),
		AutoAdvanceDelay: cfg.AutoAdvance(),
		RateLimit:        ratelimit.LoadConfig(os.Getenv),
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting wizard server",
		zap.Int("port", cfg.Port),
		zap.String("flow", cfg.Flow),
		zap.String("storage", cfg.StorageBackend),
		zap.String("blobs", cfg.BlobBackend))
	return srv.Run(ctx)
}
