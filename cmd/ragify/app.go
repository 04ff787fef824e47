package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/embeddings"
	"github.com/kellywsq03/RAGify/internal/llm"
	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/logging"
	"github.com/kellywsq03/RAGify/internal/rag"
	"github.com/kellywsq03/RAGify/internal/secrets"
	"github.com/kellywsq03/RAGify/internal/splitter"
	"github.com/kellywsq03/RAGify/internal/storage"
	"github.com/kellywsq03/RAGify/internal/telemetry"
	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

// app holds the wired pipeline and everything that must be closed.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	log       *logging.Logger
	telemetry *telemetry.Telemetry
	embedder  embeddings.Provider
	store     vectorstore.Store
	generator *llm.GoogleGenerator
	service   *rag.Service
}

type appOptions struct {
	// logToStderr keeps stdout free for the MCP stdio transport and for
	// command output.
	logToStderr bool
}

// loadConfig loads configuration using the persistent flags.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath, envFiles...)
}

func newLogger(cfg *config.Config, toStderr bool) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	if toStderr {
		logCfg.Output = "stderr"
	}
	return logging.NewLogger(logCfg)
}

// newApp wires config, logging, telemetry, the embedder, the vector store,
// the generator and the pipeline service.
//
// The generator is optional: without GOOGLE_API_KEY the pipeline can still
// index and return the no-results sentinel, and fails with
// config.ErrConfigurationMissing only when it needs to generate.
func newApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, opts.logToStderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.Underlying()

	a := &app{cfg: cfg, logger: logger, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version), logger)
	if err != nil {
		return nil, err
	}
	if lp := a.telemetry.LoggerProvider(); lp != nil {
		a.log = log.WithOTel(lp)
		logger = a.log.Underlying()
		a.logger = logger
	}

	a.embedder, err = embeddings.NewProvider(ctx, embeddings.ProviderConfigFrom(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.store, err = vectorstore.NewStore(ctx, cfg, a.embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	var gen llm.Generator
	if cfg.Google.APIKey.IsSet() {
		a.generator, err = llm.NewGoogleGenerator(ctx, cfg.Google, logger)
		if err != nil {
			return nil, fmt.Errorf("creating generator: %w", err)
		}
		gen = a.generator
	} else {
		logger.Warn("GOOGLE_API_KEY is not set, questions with matching context will fail")
	}

	sp, err := splitter.New(splitter.Config{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
	}, logger)
	if err != nil {
		return nil, err
	}

	ld := loader.New(loader.Config{
		MarkdownPath: cfg.Loader.MarkdownPath,
		Supabase:     cfg.Supabase,
	}, nil, logger)

	a.service, err = rag.NewService(rag.ConfigFrom(cfg), ld, sp, a.store, gen, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Loader.RedactSecrets {
		scanner, err := secrets.NewScanner(cfg.Loader.SecretAllowlist)
		if err != nil {
			return nil, err
		}
		a.service.WithRedactor(scanner)
	}

	logger.Debug("pipeline ready",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embedding_model", vectorstore.EmbeddingModelID(cfg.Embeddings)),
		zap.Bool("generator", gen != nil),
	)
	return a, nil
}

// newUploader creates the Supabase-backed uploader. It fails with
// config.ErrConfigurationMissing when credentials are unset.
func newUploader(cfg *config.Config, logger *zap.Logger) (*storage.Uploader, error) {
	store, err := storage.NewSupabaseStore(cfg.Supabase, logger)
	if err != nil {
		return nil, err
	}
	return storage.NewUploader(store, cfg.Supabase, logger), nil
}

// Close releases every resource the app opened.
func (a *app) Close() error {
	var errs []error
	if a.generator != nil {
		errs = append(errs, a.generator.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}
