package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/config"
	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/httpapi"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/logging"
	"horse.fit/polyglot/internal/pipeline"
	"horse.fit/polyglot/internal/storage"
	"horse.fit/polyglot/internal/translation"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8000, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	// Jobs stranded mid-flight by a previous process have no worker anymore;
	// surface them as failed instead of leaving clients polling forever.
	if swept, err := pool.FailAbandonedJobs(dbCtx, "translation job interrupted by restart"); err != nil {
		logger.Error().Err(err).Msg("failed to sweep abandoned jobs")
	} else if swept > 0 {
		logger.Warn().Int64("jobs", swept).Msg("marked abandoned translation jobs as failed")
	}

	catalog, err := language.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load language catalog")
		fmt.Fprintf(os.Stderr, "Failed to load language catalog: %v\n", err)
		return 1
	}

	registry := translation.NewRegistry(cfg.TranslationProvider)
	if err := registry.Register(translation.NewGoogleProvider(cfg.TranslationEndpoint)); err != nil {
		logger.Error().Err(err).Msg("failed to register translation provider")
		return 1
	}
	provider, err := registry.Provider(cfg.TranslationProvider)
	if err != nil {
		logger.Error().Err(err).Str("provider", cfg.TranslationProvider).Msg("unknown translation provider")
		fmt.Fprintf(os.Stderr, "Unknown translation provider: %v\n", err)
		return 1
	}
	client := translation.NewClient(provider, catalog)

	uploader, err := storage.NewUploader(cfg)
	if err != nil {
		// File jobs will fail with a storage error; text translation still works.
		logger.Warn().Err(err).Msg("object storage not configured, file uploads unavailable")
	}

	svc, err := pipeline.NewService(pool, client, uploader, catalog, logger, cfg.UploadDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize job pipeline")
		fmt.Fprintf(os.Stderr, "Failed to initialize job pipeline: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(pool, pool, svc, client, catalog, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AdminAccessKey:  cfg.AdminAccessKey,
	})

	serveErr := srv.Start(ctx)

	// Let in-flight background jobs record their final state before exit.
	svc.Wait()

	if serveErr != nil {
		logger.Error().Err(serveErr).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", serveErr)
		return 1
	}

	return 0
}
