package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibe/vibe-go/internal/config"
	"github.com/vibe/vibe-go/internal/download"
	"github.com/vibe/vibe-go/internal/library"
	"github.com/vibe/vibe-go/internal/media"
	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/network"
	"github.com/vibe/vibe-go/internal/resolver"
	"github.com/vibe/vibe-go/internal/security"
	"github.com/vibe/vibe-go/internal/store"
)

const version = "1.0.0"

var (
	configPath  string
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "vibe",
	Short:         "vibe downloads YouTube audio into a local library and plays it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired services a command runs against
type app struct {
	cfg       *config.Config
	searchKey string
	logger    *zap.Logger
	db        *sql.DB
	store     *store.LibraryStore
	registry  *download.Registry
	pipeline  *download.Pipeline
	library   *library.Service
	metrics   *http.Server
}

func settingsPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetConfigPath()
}

// newApp loads settings and wires storage, acquisition and the library service
func newApp() (*app, error) {
	path := settingsPath()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	searchKey, err := security.NewSecretBox(filepath.Dir(path)).Open(cfg.Search.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read search API key: %w", err)
	}

	logCfg := monitoring.DefaultLogConfig(filepath.Dir(path))
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Output = cfg.Logging.Output
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxBackups = cfg.Logging.MaxBackups
	logCfg.MaxAgeDays = cfg.Logging.MaxAgeDays
	logCfg.Compress = cfg.Logging.Compress
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	if verbose {
		logCfg.Level = "debug"
		if logCfg.Output == "file" {
			logCfg.Output = "both"
		}
	}
	logger, err := monitoring.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}

	db, err := store.InitDB(store.GetDefaultDBPath(filepath.Dir(path)))
	if err != nil {
		logger.Sync()
		return nil, err
	}

	documents := cfg.Download.DocumentsDir
	if err := os.MkdirAll(documents, 0755); err != nil {
		db.Close()
		logger.Sync()
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	lib := store.NewLibraryStore(db)
	registry := download.NewRegistry()

	downloadClient := network.GetDownloadClient(
		time.Duration(cfg.Download.RequestTimeout)*time.Second,
		time.Duration(cfg.Download.ResourceTimeout)*time.Second,
	)
	orchestrator := download.NewOrchestrator(func() download.Fetcher {
		return network.NewDownloader(downloadClient)
	}, registry, cfg.Download.BackoffBaseDuration(), monitoring.WithComponent(logger, "orchestrator"))

	resolverTimeout := time.Duration(cfg.Resolver.Timeout) * time.Second
	resolverClientConfig := network.DefaultClientConfig()
	resolverClientConfig.Timeout = resolverTimeout
	ytdlp := resolver.NewYtDlpResolver(
		network.NewClient(resolverClientConfig),
		cfg.Resolver.RequestsPerSecond,
		resolverTimeout,
		monitoring.WithComponent(logger, "resolver"),
	)

	pipeline := download.NewPipeline(ytdlp, orchestrator, registry, download.PipelineConfig{
		DocumentsDir: documents,
		MaxAttempts:  cfg.Download.MaxAttempts,
	}, monitoring.WithComponent(logger, "pipeline"))

	service := library.NewService(lib, pipeline, library.Config{
		DocumentsDir:        documents,
		ConcurrentDownloads: cfg.Download.ConcurrentDownloads,
	}, monitoring.WithComponent(logger, "library")).
		WithProber(media.NewProber(cfg.Resolver.FFprobeBinary)).
		WithCovers(media.NewCoverStore(documents, cfg.Download.CoverSize, network.GetDefaultClient())).
		WithExpander(resolver.NewPlaylistExpander(time.Duration(cfg.Resolver.Timeout) * time.Second))

	a := &app{
		cfg:       cfg,
		searchKey: searchKey,
		logger:    logger,
		db:        db,
		store:     lib,
		registry:  registry,
		pipeline:  pipeline,
		library:   service,
	}

	if metricsAddr != "" {
		a.serveMetrics(metricsAddr)
	}

	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
}

func (a *app) Close() {
	a.pipeline.CancelAll()
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.metrics.Shutdown(ctx)
		cancel()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	a.logger.Sync()
}

// withApp runs fn against a freshly wired app and closes it afterwards
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
