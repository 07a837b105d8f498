// Package main provides the entry point for the policy decision server
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/internal/api/rest"
	"github.com/pdp-engine/go-core/internal/audit"
	"github.com/pdp-engine/go-core/internal/cache"
	"github.com/pdp-engine/go-core/internal/catalog"
	"github.com/pdp-engine/go-core/internal/condition"
	"github.com/pdp-engine/go-core/internal/config"
	"github.com/pdp-engine/go-core/internal/engine"
	"github.com/pdp-engine/go-core/internal/hierarchy"
	"github.com/pdp-engine/go-core/internal/identity"
	"github.com/pdp-engine/go-core/internal/logging"
	"github.com/pdp-engine/go-core/internal/metrics"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath      = flag.String("config", "", "Path to the configuration file")
		showVersion     = flag.Bool("version", false, "Show version information")
		gracefulTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pdp-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting policy decision server",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("catalog_source", cfg.Catalog.Source),
	)

	m := metrics.NewPrometheusMetrics("pdp")

	conditions, err := condition.NewEngine()
	if err != nil {
		logger.Fatal("Failed to create condition engine", zap.Error(err))
	}

	store, watcher, err := buildCatalog(cfg, conditions, m, logger)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	// The hierarchy tracks the catalog: every snapshot replacement updates
	// the role level table
	h := hierarchy.NewResolver(store.Snapshot().RoleLevels(), cfg.Evaluation.SuperUserRole)
	store.OnReplace(func(snap *catalog.Snapshot) {
		h.Replace(snap.RoleLevels())
		m.RecordCatalogReload(snap.Version)
	})

	decisionCache := buildCache(cfg, m, logger)

	auditLogger := buildAudit(cfg, logger)
	defer auditLogger.Close()

	eng, err := engine.New(engine.Config{
		Pipeline: engine.PipelineConfig{
			Bypass:          cfg.Evaluation.Bypass,
			ScopedAdminRole: cfg.Evaluation.ScopedAdminRole,
			ActionLevels:    cfg.Evaluation.ActionLevels,
		},
		CacheEnabled: cfg.Cache.Enabled,
		PositiveTTL:  cfg.Cache.PositiveTTL,
		NegativeTTL:  cfg.Cache.NegativeTTL,
		Timeout:      cfg.Evaluation.Timeout,
		BatchWorkers: cfg.Evaluation.BatchWorkers,
	}, engine.Deps{
		Identity:   identity.NewResolver(h, logger),
		Hierarchy:  h,
		Catalog:    catalog.NewResolver(store),
		Conditions: conditions,
		Cache:      decisionCache,
		Metrics:    m,
		Audit:      auditLogger,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Failed to create engine", zap.Error(err))
	}
	defer eng.Close()

	srv, err := rest.New(rest.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Version:      Version,
	}, eng, m, logger)
	if err != nil {
		logger.Fatal("Failed to create REST server", zap.Error(err))
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if watcher != nil {
		if err := watcher.Watch(watchCtx); err != nil {
			logger.Fatal("Failed to start catalog watcher", zap.Error(err))
		}
		defer watcher.Stop()
	}

	errChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), *gracefulTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Shutdown did not complete cleanly", zap.Error(err))
		}
	}

	logger.Info("Server stopped")
}

// buildCatalog loads the initial snapshot from the configured source and
// optionally attaches the file watcher for hot reload
func buildCatalog(cfg *config.Config, conditions *condition.Engine, m metrics.Metrics, logger *zap.Logger) (*catalog.Store, *catalog.FileWatcher, error) {
	loader := catalog.NewLoader(conditions, logger)

	switch cfg.Catalog.Source {
	case "postgres":
		source, err := catalog.NewPostgresSource(cfg.Catalog.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, err := source.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewStore(snap, logger), nil, nil

	default:
		snap, err := loader.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, err
		}
		store := catalog.NewStore(snap, logger)

		if !cfg.Catalog.Watch {
			return store, nil, nil
		}
		watcher, err := catalog.NewFileWatcher(cfg.Catalog.Path, store, loader, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, watcher, nil
	}
}

// buildAudit creates the decision audit trail when enabled
func buildAudit(cfg *config.Config, logger *zap.Logger) audit.Logger {
	if !cfg.Audit.Enabled {
		return audit.NopLogger{}
	}

	var writer audit.Writer
	if cfg.Audit.File != "" {
		writer = audit.NewFileWriter(cfg.Audit.File, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
	} else {
		writer = audit.NewStdoutWriter()
	}

	return audit.NewLogger(audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		FlushInterval: cfg.Audit.FlushInterval,
	}, writer, logger)
}

// buildCache composes the tiered decision cache. An unreachable redis at
// startup degrades to local-only operation instead of failing the boot.
func buildCache(cfg *config.Config, m metrics.Metrics, logger *zap.Logger) cache.DecisionCache {
	local := cache.NewLocal(cfg.Cache.LocalCapacity)

	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

	remote, err := cache.NewRedis(redisCfg, logger)
	if err != nil {
		logger.Warn("Redis unreachable, decision cache degraded to local only",
			zap.String("host", cfg.Redis.Host),
			zap.Error(err),
		)
		return cache.NewTiered(nil, local, m, logger)
	}

	logger.Info("Decision cache connected",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port),
	)
	return cache.NewTiered(remote, local, m, logger)
}
