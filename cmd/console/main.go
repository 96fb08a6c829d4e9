package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/console"
	"github.com/noah-isme/sma-adp-console/internal/gateway"
	"github.com/noah-isme/sma-adp-console/internal/handler"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/repository"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/internal/settings"
	"github.com/noah-isme/sma-adp-console/internal/view"
	"github.com/noah-isme/sma-adp-console/internal/viewstate"
	"github.com/noah-isme/sma-adp-console/pkg/cache"
	"github.com/noah-isme/sma-adp-console/pkg/config"
	"github.com/noah-isme/sma-adp-console/pkg/database"
	"github.com/noah-isme/sma-adp-console/pkg/logger"
	"github.com/noah-isme/sma-adp-console/pkg/storage"
)

const cleanupInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("console stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()

	kv, closeKV, err := openSettings(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeKV()

	client := gateway.New(gateway.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  gateway.NewTokenSource(cfg.API.TokenSecret, cfg.API.TokenSubject, cfg.API.TokenTTL),
		Metrics: metrics,
		Logger:  logr,
	})

	prefs := settings.NewAdapter(kv, cfg.Settings.Key, logr, metrics)
	sort, ok := prefs.LoadSortPreference(ctx)
	if !ok {
		sort = models.DefaultSortSpec()
	}
	store := viewstate.New(view.NewEngine(time.Now), prefs, sort, logr)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("open export dir: %w", err)
	}
	exports := service.NewExportService(store, files,
		storage.NewDownloadSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: handler.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr)

	validate := service.NewValidator(time.Now)
	refresh := service.NewRefreshService(client, store, logr)
	notifier := console.NewNotifier(logr)
	dispatcher := console.NewDispatcher(console.Deps{
		Store:       store,
		Refresh:     refresh,
		Students:    service.NewStudentService(client, store, refresh, validate, logr),
		Classes:     service.NewClassService(client, store, refresh, validate, logr),
		Enrollments: service.NewEnrollmentService(client, store, refresh, logr),
		Exports:     exports,
		Notifier:    notifier,
		Debounce:    cfg.Search.Debounce,
		Metrics:     metrics,
		Logger:      logr,
	})
	defer dispatcher.Close()

	if err := client.Health(ctx); err != nil {
		logr.Warn("records backend unreachable", zap.String("base_url", cfg.API.BaseURL), zap.Error(err))
	} else {
		logr.Info("records backend reachable", zap.String("base_url", cfg.API.BaseURL))
	}
	if err := refresh.All(ctx); err != nil {
		notifier.Error(err)
	}

	go sweepExports(ctx, exports, logr)

	switch cfg.Mode {
	case config.ModeServe:
		return serve(ctx, cfg, logr, handler.RouterConfig{
			View:           handler.NewViewHandler(store, dispatcher, notifier),
			Events:         handler.NewEventHandler(dispatcher),
			Downloads:      handler.NewDownloadHandler(exports),
			Metrics:        handler.NewMetricsHandler(metrics, client),
			MetricsService: metrics,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Docs:           cfg.Env != config.EnvProduction,
			Logger:         logr,
		})
	case config.ModeREPL, "":
		repl := console.NewREPL(dispatcher, store, console.NewTextRenderer(time.Now))
		return repl.Run(ctx, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown console mode %q", cfg.Mode)
	}
}

// openSettings selects the sort preference backend. The returned close func is never nil.
func openSettings(ctx context.Context, cfg *config.Config, logr *zap.Logger) (settings.KeyValueStore, func(), error) {
	switch cfg.Settings.Backend {
	case config.SettingsBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRedisSettingsRepository(client, logr)
		return repo, func() { _ = repo.Close() }, nil
	case config.SettingsBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSQLSettingsRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	case config.SettingsBackendFile, "":
		dir, err := filepath.Abs(cfg.Settings.Dir)
		if err != nil {
			return nil, nil, err
		}
		files, err := storage.NewLocalStorage(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open settings dir: %w", err)
		}
		return repository.NewFileSettingsRepository(files), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown settings backend %q", cfg.Settings.Backend)
	}
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger, routes handler.RouterConfig) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = io.Discard

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("console api listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	logr.Info("shutting down console api")
	return srv.Shutdown(shutdownCtx)
}

func sweepExports(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
