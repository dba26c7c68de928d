// Package app assembles the URL shortener from its configuration and runs it
// until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/linkpulse/url-shortener/internal/config"
	"github.com/linkpulse/url-shortener/internal/database/memory"
	"github.com/linkpulse/url-shortener/internal/geo"
	"github.com/linkpulse/url-shortener/internal/logsink"
	"github.com/linkpulse/url-shortener/internal/service"
	"github.com/linkpulse/url-shortener/migrations"
	"github.com/linkpulse/url-shortener/pkg/postgres"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/linkpulse/url-shortener/internal/api/http"
	pgrepo "github.com/linkpulse/url-shortener/internal/database/postgres"
	cache "github.com/linkpulse/url-shortener/internal/database/redis"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) *httplog.Logger {
	level := slog.LevelDebug
	if cfg.Env == config.EnvProd {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("url-shortener", httplog.Options{
		LogLevel: level,
		JSON:     cfg.Env != config.EnvDev,
		Concise:  cfg.Env == config.EnvDev,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

// newLogSink wraps the request logger so that records tagged with a package
// are also shipped to the remote log service. The returned dispatcher is nil
// when the sink is disabled.
func newLogSink(cfg config.LogSink, logger *httplog.Logger) *logsink.Dispatcher {
	if !cfg.Enabled {
		return nil
	}

	client := logsink.NewClient(logsink.ClientConfig{
		BaseURL:       cfg.BaseURL,
		Token:         cfg.Token,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, logger.Logger)

	dispatcher := logsink.NewDispatcher(client, cfg.QueueSize)

	logger.Logger = slog.New(logsink.NewHandler(
		logger.Logger.Handler(),
		dispatcher,
		logsink.StackBackend,
		slog.LevelWarn,
	))

	return dispatcher
}

type closer func() error

func newRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.URLRepository, []closer, error) {
	const op = "app.newRepository"

	var (
		repo    service.URLRepository
		closers []closer
	)

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage, records are lost on restart")
		repo = memory.NewURLRepository()

	default:
		db, err := postgres.New(
			ctx,
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
			postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		closers = append(closers, db.Close)

		if err := postgres.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		repo = pgrepo.NewURLRepository(db)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, client.Close)

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis is unreachable, lookups will fall through to storage",
				slog.String("addr", cfg.Redis.Addr),
				slog.Any("err", err),
			)
		}

		repo = cache.NewCachedURLRepository(repo, client, cfg.Redis.TTL)
	}

	return repo, closers, nil
}

func closeAll(closers []closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run starts the HTTP server and blocks until ctx is done or the server
// fails. On return every opened resource has been released.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)
	dispatcher := newLogSink(cfg.LogSink, logger)

	repo, closers, err := newRepository(ctx, cfg, logger.Logger)
	if err != nil {
		if dispatcher != nil {
			dispatcher.Shutdown(context.Background())
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	urlSvc := service.NewURLService(repo, geo.NewMockResolver(), logger.Logger, service.Config{
		DefaultValidity: cfg.Expiry.DefaultValidity,
		StorageTimeout:  cfg.Storage.Timeout,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, urlSvc, cfg.BaseURL),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.Bool("cache", cfg.Redis.Enabled),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error

		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s: failed to shutdown server: %w", op, err))
		}
		if err := closeAll(closers); err != nil {
			errs = append(errs, fmt.Errorf("%s: failed to close storage: %w", op, err))
		}
		if dispatcher != nil {
			if err := dispatcher.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s: failed to flush log sink: %w", op, err))
			}
		}

		logger.Info("server stopped")

		return errors.Join(errs...)
	})

	return g.Wait()
}
