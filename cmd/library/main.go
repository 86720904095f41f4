package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	adapthttp "library/internal/adapter/http"
	"library/internal/adapter/memory"
	"library/internal/adapter/sqlstore"
	"library/internal/app"
	"library/internal/config"
	"library/internal/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("library stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rs := app.NewReservationService(store, cfg.Fees, logger)
	bs := app.NewBookService(store, logger)
	us := app.NewUserService(store, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(rs, bs, us, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("driver", cfg.DatabaseDriver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.Store, func(), error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}
	db, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, sqlstore.WithLogger(logger.Named("sql")))
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}
