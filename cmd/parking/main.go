// Package main запускает учёт парковки в режиме консоли, HTTP-сервера или выгрузки истории.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/parking-ledger/internal/config"
	"github.com/mmeshcher/parking-ledger/internal/console"
	"github.com/mmeshcher/parking-ledger/internal/export"
	"github.com/mmeshcher/parking-ledger/internal/fee"
	"github.com/mmeshcher/parking-ledger/internal/handler"
	"github.com/mmeshcher/parking-ledger/internal/metrics"
	"github.com/mmeshcher/parking-ledger/internal/repository"
	"github.com/mmeshcher/parking-ledger/internal/service"
	"github.com/mmeshcher/parking-ledger/internal/tariff"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		return 2
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	table := tariff.Default()
	if cfg.RatesFile != "" {
		table, err = tariff.Load(cfg.RatesFile)
		if err != nil {
			sugar.Errorw("rate table error", "error", err.Error(), "path", cfg.RatesFile)
			return 1
		}
	}

	evaluator := fee.NewEvaluator(table, fee.WithTrace(func(c fee.HourCharge) {
		logger.Debug("hour charged",
			zap.Time("start", c.Start),
			zap.String("window", string(c.Window)),
			zap.Float64("rate", c.Rate),
			zap.Float64("charge", c.Charge),
		)
	}))

	repo, err := newRepository(cfg, logger)
	if err != nil {
		sugar.Errorw("storage initialization error", "error", err.Error(), "storage", cfg.Storage)
		return 1
	}

	svc := service.NewService(repo, evaluator, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			sugar.Warnw("close storage", "error", err)
		}
	}()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	mode := "console"
	if len(args) > 0 {
		mode = args[0]
	}

	switch mode {
	case "console":
		err = console.New(svc, os.Stdin, os.Stdout, logger).Run(ctx)
	case "serve":
		err = serve(ctx, cfg.RunAddress, svc, logger)
	case "export":
		err = exportHistory(ctx, svc, args[1:])
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}

	if err != nil {
		sugar.Errorw("application terminated with error", "error", err, "mode", mode)
		return 1
	}
	return 0
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	// stdout занят консольным меню.
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

func newRepository(cfg *config.Config, logger *zap.Logger) (service.Repository, error) {
	if cfg.Storage == config.StorageSQLite {
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	}
	return repository.NewFileRepository(cfg.DataFile, cfg.HistoryDir, logger)
}

func serve(ctx context.Context, addr string, svc *service.Service, logger *zap.Logger) error {
	sugar := logger.Sugar()

	h := handler.NewHandler(svc, logger)

	server := &http.Server{
		Addr:              addr,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting parking server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

func exportHistory(ctx context.Context, svc *service.Service, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: export <identity> <xlsx|pdf> <path>")
	}
	identity, format, path := args[0], args[1], args[2]

	view, err := svc.GetHistory(ctx, identity)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}

	data, err := export.Build(format, export.Statement{
		Identity: view.Identity,
		History:  view.History,
		Visits:   view.Lines(),
	})
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, export.ErrUnknownFormat) {
			result = metrics.ResultInvalid
		}
		metrics.ObserveExport(format, result)
		return fmt.Errorf("build export: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		metrics.ObserveExport(format, metrics.ResultError)
		return fmt.Errorf("write export: %w", err)
	}
	metrics.ObserveExport(format, metrics.ResultSuccess)

	return nil
}
