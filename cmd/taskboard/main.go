package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/config"
	"taskboard/internal/server"
	"taskboard/internal/storage/sqlite"
)

func main() {
	conf, err := config.Parse()
	if err != nil {
		slog.Error("could not parse config", slog.Any("error", err))
		os.Exit(1)
	}

	addrFlag := flag.String("addr", conf.HTTP.Address, "HTTP listen address")
	dbFlag := flag.String("db", conf.Storage.DSN, "Path to sqlite database file")
	staticFlag := flag.String("static", conf.HTTP.StaticDir, "Directory with built frontend")
	providerFlag := flag.String("provider", conf.Provider.ID, "Provider whose task board is served")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: conf.Logger.Level}))
	slog.SetDefault(logger)

	logger.Debug("using configuration", slog.Any("config", conf))

	if err := run(conf, *addrFlag, *dbFlag, *staticFlag, *providerFlag, logger); err != nil {
		logger.Error("task board stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func run(conf *config.Config, addr, dbPath, staticDir, providerID string, logger *slog.Logger) error {
	templates, err := loadCatalog(conf.Catalog.Path)
	if err != nil {
		return err
	}
	logger.Info("template catalog loaded", slog.Int("version", templates.Version()), slog.Int("templates", len(templates.Templates())))

	store, err := sqlite.Open(dbPath, logger)
	if err != nil {
		return errors.Wrap(err, "unable to open database")
	}
	defer store.Close()

	b, err := board.New(board.Options{
		ProviderID:    providerID,
		Catalog:       templates,
		Persister:     store,
		QueueSize:     conf.Storage.QueueSize,
		FlushInterval: conf.Tracker.FlushInterval,
		CacheSize:     conf.Query.CacheSize,
		CacheTTL:      conf.Query.CacheTTL,
		Logger:        logger,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Load(ctx); err != nil {
		return errors.WithStack(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Run(ctx); err != nil {
			logger.Error("board stopped unexpectedly", slog.Any("error", err))
		}
	}()

	srv := server.New(b, logger, staticDir)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Engine(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("provider", providerID))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- errors.WithStack(err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.Any("error", err))
	}

	stop()
	// Flushes the active tracker and drains queued writes before the
	// database is closed.
	wg.Wait()

	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
