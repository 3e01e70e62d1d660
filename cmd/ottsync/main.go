package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwplayer/ott-web-app-sub004/internal/adapter"
	"github.com/jwplayer/ott-web-app-sub004/internal/app"
	"github.com/jwplayer/ott-web-app-sub004/internal/catalog"
)

// Version is set at build time via -ldflags
var Version = "dev"

type flags struct {
	configPath  string
	watch       bool
	metricsAddr string
	resolve     string
	filter      string
}

func main() {
	var (
		showVersion bool
		f           flags
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&f.configPath, "config", "", "path to config file")
	flag.BoolVar(&f.watch, "watch", false, "reload the log level when the config file changes")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flag.StringVar(&f.resolve, "resolve", "", "print the screen for a media id and exit")
	flag.StringVar(&f.filter, "filter", "", "with -resolve, only list episodes matching this title")
	flag.Parse()

	if showVersion {
		fmt.Printf("ottsync %s\n", Version)
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	loader := adapter.NewLoader(f.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, level, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
		level = new(slog.LevelVar)
	}
	slog.SetDefault(logger)

	logger.Info("starting ottsync", "version", Version, "config", loader.ConfigFile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()
	a.Init(ctx)

	if f.resolve != "" {
		return resolve(ctx, a, f.resolve, f.filter)
	}

	if f.watch {
		loader.Watch(func(next *adapter.Config) {
			level.Set(adapter.ParseLevel(next.Logging.Level))
			logger.Info("config reloaded", "level", next.Logging.Level)
		}, func(err error) {
			logger.Warn("ignoring config change", "error", err)
		})
	}

	if f.metricsAddr != "" {
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", f.metricsAddr)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// resolve fetches a media item and prints the screen that renders it
func resolve(ctx context.Context, a *app.App, mediaID, filter string) error {
	item, err := a.Catalog.GetMedia(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("failed to fetch media %s: %w", mediaID, err)
	}
	screen, err := a.MediaScreens.GetScreen(*item)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\t%s\n", item.MediaID, item.Title, screen)
	if item.IsSeries() {
		series, err := a.Catalog.ResolveSeries(ctx, *item)
		if err != nil {
			return fmt.Errorf("failed to resolve series: %w", err)
		}
		if series != nil {
			for _, ep := range catalog.FilterPlaylist(series, filter) {
				fmt.Printf("  %s\t%s\t%s\n", ep.EpisodeCode(), ep.MediaID, ep.Title)
			}
		}
	}
	return nil
}
