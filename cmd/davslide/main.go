// Main entry point for the slideshow daemon.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"davslide/internal/config"
	"davslide/internal/fetch"
	"davslide/internal/geocode"
	"davslide/internal/scan"
	"davslide/internal/server"
	"davslide/internal/slideshow"
)

const shutdownTimeout = 5 * time.Second

var configPathFlag string

// NewRootCmd creates the root command for the daemon.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "davslide",
		Short:         "davslide - WebDAV photo slideshow daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPathFlag)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", ".", "directory containing config.yaml")
	return rootCmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	client, err := scan.NewClient(cfg.Repository)
	if err != nil {
		return err
	}

	var resolver fetch.PlaceResolver
	if cfg.Geocode.Enabled {
		resolver = geocode.NewResolver(cfg.Geocode.URL)
	}
	fetcher, err := fetch.NewFetcher(cfg.Repository, fetch.NewCache(cfg.CacheSize), resolver)
	if err != nil {
		return err
	}

	// The server consumes the orchestrator's events and the orchestrator
	// is driven by the server's commands; srv is assigned before Run
	// starts emitting.
	var srv *server.Server
	orch := slideshow.New(slideshow.Options{
		UpdateInterval:  cfg.Slideshow.UpdateInterval,
		RefreshInterval: cfg.Slideshow.RefreshInterval,
		Random:          cfg.Slideshow.Random,
		StartPaused:     cfg.Slideshow.StartPaused || cfg.Slideshow.StartHidden,
		Width:           cfg.Display.Width,
		Height:          cfg.Display.Height,
	}, client, fetcher, func(ev slideshow.Event) { srv.HandleEvent(ev) })
	srv = server.New(orch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orch.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("starting control server")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("davslide failed")
	}
}
