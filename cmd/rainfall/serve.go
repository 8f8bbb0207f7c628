package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rainfall-predictor/internal/api"
	"rainfall-predictor/internal/cfg"
	"rainfall-predictor/internal/common"
	"rainfall-predictor/internal/metrics"
	"rainfall-predictor/internal/rainfall"
	"rainfall-predictor/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var port int

// serveCmd runs the HTTP and WebSocket API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP and WebSocket",
	Long: `Loads the model artifacts once and serves:

  POST /api/v1/predict      score one observation
  POST /api/v1/transform    engineered columns for one observation
  GET  /api/v1/model        loaded model and schema
  GET  /api/v1/predictions  stored predictions (requires DATA_PATH)
  GET  /api/v1/stream       WebSocket, one observation per message
  GET  /health
  GET  /metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if port != 0 {
		settings.Port = port
	}

	mw := metrics.NewWrapper(metrics.New())
	rt, err := rainfall.Load(settings, mw)
	if err != nil {
		return err
	}

	var predictions rainfall.PredictionLog
	if store := initializeStorage(settings); store != nil {
		defer store.Close()
		predictions = store
	}

	maintenance := rainfall.NewMaintenance(rt)
	if err := maintenance.Start(common.MaintenanceSchedule); err != nil {
		return err
	}
	defer maintenance.Stop()

	server := api.NewServer(rainfall.NewService(rt, predictions), api.Config{
		Port:    settings.Port,
		Metrics: mw,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
		return err
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Shutdown timeout, forcing exit")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// initializeStorage opens the prediction log if DATA_PATH is configured
func initializeStorage(settings cfg.Settings) *storage.Store {
	if settings.DataPath == "" {
		return nil
	}
	store, err := storage.New(settings.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("Storage initialization failed, continuing without prediction log")
		return nil
	}
	log.Info().Str("path", settings.DataPath).Msg("Prediction log enabled")
	return store
}
