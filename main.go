package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/ytdl-web/config"
	"github.com/nijaru/ytdl-web/extractor"
	"github.com/nijaru/ytdl-web/handlers/api"
	"github.com/nijaru/ytdl-web/logger"
	"github.com/nijaru/ytdl-web/repository/sqlite"
	"github.com/nijaru/ytdl-web/services/video"
	"github.com/nijaru/ytdl-web/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("ytdl-web: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	appLogger, err := logger.NewLogger(logger.Options{
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DBConfig{
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.WithError(err).Error("Database shutdown error")
		}
	}()

	opts := []video.Option{
		video.WithLogger(appLogger),
		video.WithRepository(sqlite.NewRepository(db)),
	}

	if cfg.Spaces.Enabled() {
		spaces, err := storage.NewSpacesClient(context.Background(), cfg.Spaces)
		if err != nil {
			return errors.Wrap(err, "failed to initialize Spaces client")
		}
		opts = append(opts, video.WithArchiver(spaces))
		appLogger.WithField("bucket", cfg.Spaces.Bucket).Info("Archiving download records to Spaces")
	}

	client := extractor.NewYouTube(extractor.YouTubeOptions{
		HTTPTimeout: cfg.YouTube.HTTPTimeout,
		ChunkSize:   cfg.YouTube.ChunkSize,
	})

	videoService := video.NewService(client, video.DefaultConfig(), opts...)

	server := api.NewServer(cfg,
		api.WithLogger(appLogger),
		api.WithServices(videoService),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		appLogger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case serveErr = <-errCh:
		appLogger.WithError(serveErr).Error("Server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithFields(logrus.Fields{
			"error":   err,
			"timeout": cfg.ShutdownTimeout,
		}).Error("Server shutdown error")
	}

	if serveErr != nil {
		return errors.Wrap(serveErr, "server stopped")
	}
	return nil
}
