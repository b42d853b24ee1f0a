// cmd/raven/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"ravenwatch/internal/config"
	"ravenwatch/internal/database"
	"ravenwatch/internal/metrics"
	"ravenwatch/internal/monitoring"
	"ravenwatch/internal/notifications"
	"ravenwatch/internal/web"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Raven URL Monitor %s\nCommit: %s\nBuilt: %s\n", web.Version, web.GitCommit, web.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file":     *configFile,
		"port":            cfg.Server.Port,
		"workers":         cfg.Monitoring.Workers,
		"batch_size":      cfg.Monitoring.BatchSize,
		"interval":        cfg.Monitoring.Interval,
		"history_backend": cfg.Database.HistoryBackend,
	}).Info("Starting Raven URL monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.Open(ctx, database.Options{
		Path:           cfg.Database.Path,
		HistoryBackend: cfg.Database.HistoryBackend,
		SQLitePath:     cfg.Database.SQLitePath,
		MySQLDSN:       cfg.Database.MySQLDSN,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	metricsCollector := metrics.NewCollector(store)
	hub := web.NewHub(metricsCollector)
	sinks := []monitoring.EventSink{hub}

	var notifier *notifications.NotificationService
	if cfg.Notifications.Enabled {
		notifier, err = notifications.NewNotificationService(&cfg.Notifications)
		if err != nil {
			logrus.Fatalf("Failed to initialize notifications: %v", err)
		}
		sinks = append(sinks, notifier)
	}

	engine, err := monitoring.NewEngine(cfg, store, metricsCollector, sinks...)
	if err != nil {
		logrus.Fatalf("Failed to initialize monitoring engine: %v", err)
	}

	webServer := web.NewServer(cfg, store, engine, metricsCollector, hub, notifier)

	if err := engine.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start monitoring engine: %v", err)
	}
	if err := webServer.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start web server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	cancel()
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Web server shutdown incomplete")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if cfg.File != "" {
		logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}
}
