package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pdf-generator/internal/app"
	"pdf-generator/internal/audit"
	"pdf-generator/internal/handlers"
	"pdf-generator/internal/pdf"
	u "pdf-generator/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	// Allow common container env var to override chrome_path.
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
	)
	u.SetLogLevel(cfg.Logger.Level)

	cred, err := u.LoadCredential(cfg)
	if err != nil {
		u.Error("Refusing to start without credentials", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.AuditDB,
		})
		defer rdb.Close()
	}

	recorder, err := audit.New(cfg, rdb)
	if err != nil {
		u.Error("Audit backend init failed", "backend", cfg.Audit.Backend, "error", err)
		os.Exit(1)
	}
	defer recorder.Close()

	conv, err := pdf.NewConverter(cfg, cfg.Templates.Root)
	if err != nil {
		u.Error("PDF converter init failed", "engine", cfg.PDF.Engine, "error", err)
		os.Exit(1)
	}
	defer conv.Close()

	exporter, err := pdf.NewExporter(conv, cfg.Output.Root)
	if err != nil {
		u.Error("PDF exporter init failed", "error", err)
		os.Exit(1)
	}

	svc, err := handlers.NewPDFService(cfg, exporter, recorder)
	if err != nil {
		u.Error("Service init failed", "error", err)
		os.Exit(1)
	}

	u.Info("Starting pdf-generator",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"engine", cfg.PDF.Engine,
		"templates", cfg.Templates.Root,
		"output", cfg.Output.Root,
		"audit", cfg.Audit.Backend,
	)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)

	startServer(app.SetupApp(cfg, cred, svc), cfg, sigint)
}

// startServer starts the Fiber app and blocks until stop delivers a signal,
// then shuts down gracefully.
func startServer(app *fiber.App, cfg u.Config, stop <-chan os.Signal) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	<-stop

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	u.Info("Server stopped cleanly")
}
