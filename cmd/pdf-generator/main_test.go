package main

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	u "pdf-generator/internal/utils"
)

func TestStartServer_GracefulShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	var cfg u.Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":0"

	stop := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		startServer(app, cfg, stop)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	stop <- syscall.SIGTERM

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for graceful shutdown")
	}
}
