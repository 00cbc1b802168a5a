package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/infblueocean/newsriver/internal/api"
	"github.com/infblueocean/newsriver/internal/config"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/store"
)

func main() {
	configPath := flag.String("config", "newsriver.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("Failed to load config", "path", *configPath, "error", err)
	}

	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	logging.Init(cfg.LogDir, level)
	defer logging.Close()

	if cfg.APIToken == "" {
		logging.Fatal("API token not configured")
	}

	db, err := store.Open(cfg.DatabasePath, 1)
	if err != nil {
		logging.Fatal("Failed to open database", "path", cfg.DatabasePath, "error", err)
	}
	defer db.Close()

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(db, cfg.APIToken).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info("API listening", "addr", cfg.APIAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}
