package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arturoeanton/stackmemory/internal/app"
	"github.com/arturoeanton/stackmemory/pkg/config"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	app.SetupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	slog.Info("starting StackMemory",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
		"mcp_enabled", cfg.MCPEnabled,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.Build(startCtx, cfg, app.Overrides{})
	cancel()
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.MCPEnabled {
		mcpServer := a.MCP()
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	srv := a.HTTP()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		slog.Info("shutting down")
		if err := srv.ShutdownWithTimeout(cfg.Pipeline.Ingest.Timeout); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("fiber listening", "port", cfg.Port)
	if err := srv.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
