// The gateway is the HTTP edge of the system. It owns the single persistent
// RPC connection to authd and relays auth operations over it; it holds no
// user state of its own.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/authstack/authstack/internal/api"
	"github.com/authstack/authstack/internal/infrastructure/config"
	"github.com/authstack/authstack/internal/rpc"
	"github.com/authstack/authstack/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// Connect failure is logged inside Dial; the gateway still starts and
	// Send calls fail fast until the backend comes back.
	client := rpc.Dial(cfg.RPC.Addr(), log)
	defer client.Close()

	e := api.NewRouter(client, cfg.JWTSecret, cfg.RPC.Timeout, log)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("gateway listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
