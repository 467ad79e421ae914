// authd is the backend auth service: it owns the user store and credentials,
// and serves the pattern-addressed RPC channel the gateway calls over.
// Dependencies are built here in order (store, validator, issuer, service,
// dispatcher) and passed explicitly.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/authstack/authstack/internal/authd"
	"github.com/authstack/authstack/internal/core/service"
	"github.com/authstack/authstack/internal/infrastructure/config"
	mongodb "github.com/authstack/authstack/internal/infrastructure/db/mongo"
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

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	repo := mongodb.NewUserRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("mongo index creation failed")
	}

	validator := service.NewCredentialValidator(repo)
	issuer := service.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(repo, validator, issuer, cfg.BcryptCost)

	server := authd.NewServer(authService, log)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		_ = server.Close()
	}()

	if err := server.Listen(cfg.RPC.Addr()); err != nil {
		log.Fatal().Err(err).Msg("rpc server failed")
	}
}
