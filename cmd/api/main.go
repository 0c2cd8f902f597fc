package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/danielvega/gatherz-backend/api/routes"
	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/joinrequests"
	"github.com/danielvega/gatherz-backend/internal/settlement"
	"github.com/danielvega/gatherz-backend/internal/wallet"
	"github.com/danielvega/gatherz-backend/pkg/config"
	"github.com/danielvega/gatherz-backend/pkg/db"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/migrate"
	"github.com/danielvega/gatherz-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	walletRepo := wallet.NewRepository(dbClient.DB())
	eventsRepo := events.NewRepository(dbClient.DB())
	joinRequestsRepo := joinrequests.NewRepository(dbClient.DB())

	walletService, err := wallet.NewService(dbClient, walletRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	eventsService, err := events.NewService(eventsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create events service", err)
		os.Exit(1)
	}

	joinRequestsService, err := joinrequests.NewService(joinrequests.ServiceParams{
		Tx:                   dbClient,
		Repo:                 joinRequestsRepo,
		EventsRepo:           eventsRepo,
		Ledger:               walletService,
		Logger:               logg,
		MaxTransitionRetries: cfg.Settlement.MaxTransitionRetries,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create join request service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Tx:            dbClient,
		RequestsRepo:  joinRequestsRepo,
		EventsRepo:    eventsRepo,
		Ledger:        walletService,
		Logger:        logg,
		CommissionBps: cfg.Settlement.CommissionBps,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			eventsService,
			joinRequestsService,
			walletService,
			settlementService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
