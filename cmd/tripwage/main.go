package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/driverbook/tripwage/internal/config"
	"github.com/driverbook/tripwage/internal/handlers"
	"github.com/driverbook/tripwage/internal/storage"
	"github.com/driverbook/tripwage/internal/storage/dbstorage"
	"github.com/driverbook/tripwage/internal/storage/dual"
	"github.com/driverbook/tripwage/internal/storage/fsstorage"
	"github.com/driverbook/tripwage/internal/usecase"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	flags := config.GetAppFlags()
	cfg, err := config.NewAppConf(flags)
	if err != nil {
		logger.Error("read config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	needFS := cfg.Backend == dual.BackendFirestore || cfg.Backend == dual.BackendDual
	needPG := cfg.Backend == dual.BackendPostgres || cfg.Backend == dual.BackendDual

	var fsStores, pgStores *storage.Stores

	if needFS {
		fsBackend, err := fsstorage.New(ctx, cfg.ProjectID, cfg.CredentialsFile)
		if err != nil {
			logger.Error("connect firestore", "error", err)
		} else {
			defer fsBackend.Close()
			s := fsBackend.Stores()
			fsStores = &s
		}
	}

	if needPG {
		pgBackend, err := dbstorage.NewDB(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("connect postgres", "error", err)
		} else if err = pgBackend.InitDB(); err != nil {
			logger.Error("migrate postgres schema", "error", err)
			pgBackend.Close()
		} else {
			defer pgBackend.Close()
			s := pgBackend.Stores()
			pgStores = &s
		}
	}

	stores, err := dual.Select(cfg.Backend, cfg.ReadPrimary, fsStores, pgStores, logger)
	if err != nil {
		logger.Error("select storage backend", "error", err)
		os.Exit(1)
	}

	service := usecase.NewService(stores, cfg.Wage)
	app := handlers.NewAppHandler(service, cfg.SigningKey, logger)
	router := handlers.NewRouter(app)

	logger.Info("starting server", "address", cfg.AppAddress, "backend", cfg.Backend)
	if err := http.ListenAndServe(cfg.AppAddress, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
