package main

import (
	"context"
	"fmt"
	"log/slog"

	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/db/migrate"
	"callbridge/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type stores struct {
	users    auth.Repository
	sessions calls.Repository
	close    func(ctx context.Context)
}

// openStores selects the backend from the DATABASE_URL scheme.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.DB.IsPostgres() {
		return openPostgresStores(ctx, cfg, log)
	}
	return openMongoStores(ctx, cfg, log)
}

func openPostgresStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.DB.MigrateOnStart {
		if err := migrate.Run(cfg.DB.URL, migrate.DirectionUp); err != nil {
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.DB.URL, utils.PostgresPoolConfig{})
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	log.Info("store ready", "driver", config.DriverPostgres)
	return stores{
		users:    auth.NewPostgresRepo(db),
		sessions: calls.NewPostgresRepo(db),
		close:    func(context.Context) { _ = db.Close() },
	}, nil
}

func openMongoStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	client, database, err := utils.OpenMongo(ctx, utils.MongoConfig{
		URI:      cfg.DB.URL,
		Database: cfg.DB.MongoDatabase(),
	})
	if err != nil {
		return stores{}, fmt.Errorf("mongo: %w", err)
	}

	users := auth.NewMongoRepo(database)
	sessions := calls.NewMongoRepo(database)
	if err := users.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return stores{}, err
	}
	if err := sessions.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return stores{}, err
	}

	log.Info("store ready", "driver", config.DriverMongo, "database", database.Name())
	return stores{
		users:    users,
		sessions: sessions,
		close:    func(ctx context.Context) { _ = client.Disconnect(ctx) },
	}, nil
}
