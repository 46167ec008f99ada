package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/repository"
	"github.com/CutzuDev/itec2025/pkg/database"
	"github.com/CutzuDev/itec2025/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	l := log.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("sql schema migrated")

	if cfg.Store.Driver != storeCassandra {
		return nil
	}

	session, err := repository.NewCassandraSession(cfg.Cassandra)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := repository.NewCassandraMessageRepository(session).EnsureSchema(ctx); err != nil {
		return fmt.Errorf("cassandra schema: %w", err)
	}
	l.Info().Str("keyspace", cfg.Cassandra.Keyspace).Msg("cassandra schema migrated")
	return nil
}
