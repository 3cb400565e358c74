package main

import (
	"database/sql"
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
	"github.com/uma-arai/sbcntr-pickup/internal/common/config"
	"github.com/uma-arai/sbcntr-pickup/internal/common/logger"
	"github.com/uma-arai/sbcntr-pickup/migrations"
)

func main() {
	down := flag.Int("down", 0, "指定した数だけマイグレーションを戻す")
	flag.Parse()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logger.New(cfg.Env, "sbcntr-pickup-migrate")

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if *down > 0 {
		m, err := migrations.New(db)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare migrations")
		}
		if err := m.Steps(-*down); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Int("steps", *down).Msg("failed to roll back migrations")
		}
		logger.Info().Int("steps", *down).Msg("migrations rolled back")
		return
	}

	if err := migrations.Up(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}
	logger.Info().Msg("migrations applied")
}
