package main

import (
	"fmt"
	"os"

	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/database"
	"github.com/mesaqr/api/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "mesaqr-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migrations applied")
}
