package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hausverwaltung/backend/internal/infrastructure/config"
	"github.com/hausverwaltung/backend/internal/infrastructure/logger"
	"github.com/hausverwaltung/backend/internal/infrastructure/persistence"
)

// The schema is derived from the persistence models, so migrating is a
// single idempotent step. This command exists so deployments can migrate
// before rolling the server, instead of relying on server startup.
func main() {
	var (
		logLevel string
		dryRun   bool
	)
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&dryRun, "dry-run", false, "Connect and ping, but do not change the schema")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(logLevel))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	log.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	if dryRun {
		log.Info("Dry run: schema unchanged")
		return
	}

	if err := db.Migrate(); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Schema migrated successfully")
}
