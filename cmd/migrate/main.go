package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/EgehanKilicarslan/tokenguard/internal/config"
	"github.com/EgehanKilicarslan/tokenguard/internal/database"
	"github.com/EgehanKilicarslan/tokenguard/internal/logger"
)

const usage = `Usage: migrate <command> [args]

Commands (goose):
  up                   Apply all pending migrations
  up-to VERSION        Apply migrations up to VERSION
  down                 Roll back the latest migration
  down-to VERSION      Roll back to VERSION
  redo                 Re-run the latest migration
  reset                Roll back all migrations
  status               Print the status of all migrations
  version              Print the current schema version`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	_ = godotenv.Load()
	cfg := config.LoadConfig()
	appLogger := logger.New(cfg)

	sqlDB, err := sql.Open("postgres", database.DSN(cfg))
	if err != nil {
		appLogger.Error("❌ [Migrate] Failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		appLogger.Error("❌ [Migrate] Database unreachable", "error", err)
		os.Exit(1)
	}

	appLogger.Info("🔄 [Migrate] Running goose command", "command", command, "args", args)
	if err := database.RunMigrations(sqlDB, command, args...); err != nil {
		appLogger.Error("❌ [Migrate] Migration failed", "error", err)
		os.Exit(1)
	}

	appLogger.Info("✅ [Migrate] Done", "command", command)
}
