package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/persistence"
)

// models lists every persisted type in dependency order.
func models() []interface{} {
	return []interface{}{
		&catalog.Marketplace{},
		&catalog.Product{},
		&catalog.ProductMarketplaceLink{},
		&catalog.Order{},
		&catalog.OrderItem{},
		&catalog.Offer{},
		&catalog.StockHistory{},
		&catalog.PriceHistory{},
		&persistence.CredentialModel{},
	}
}

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

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
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		log.Info("Applying schema migrations", zap.Int("models", len(models())))
		if err := db.DB.AutoMigrate(models()...); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Schema is up to date")

	case "status":
		migrator := db.DB.Migrator()
		for _, model := range models() {
			stmt := db.DB.Model(model).Statement
			if err := stmt.Parse(model); err != nil {
				log.Fatal("Failed to parse model", zap.Error(err))
			}
			fmt.Printf("  %-28s %v\n", stmt.Table, migrator.HasTable(model))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`MarketSync Schema Migration Tool

Usage:
  migrate [flags] <command>

Commands:
  up        Create or update all tables to match the current models
  status    Show which tables exist

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)

Environment Variables:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE`)
}
