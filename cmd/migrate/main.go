package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"hrchat/config"
	"hrchat/pkg/database"
	"hrchat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const usage = `
HR Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply the chat schema
  status      Show database connection status and table sizes
  reset       Drop all chat tables and re-apply the schema (DANGEROUS)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

var tables = []string{"chat_users", "chat_threads", "chat_thread_members", "chat_messages"}

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DBURL, l)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer pool.Close()

	switch command := flag.Arg(0); command {
	case "up":
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Schema applied")
	case "status":
		showStatus(ctx, pool)
	case "reset":
		log.Println("Dropping all chat tables")
		if err := database.Reset(ctx, pool); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed")
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, pool *pgxpool.Pool) {
	if err := database.HealthCheck(ctx, pool); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range tables {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %-20s does not exist", table)
			continue
		}
		var count int64
		_ = pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&count)
		log.Printf("Table %-20s exists (%d rows)", table, count)
	}
}
