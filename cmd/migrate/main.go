package main

import (
	"log"
	"os"

	"ai-secretary-funnel-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		color.Red("Error: Failed to connect to database: %v", err)
		os.Exit(1)
	}

	color.Cyan("🚀 Starting funnel schema migration (%s)\n", db.Dialector.Name())

	if db.Dialector.Name() == "postgres" {
		color.Yellow("Step 1: Extensions")
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
			color.Red("Warn: Failed to create pgcrypto: %v. Continuing...", err)
		}
	}

	color.Yellow("Step 2: AutoMigrate demo_sessions, chat_messages")
	if err := database.AutoMigrate(db); err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}

	// The reload lookup filters by handle and takes the newest row.
	color.Yellow("Step 3: Lookup indexes")
	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_demo_sessions_handle_created ON demo_sessions (instagram_handle, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session_sent ON chat_messages (session_id, timestamp_sent);`,
	}
	for _, sql := range indexSQL {
		if err := db.Exec(sql).Error; err != nil {
			color.Red("Warn: %v. Continuing...", err)
		}
	}

	color.Green("✅ Migration complete")
}
