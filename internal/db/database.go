package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

// InitDatabase initializes SQLite database and creates tables
func InitDatabase(dbPath string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var err error
	DB, err = sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables
	if err := CreateTables(DB); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("Database initialized at: %s", dbPath)
	return nil
}

// CreateTables creates all necessary tables
func CreateTables(database *sql.DB) error {
	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		presentation_id TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME
	);`

	if _, err := database.Exec(createSessionsTable); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	createResponsesTable := `
	CREATE TABLE IF NOT EXISTS poll_responses (
		session_id TEXT NOT NULL,
		poll_id TEXT NOT NULL,
		option_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, poll_id, option_id, user_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);`

	if _, err := database.Exec(createResponsesTable); err != nil {
		return fmt.Errorf("failed to create poll_responses table: %w", err)
	}

	// Index on presentation_id for session history lookups
	createIndex := `CREATE INDEX IF NOT EXISTS idx_presentation_id ON sessions(presentation_id);`
	if _, err := database.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	// Index on poll_id for result queries
	createPollIndex := `CREATE INDEX IF NOT EXISTS idx_poll_id ON poll_responses(session_id, poll_id);`
	if _, err := database.Exec(createPollIndex); err != nil {
		return fmt.Errorf("failed to create poll_id index: %w", err)
	}

	log.Println("Database tables created successfully")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
