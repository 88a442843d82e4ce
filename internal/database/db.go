package database

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn   *sql.DB
	dbType string
}

type Config struct {
	Type       string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string
}

func NewDB(config Config) (*DB, error) {
	var conn *sql.DB
	var err error

	switch config.Type {
	case "sqlite":
		conn, err = sql.Open("sqlite3", config.SQLitePath)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Name)
		conn, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, dbType: config.Type}

	// Only create tables for SQLite; postgres schemas come from migrations.
	if config.Type == "sqlite" {
		if err := db.createTables(); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		photo_filename TEXT NOT NULL,
		video_filename TEXT NOT NULL,
		photo_content_type TEXT NOT NULL,
		video_content_type TEXT NOT NULL,
		video_size INTEGER NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		is_present INTEGER NOT NULL DEFAULT 0,
		confidence REAL,
		reason TEXT NOT NULL DEFAULT '',
		verdict_json TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id),
		idx INTEGER NOT NULL,
		timestamp REAL NOT NULL,
		status TEXT NOT NULL,
		filename TEXT NOT NULL,
		box_json TEXT,
		UNIQUE (analysis_id, idx)
	);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

// RunMigrations applies pending SQL migrations; a no-op for SQLite.
func (db *DB) RunMigrations(migrationsPath string) error {
	migrator := NewMigrator(db.conn, db.dbType)
	if err := migrator.Initialize(); err != nil {
		return err
	}
	return migrator.Run(migrationsPath)
}
