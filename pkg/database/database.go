package database

import (
	"database/sql"
	"fmt"
	"time"

	"devpulse/configs"

	_ "github.com/lib/pq"
)

// DSN builds the lib/pq connection string for dbName.
func DSN(cfg configs.Config, dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, dbName, cfg.DBSSLMode)
}

// Open opens and pings a Postgres pool.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func ConnectDB(cfg configs.Config) (*sql.DB, error) {
	return Open(DSN(cfg, cfg.DBName))
}
