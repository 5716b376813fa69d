// Package db wraps the Postgres connection the optional pricing overlay
// and audit sink share, the way the teacher's internal/shared/database
// package wrapped *sql.DB for the gateway's api_keys/model_pricing/
// gateway_logs tables.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB is a thin wrapper around *sql.DB with the connection pool settings
// the teacher used.
type DB struct {
	Conn *sql.DB
}

// New opens and pings a Postgres connection.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Conn: conn}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error { return d.Conn.Close() }
