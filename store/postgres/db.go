// Copyright 2026 The OAuthForge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/001_initial_schema.up.sql
var InitialSchema string

// DB wraps the connection pool every Postgres repository in this package
// (client, consent, grant, session, audit) is built around.
//
// Purpose: Shared handle for the OAuth core's relational storage.
// Domain: OAuth2
type DB struct {
	pool *pgxpool.Pool
}

// Config holds the settings needed to stand up DB's connection pool. There
// is no env-parsing layer here; the host application is expected to have
// already turned its own configuration source into a Config value.
//
// Purpose: Structured connection settings for the OAuth core's store.
// Domain: OAuth2
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a pooled connection is reused before
	// being recycled. Zero means pgxpool's own default.
	ConnMaxLifetime time.Duration

	// ApplicationName is reported to Postgres as application_name, so
	// authorization-code/token traffic from this core is distinguishable
	// in pg_stat_activity from the rest of a host application's queries.
	ApplicationName string
}

// New opens a pooled connection using cfg and pings it once before
// returning, so a misconfigured pool fails fast at startup rather than on
// the first grant lookup.
//
// Purpose: Construct the pool this core's repositories share.
// Domain: OAuth2
// Errors: connection-string parsing, pool construction, and ping failures
func New(ctx context.Context, cfg Config) (*DB, error) {
	appName := cfg.ApplicationName
	if appName == "" {
		appName = "oauthforge"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d application_name=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		appName,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close releases every connection in the pool. Safe to call once all
// in-flight repository calls have returned.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying pgx pool for repositories that need to run
// queries directly rather than through a higher-level wrapper.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Stats reports the pool's current occupancy statistics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Migrate executes script against the pool. It is meant for the embedded
// InitialSchema at startup and for tests; it is not a migration-versioning
// system and tracks no applied-migrations table.
//
// Purpose: Apply schema DDL to a fresh or test database.
// Domain: OAuth2
// Errors: SQL execution errors
func (db *DB) Migrate(ctx context.Context, script string) error {
	_, err := db.pool.Exec(ctx, script)
	return err
}
