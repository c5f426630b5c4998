// Package db provides PostgreSQL-backed stores for LawnWatch. Repositories
// accept a DBTX so the same code runs against *pgxpool.Pool or inside a
// pgx.Tx.
//
// Expected tables:
//
//	training_samples(id uuid, treatment_type text, effectiveness int,
//	    weather_conditions jsonb, data_quality double precision,
//	    confidence double precision, created_at timestamptz)
//	scheduled_treatments(id uuid, user_id uuid, lawn_id uuid,
//	    treatment_type text, latitude double precision,
//	    longitude double precision, timezone text,
//	    scheduled_date timestamptz, status text)
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger is satisfied by *pgxpool.Pool. Used by health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}
