package pg

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	logger *slog.Logger
	client *pgxpool.Pool
	types  atomic.Pointer[pgtype.Map]
}

func New(ctx context.Context, logger *slog.Logger, dataSourceName string) (*DB, error) {

	dsn, err := pgxpool.ParseConfig(dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %v", err)
	}

	db := new(DB)
	{
		db.logger = logger
	}

	// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNECT-FALLBACK-APPLICATION-NAME
	if dsn.ConnConfig.RuntimeParams["application_name"] == "" {
		dsn.ConnConfig.RuntimeParams["application_name"] = "identity-context" // &fallback_application_name=
	}

	dsn.BeforeAcquire = func(_ context.Context, conn *pgx.Conn) bool {
		_ = db.types.CompareAndSwap(nil, conn.TypeMap())
		return true
	}

	// pgx.ConnConfig
	dsn.ConnConfig.Tracer = debugLog(logger)

	dbo, err := pgxpool.NewWithConfig(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %v", err)
	}

	if err := dbo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %v", err)
	}

	db.client = dbo

	return db, nil
}

func (db *DB) Client() *pgxpool.Pool {
	if db != nil {
		return db.client
	}
	return nil
}

func (db *DB) TypeMap() *pgtype.Map {
	if db != nil {
		types := db.types.Load()
		if types != nil {
			return types
		}
	}
	return defaults.Types.Load()
}

var defaults struct {
	DB    atomic.Pointer[DB]
	Types atomic.Pointer[pgtype.Map]
}

func init() {
	defaults.Types.Store(
		pgtype.NewMap(),
	)
}

func Default() *DB {
	return defaults.DB.Load()
}

func SetDefault(db *DB) {
	defaults.DB.Store(db)
}
