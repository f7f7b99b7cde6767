package cache

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Pool is the subset of pgxpool.Pool the backend uses, satisfied by pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// postgresBackend stores cache records in a remote PostgreSQL table.
type postgresBackend struct {
	pool Pool
}

// newPostgresBackend connects to the database named by the locator. Both
// "PG:key=value" and postgres:// connection strings are accepted. Table
// creation is attempted when create is set; failure there (for instance a
// read-only role) is logged and lookups proceed against whatever exists.
func newPostgresBackend(ctx context.Context, locator string, create bool) (Backend, error) {
	connString := strings.TrimPrefix(locator, "PG:")

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: ping postgres")
	}

	b := &postgresBackend{pool: pool}
	if create {
		if err := b.ensureTable(ctx); err != nil {
			zap.L().Warn("cache: could not ensure postgres table, writes may fail",
				zap.Error(err),
			)
		}
	}
	return b, nil
}

// newPostgresBackendWithPool wires an existing pool, used by tests.
func newPostgresBackendWithPool(pool Pool) *postgresBackend {
	return &postgresBackend{pool: pool}
}

func (b *postgresBackend) ensureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (url TEXT, blob TEXT)`,
		`CREATE INDEX IF NOT EXISTS idx_` + TableName + `_url ON ` + TableName + `(url)`,
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "cache: ensure postgres table")
		}
	}
	return nil
}

func (b *postgresBackend) Get(ctx context.Context, url string) (string, bool, error) {
	var blob string
	// ctid ordering keeps first-match-wins parity with the sqlite backend's
	// rowid; the table is append-only so physical order is insertion order.
	err := b.pool.QueryRow(ctx,
		`SELECT blob FROM `+TableName+` WHERE url = $1 ORDER BY ctid LIMIT 1`,
		url,
	).Scan(&blob)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "cache: postgres get")
	}
	return blob, true, nil
}

func (b *postgresBackend) Put(ctx context.Context, url, blob string) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO `+TableName+` (url, blob) VALUES ($1, $2)`,
		url, blob,
	)
	return eris.Wrap(err, "cache: postgres put")
}

func (b *postgresBackend) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := b.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "cache: postgres count")
	}
	return n, nil
}

func (b *postgresBackend) Clear(ctx context.Context) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM `+TableName)
	if err != nil {
		return 0, eris.Wrap(err, "cache: postgres clear")
	}
	return tag.RowsAffected(), nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
