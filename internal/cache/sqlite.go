package cache

import (
	"context"
	"database/sql"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteBackend stores cache records in an embedded SQLite database.
type sqliteBackend struct {
	db *sql.DB

	mu      sync.Mutex
	ensured bool
}

// newSQLiteBackend opens path, creating the database and table when create
// is set. Without create, a missing file yields (nil, nil).
func newSQLiteBackend(path string, create bool) (Backend, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "cache: open sqlite %s", path)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	b := &sqliteBackend{db: db}
	if create {
		if err := b.ensureTable(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return b, nil
}

// ensureTable creates the key/payload table and its lookup index. Idempotent
// and run at most once per handle, so a handle first opened by a read still
// gets the table before its first write.
func (b *sqliteBackend) ensureTable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ensured {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (url TEXT, blob TEXT)`,
		`CREATE INDEX IF NOT EXISTS idx_` + TableName + `_url ON ` + TableName + `(url)`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return eris.Wrap(err, "cache: ensure sqlite table")
		}
	}
	b.ensured = true
	return nil
}

func (b *sqliteBackend) Get(ctx context.Context, url string) (string, bool, error) {
	var blob string
	err := b.db.QueryRowContext(ctx,
		`SELECT blob FROM `+TableName+` WHERE url = ? ORDER BY rowid LIMIT 1`,
		url,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "cache: sqlite get")
	}
	return blob, true, nil
}

func (b *sqliteBackend) Put(ctx context.Context, url, blob string) error {
	if err := b.ensureTable(); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO `+TableName+` (url, blob) VALUES (?, ?)`,
		url, blob,
	)
	return eris.Wrap(err, "cache: sqlite put")
}

func (b *sqliteBackend) Count(ctx context.Context) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite count")
	}
	return n, nil
}

func (b *sqliteBackend) Clear(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM `+TableName)
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite clear")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "cache: sqlite rows affected")
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
