package store

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite stores games in a local database file.
type SQLite struct {
	db *sqlx.DB
}

var _ Store = (*SQLite)(nil)

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	// Writers would otherwise fail with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games(name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		  SET data = excluded.data,
		      updated_at = excluded.updated_at
	`, name, data, time.Now().UnixNano())
	return errors.Wrapf(err, "storing %q", name)
}

func (s *SQLite) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM games WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	} else if err != nil {
		return nil, errors.Wrapf(err, "loading %q", name)
	}
	return data, nil
}

type sqliteEntry struct {
	Name      string `db:"name"`
	Size      int64  `db:"size"`
	UpdatedAt int64  `db:"updated_at"`
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	var rows []sqliteEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT name, length(data) AS size, updated_at
		  FROM games
		 ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "listing games")
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Name: r.Name, Size: r.Size, UpdatedAt: time.Unix(0, r.UpdatedAt)}
	}
	return entries, nil
}

func (s *SQLite) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE name = ?`, name)
	if err != nil {
		return errors.Wrapf(err, "deleting %q", name)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
