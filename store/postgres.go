package store

import (
	"context"
	_ "embed"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores games in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging postgres")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO games(name, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		  SET data = EXCLUDED.data,
		      updated_at = EXCLUDED.updated_at
	`, name, data, time.Now().UTC())
	return errors.Wrapf(err, "storing %q", name)
}

func (p *Postgres) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM games WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	} else if err != nil {
		return nil, errors.Wrapf(err, "loading %q", name)
	}
	return data, nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, octet_length(data), updated_at
		  FROM games
		 ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "listing games")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Size, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM games WHERE name = $1`, name)
	if err != nil {
		return errors.Wrapf(err, "deleting %q", name)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
