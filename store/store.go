// Package store persists encoded games by name in PostgreSQL or SQLite.
package store

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop"
)

// ErrNotFound is returned when no game is stored under a name.
var ErrNotFound = errors.New("game not found")

// Entry describes a stored game.
type Entry struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Store holds encoded games keyed by name.
type Store interface {
	// Put creates or replaces the game stored under name.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns ErrNotFound if nothing is stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns every stored game ordered by name.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Open connects to the store described by dsn and creates its schema.
// postgres:// and postgresql:// URLs select PostgreSQL; anything else is
// a SQLite database path, optionally prefixed with sqlite://.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// SaveGame encodes g and stores it under name.
func SaveGame(ctx context.Context, s Store, name string, g *postflop.Game) error {
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		return err
	}
	return s.Put(ctx, name, buf.Bytes())
}

// LoadGame replaces g with the game stored under name.
func LoadGame(ctx context.Context, s Store, name string, g *postflop.Game) error {
	data, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return g.Load(bytes.NewReader(data))
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("game name is empty")
	}
	return nil
}
