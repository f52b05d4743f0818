package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/timpalpant/postflop"
	"github.com/timpalpant/postflop/tree"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Get missing: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Delete missing: expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "", []byte{1}); err == nil {
		t.Error("expected error for empty name")
	}

	if err := s.Put(ctx, "b", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "a", []byte{4}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "b", []byte{5, 6}); err != nil {
		t.Fatal(err)
	}

	data, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{5, 6}) {
		t.Errorf("got %v, expected overwritten value", data)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "a" || entries[1].Name != "b" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Size != 1 || entries[1].Size != 2 {
		t.Errorf("unexpected sizes: %+v", entries)
	}
	if entries[0].UpdatedAt.IsZero() {
		t.Error("missing update time")
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "a"); errors.Cause(err) != ErrNotFound {
		t.Errorf("Get deleted: expected ErrNotFound, got %v", err)
	}
}

func testGameRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()
	cc, err := postflop.ParseCardConfig("AA,KK", "QQ,AK", "QsJh2h7c3d")
	if err != nil {
		t.Fatal(err)
	}
	tc := tree.DefaultTreeConfig(tree.River, 6, 25)
	g := postflop.New()
	if err := g.Init(cc, tc); err != nil {
		t.Fatal(err)
	}
	if err := g.AllocateMemory(false); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Solve(10, 0); err != nil {
		t.Fatal(err)
	}

	if err := SaveGame(ctx, s, "river", g); err != nil {
		t.Fatal(err)
	}
	loaded := postflop.New()
	if err := LoadGame(ctx, s, "river", loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.State() != g.State() || loaded.Iteration() != g.Iteration() {
		t.Errorf("loaded %v game at iteration %d", loaded.State(), loaded.Iteration())
	}
	if err := LoadGame(ctx, s, "missing", loaded); errors.Cause(err) != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "games.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Fatalf("Open returned %T", s)
	}

	testStore(t, s)
	testGameRoundTrip(t, s)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POSTFLOP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTFLOP_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*Postgres); !ok {
		t.Fatalf("Open returned %T", s)
	}

	for _, name := range []string{"a", "b", "river"} {
		s.Delete(ctx, name)
	}
	testStore(t, s)
	testGameRoundTrip(t, s)
}
