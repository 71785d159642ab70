package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"dietledger/internal/catalog"
	"dietledger/internal/config"
	"dietledger/internal/core"
	"dietledger/internal/ledger/memory"
	"dietledger/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
	_, err := FromAppConfig(&config.Config{DataBackend: "sheets"})
	if err == nil || !strings.Contains(err.Error(), "sqlite, memory") {
		t.Errorf("unknown backend should fail listing the accepted values, got %v", err)
	}
	if err := (Config{Type: "postgres"}).Validate(); err == nil || !strings.Contains(err.Error(), "sqlite, memory") {
		t.Errorf("Validate should list the accepted values, got %v", err)
	}
	got, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDirectory: "seed"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != SQLiteBackend || got.SQLiteDBPath != "x.db" || got.DataDirectory != "seed" {
		t.Fatalf("unexpected backend config %+v", got)
	}
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	cat := catalog.Default()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()}, cat)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := res.Store.(*memory.Store); !ok {
			t.Fatalf("store = %T", res.Store)
		}
		if res.Cleanup != nil {
			t.Error("memory store needs no cleanup")
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.db")
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path}, cat)
		if err != nil {
			t.Fatal(err)
		}
		defer res.Cleanup()
		if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
			t.Fatalf("store = %T", res.Store)
		}
		if err := res.Store.Upsert(ctx, core.NewDate(2024, 5, 1), core.Entry{Category: "cereal", Amount: 1, Unit: core.UnitExchange}); err != nil {
			t.Fatalf("store should be usable: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend}, cat); err == nil {
			t.Error("sqlite without path should fail")
		}
		if _, err := f.CreateBackend(ctx, Config{Type: "postgres"}, cat); err == nil {
			t.Error("unknown type should fail")
		}
	})
}
