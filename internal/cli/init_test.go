package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dietledger/internal/catalog"
	"dietledger/internal/config"
	"dietledger/internal/log"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("MEMORY_DATA_DIR", t.TempDir())
	t.Setenv("FOODS_DIR", t.TempDir())
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CATALOG_FILE", "")
	return config.Load()
}

func TestBuildWithMemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)
	app, err := Build(context.Background(), cfg, log.Discard(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	if _, err := app.Tracker.GetDay(ctx, "2024-05-01"); err != nil {
		t.Fatalf("tracker should be usable: %v", err)
	}
	if app.Catalog.Len() != catalog.Default().Len() {
		t.Fatalf("expected the built-in catalog")
	}
	res, err := app.Tracker.Recommendations(ctx, "2024-05-01")
	if err != nil || res.Available {
		t.Fatalf("recommendations without key: %+v, %v", res, err)
	}
}

func TestBuildRejectsBadCatalog(t *testing.T) {
	cfg := memoryConfig(t)
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.CatalogFile = path
	if _, err := Build(context.Background(), cfg, log.Discard(), nil); err == nil {
		t.Fatal("expected catalog error")
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json"}
	l := SetupLogger(cfg, log.ComponentCLI)
	if l.Component() != log.ComponentCLI {
		t.Fatalf("component = %q", l.Component())
	}
}
