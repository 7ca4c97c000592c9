package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Kind != StorageMemory {
		t.Fatalf("default storage kind = %v, want memory", cfg.Storage.Kind)
	}
	if cfg.Limits.MaxFileBytes != 4*1024*1024 {
		t.Fatalf("default max file bytes = %d, want 4 MiB", cfg.Limits.MaxFileBytes)
	}
	if cfg.MaxBranchTTL().String() != "1h0m0s" {
		t.Fatalf("default max branch ttl = %v, want 1h", cfg.MaxBranchTTL())
	}
}

func TestLoadMergesOverrideOverDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	overridePath := filepath.Join(t.TempDir(), "realm.json")
	contents := `{"storage":{"kind":"filesystem","base_path":"/var/realm"},"limits":{"max_file_bytes":1024}}`
	if err := os.WriteFile(overridePath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cfg, err := Load(overridePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Kind != StorageFilesystem || cfg.Storage.BasePath != "/var/realm" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Limits.MaxFileBytes != 1024 {
		t.Fatalf("override max file bytes = %d, want 1024", cfg.Limits.MaxFileBytes)
	}
	// auth default untouched by override.
	if cfg.Auth.MaxBranchTTLMs == 0 {
		t.Fatal("expected default auth ttl to survive merge")
	}
}

func TestLoadWithMissingOverrideReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Kind != StorageMemory {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.Storage.Kind = StorageFilesystem
	cfg.Storage.BasePath = "/data/realms"

	globalPath := filepath.Join(home, ".realmconfig")
	if err := Save(cfg, globalPath); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Storage.Kind != StorageFilesystem || loaded.Storage.BasePath != "/data/realms" {
		t.Fatalf("round trip mismatch: %+v", loaded.Storage)
	}
}
