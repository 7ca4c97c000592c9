// Package config loads the core's recognized configuration options from a
// global file merged with a realm-scoped override file, the same two-tier
// JSON layering the source tooling uses for its own settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StorageKind selects the blob-store backend.
type StorageKind string

const (
	StorageMemory     StorageKind = "memory"
	StorageFilesystem StorageKind = "filesystem"
)

// Config is the set of options recognized by the core.
type Config struct {
	Storage StorageConfig `json:"storage"`
	Auth    AuthConfig    `json:"auth"`
	Limits  LimitsConfig  `json:"limits"`
}

type StorageConfig struct {
	Kind     StorageKind `json:"kind"`
	BasePath string      `json:"base_path,omitempty"`
}

type AuthConfig struct {
	MaxBranchTTLMs int64  `json:"max_branch_ttl_ms"`
	SharedSecret   string `json:"shared_secret,omitempty"`
}

type LimitsConfig struct {
	MaxFileBytes int64 `json:"max_file_bytes"`
}

// MaxBranchTTL returns the configured maximum branch TTL as a duration.
func (c *Config) MaxBranchTTL() time.Duration {
	return time.Duration(c.Auth.MaxBranchTTLMs) * time.Millisecond
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Kind: StorageMemory,
		},
		Auth: AuthConfig{
			MaxBranchTTLMs: int64(time.Hour / time.Millisecond),
		},
		Limits: LimitsConfig{
			MaxFileBytes: 4 * 1024 * 1024,
		},
	}
}

func globalConfigPath() (string, error) {
	return GlobalPath()
}

// GlobalPath returns the path to the global config file, ~/.realmconfig.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return filepath.Join(home, ".realmconfig"), nil
}

// Load builds a Config starting from Default, merged with the global config
// file (if present), merged with realmConfigPath (if non-empty and present).
// A later layer's non-zero fields override an earlier layer's.
func Load(realmConfigPath string) (*Config, error) {
	cfg := Default()

	globalPath, err := globalConfigPath()
	if err == nil {
		if data, err := os.ReadFile(globalPath); err == nil {
			var global Config
			if err := json.Unmarshal(data, &global); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", globalPath, err)
			}
			merge(cfg, &global)
		}
	}

	if realmConfigPath != "" {
		if data, err := os.ReadFile(realmConfigPath); err == nil {
			var override Config
			if err := json.Unmarshal(data, &override); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", realmConfigPath, err)
			}
			merge(cfg, &override)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", realmConfigPath, err)
		}
	}

	return cfg, nil
}

// Save writes cfg as indented JSON to path.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// merge overlays src's explicitly-set fields onto dst.
func merge(dst, src *Config) {
	if src.Storage.Kind != "" {
		dst.Storage.Kind = src.Storage.Kind
	}
	if src.Storage.BasePath != "" {
		dst.Storage.BasePath = src.Storage.BasePath
	}
	if src.Auth.MaxBranchTTLMs != 0 {
		dst.Auth.MaxBranchTTLMs = src.Auth.MaxBranchTTLMs
	}
	if src.Auth.SharedSecret != "" {
		dst.Auth.SharedSecret = src.Auth.SharedSecret
	}
	if src.Limits.MaxFileBytes != 0 {
		dst.Limits.MaxFileBytes = src.Limits.MaxFileBytes
	}
}
