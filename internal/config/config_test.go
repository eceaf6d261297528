package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Keywords = []string{"alert", "breach"}
	cfg.CooldownMinutes = 15
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if len(loaded.Keywords) != 2 || loaded.Keywords[0] != "alert" {
		t.Errorf("Keywords = %v, want [alert breach]", loaded.Keywords)
	}
	if loaded.CooldownMinutes != 15 {
		t.Errorf("CooldownMinutes = %d, want 15", loaded.CooldownMinutes)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg := LoadOrDefault("/nonexistent/config.toml")
	if cfg.DefaultLimit != 500 {
		t.Errorf("DefaultLimit = %d, want 500", cfg.DefaultLimit)
	}
	if cfg.CooldownMinutes != 10 {
		t.Errorf("CooldownMinutes = %d, want 10", cfg.CooldownMinutes)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("keywords = [\"x\"]\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeepThreshold != 1000 {
		t.Errorf("DeepThreshold = %d, want default 1000", cfg.DeepThreshold)
	}
	if len(cfg.Keywords) != 1 || cfg.Keywords[0] != "x" {
		t.Errorf("Keywords = %v, want [x]", cfg.Keywords)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestWatchReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	stop, err := Watch(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	cfg := Default()
	cfg.Keywords = []string{"updated"}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-reloaded:
		if len(got.Keywords) != 1 || got.Keywords[0] != "updated" {
			t.Errorf("reloaded Keywords = %v, want [updated]", got.Keywords)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}
