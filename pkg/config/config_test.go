package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != Defaults().Port {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.Sensitivity != Defaults().Sensitivity {
		t.Fatalf("expected default sensitivity, got %f", cfg.Sensitivity)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	original := Defaults()
	original.UserName = "ada"
	original.Keywords = []string{"hey assistant"}
	original.Sensitivity = 0.7

	if err := Save(path, original); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.UserName != original.UserName {
		t.Fatalf("expected userName %q, got %q", original.UserName, loaded.UserName)
	}
	if len(loaded.Keywords) != 1 || loaded.Keywords[0] != "hey assistant" {
		t.Fatalf("expected keywords to round-trip, got %v", loaded.Keywords)
	}
	if loaded.Sensitivity != original.Sensitivity {
		t.Fatalf("expected sensitivity %f, got %f", original.Sensitivity, loaded.Sensitivity)
	}
}

func TestSilenceTimeoutDuration(t *testing.T) {
	cfg := Configuration{SilenceTimeoutMs: 3000}
	if cfg.SilenceTimeout().Seconds() != 3 {
		t.Fatalf("expected 3s, got %v", cfg.SilenceTimeout())
	}
}

func TestLoadEmptyPathIsNotAnError(t *testing.T) {
	oldEnv := os.Getenv("PORT")
	defer os.Setenv("PORT", oldEnv)
	os.Unsetenv("PORT")

	_, err := Load("", nil)
	if err != nil {
		t.Fatalf("expected no error loading with empty path, got %v", err)
	}
}
