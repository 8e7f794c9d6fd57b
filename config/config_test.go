package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAppliesDefaultsWhenFileMissing(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ListenAddr != ":8080" || c.Urgency != 0.03 {
		t.Fatalf("expected defaults applied, got %+v", c)
	}
}

func TestNewLoadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9090\"\nurgency: 0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ListenAddr != ":9090" || c.Urgency != 0.1 {
		t.Fatalf("expected YAML overrides applied, got %+v", c)
	}
}

func TestNewEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("P2C_LISTEN_ADDR", ":7070")

	c, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ListenAddr != ":7070" {
		t.Fatalf("expected env override to win, got %v", c.ListenAddr)
	}
}

func TestValidateRejectsBadUrgency(t *testing.T) {
	c := &Config{}
	c.setDefaults()
	c.Urgency = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for urgency=0")
	}
}

func TestValidateRejectsUnderutilizedAboveLoaded(t *testing.T) {
	c := &Config{}
	c.setDefaults()
	c.UnderutilizedBelow = c.LoadedAbove
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when underutilized_below >= loaded_above")
	}
}
