package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8080" {
		t.Fatalf("expected 8080, got %q (%v)", p, err)
	}

	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestTypedFallbacks(t *testing.T) {
	t.Setenv("TEST_INT", "nope")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}

	t.Setenv("TEST_DURATION", "90s")
	if got := Duration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}

	t.Setenv("TEST_BOOL", "yes")
	if !Bool("TEST_BOOL", false) {
		t.Fatal("expected truthy value")
	}

	t.Setenv("TEST_FLOAT", "0.25")
	if got := Float("TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	t.Setenv("TEST_FLOAT", "half")
	if got := Float("TEST_FLOAT", 1); got != 1 {
		t.Fatalf("expected fallback 1, got %v", got)
	}

	t.Setenv("TEST_LIST", " a, ,b ")
	got := List("TEST_LIST", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestLoadDotenvKeepsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_A=from-file\nDOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("DOTENV_A", "from-env")
	t.Setenv("DOTENV_B", "")
	os.Unsetenv("DOTENV_B")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv("DOTENV_A"); got != "from-env" {
		t.Fatalf("existing env overridden: %q", got)
	}
	if got := os.Getenv("DOTENV_B"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}

	if err := LoadDotenv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
