package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("CFG_TEST_STRING", "value")
	if got := String("CFG_TEST_STRING", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := String("CFG_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestRequiredString(t *testing.T) {
	if _, err := RequiredString("CFG_TEST_REQUIRED_MISSING"); err == nil {
		t.Fatal("expected error for missing required key")
	}
	t.Setenv("CFG_TEST_REQUIRED", "set")
	v, err := RequiredString("CFG_TEST_REQUIRED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "set" {
		t.Fatalf("expected set, got %q", v)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "42")
	if got := Int("CFG_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("CFG_TEST_INT_BAD", "not-a-number")
	if got := Int("CFG_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("CFG_TEST_DUR", "5m")
	if got := Duration("CFG_TEST_DUR", time.Second); got != 5*time.Minute {
		t.Fatalf("expected 5m, got %s", got)
	}
	t.Setenv("CFG_TEST_DUR_SECONDS", "30")
	if got := Duration("CFG_TEST_DUR_SECONDS", time.Second); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	if got := Duration("CFG_TEST_DUR_MISSING", 2*time.Second); got != 2*time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestPort(t *testing.T) {
	t.Setenv("CFG_TEST_PORT", "8081")
	v, err := Port("CFG_TEST_PORT", "8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "8081" {
		t.Fatalf("expected 8081, got %q", v)
	}
	t.Setenv("CFG_TEST_PORT_BAD", "99999")
	if _, err := Port("CFG_TEST_PORT_BAD", "8080"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
