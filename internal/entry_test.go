package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/noterefs/internal/apperr"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(dir, "vault")
	cfg.SQLite.Path = filepath.Join(dir, "index.db")

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	notes := map[string]string{
		"a.md": "---\ntitle: A\n---\n[[b]]\n",
		"b.md": "[[a]]\n",
	}
	for name, content := range notes {
		if err := os.WriteFile(filepath.Join(cfg.Vault.Path, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func TestRefs_PrintsBothSections(t *testing.T) {
	var out bytes.Buffer
	err := Refs(context.Background(), "a.md",
		WithConfig(testConfig(t)), WithOutput(&out), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	want := "1 link:\n  b.md\n1 backlink:\n  b.md\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRender_DrawsRegionAfterHeader(t *testing.T) {
	var out bytes.Buffer
	err := Render(context.Background(), "a.md",
		WithConfig(testConfig(t)), WithOutput(&out), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "---\ntitle: A\n---\n" +
		"1 link:\n  b.md\n1 backlink:\n  b.md\n" +
		"\n[[b]]\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRefs_MissingNote(t *testing.T) {
	err := Refs(context.Background(), "nope.md",
		WithConfig(testConfig(t)), WithOutput(io.Discard), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("expected error without config")
	}
}
