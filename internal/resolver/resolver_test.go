package resolver_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/noterefs/internal/parser"
	"github.com/starford/noterefs/internal/resolver"
	"github.com/starford/noterefs/internal/testutil"
)

func TestResolve(t *testing.T) {
	dir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteNote(t, store, db, "b.md", "# B\n")
	testutil.WriteNote(t, store, db, "journal/today.org", "#+title: Today\n")
	testutil.WriteNote(t, store, db, "deep/c.md", "# C\n")
	testutil.WriteNote(t, store, db, "other/c.md", "# C again\n")

	r := resolver.New(store, db)
	ctx := context.Background()

	cases := []struct {
		ident string
		want  []string
	}{
		{"b", []string{filepath.Join(dir, "b.md")}},
		{"journal/today", []string{filepath.Join(dir, "journal", "today.org")}},
		{"c", []string{filepath.Join(dir, "deep", "c.md"), filepath.Join(dir, "other", "c.md")}},
		{"missing", []string{filepath.Join(dir, "missing.md")}},
		{"nested/missing", []string{filepath.Join(dir, "nested", "missing.md")}},
	}
	for _, c := range cases {
		got, err := r.Resolve(ctx, c.ident)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", c.ident, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Resolve(%q) = %v, want %v", c.ident, got, c.want)
		}
	}

	got, err := r.Resolve(ctx, "  ")
	if err != nil {
		t.Fatalf("Resolve(blank): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Resolve(blank) = %v, want nothing", got)
	}
}

func TestCollection(t *testing.T) {
	dir, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, nil, "sub/a.md", "x")
	r := resolver.New(store, testutil.TestDB(t))

	abs := filepath.Join(dir, "sub", "a.md")
	if r.Root() != dir {
		t.Errorf("Root = %q, want %q", r.Root(), dir)
	}
	if got := r.Relativize(abs); got != "sub/a.md" {
		t.Errorf("Relativize = %q", got)
	}
	if got := r.Identifier(abs); got != "sub/a" {
		t.Errorf("Identifier = %q", got)
	}
	if !r.Exists(abs) {
		t.Error("sub/a.md should exist")
	}
	if r.Exists(filepath.Join(dir, "sub", "nope.md")) {
		t.Error("sub/nope.md should not exist")
	}
	if r.Exists(filepath.Join(filepath.Dir(dir), "outside.md")) {
		t.Error("paths outside the root never exist")
	}
	if got := r.Relativize("/elsewhere/x.md"); got != "/elsewhere/x.md" {
		t.Errorf("outside path relativized to %q", got)
	}
}

func TestBacklinks(t *testing.T) {
	dir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteNote(t, store, db, "a.md", "[[notes/b]]")
	testutil.WriteNote(t, store, db, "c.md", "[[b]]")
	testutil.WriteNote(t, store, db, "notes/b.md", "nothing")

	r := resolver.New(store, db)
	got, err := r.Backlinks(context.Background(), "notes/b")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	want := []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "c.md")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("backlinks = %v, want %v", got, want)
	}
}

func TestRelativeLinksInSubfolder(t *testing.T) {
	dir, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	body := "[y](d/e.md)\n"
	testutil.WriteNote(t, store, db, "sub/x.md", body)
	testutil.WriteNote(t, store, db, "sub/d/e.md", "target\n")
	testutil.WriteNote(t, store, db, "d/e.md", "decoy at the root\n")

	r := resolver.New(store, db)
	ctx := context.Background()

	targets := parser.ExtractLinks([]byte(body), parser.Markdown, "sub")
	if !reflect.DeepEqual(targets, []string{"sub/d/e"}) {
		t.Fatalf("targets = %v, want [sub/d/e]", targets)
	}
	got, err := r.Resolve(ctx, targets[0])
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := []string{filepath.Join(dir, "sub", "d", "e.md")}; !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}

	back, err := r.Backlinks(ctx, "sub/d/e")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if want := []string{filepath.Join(dir, "sub", "x.md")}; !reflect.DeepEqual(back, want) {
		t.Errorf("backlinks of sub/d/e = %v, want %v", back, want)
	}
	back, err = r.Backlinks(ctx, "d/e")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(back) != 0 {
		t.Errorf("root d/e should have no backlinks, got %v", back)
	}
}
