package zotero

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"zotindex/internal/domain"
)

func TestCandidatePaths(t *testing.T) {
	home := filepath.Join("home", "ada")
	tests := []struct {
		goos string
		want []string
	}{
		{"darwin", []string{filepath.Join(home, "Zotero", "zotero.sqlite")}},
		{"linux", []string{filepath.Join(home, "Zotero", "zotero.sqlite")}},
		{"freebsd", []string{filepath.Join(home, "Zotero", "zotero.sqlite")}},
		{"windows", []string{
			filepath.Join(home, "Zotero", "zotero.sqlite"),
			filepath.Join(home, "Documents and Settings", "ada", "Zotero", "zotero.sqlite"),
		}},
	}

	for _, tt := range tests {
		got := CandidatePaths(Env{GOOS: tt.goos, Home: home, Username: "ada"})
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.goos, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s[%d]: expected %s, got %s", tt.goos, i, tt.want[i], got[i])
			}
		}
	}
}

func TestLocate_FirstExisting(t *testing.T) {
	env := Env{GOOS: "windows", Home: "h", Username: "u"}
	legacy := filepath.Join("h", "Documents and Settings", "u", "Zotero", "zotero.sqlite")

	var checked []string
	path, err := Locate(env, func(p string) bool {
		checked = append(checked, p)
		return p == legacy
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != legacy {
		t.Errorf("expected %s, got %s", legacy, path)
	}
	if len(checked) != 2 {
		t.Errorf("expected both candidates checked in order, got %v", checked)
	}
}

func TestLocate_NotFound(t *testing.T) {
	_, err := Locate(Env{GOOS: "linux", Home: "h"}, func(string) bool { return false })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if Available(Env{GOOS: "linux", Home: "h"}, func(string) bool { return false }) {
		t.Error("expected unavailable")
	}
	if !Available(Env{GOOS: "darwin", Home: "h"}, func(string) bool { return true }) {
		t.Error("expected available")
	}
}

func TestFindInDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "profiles", "abc", "zotero")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{filepath.Join(nested, DatabaseFile), filepath.Join(dir, DatabaseFile)} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindInDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, DatabaseFile) {
		t.Errorf("expected shallowest match, got %s", got)
	}

	if _, err := FindInDir(t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty dir, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, DatabaseFile)
	if err := os.WriteFile(db, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(db, Env{})
	if err != nil || got != db {
		t.Errorf("file path: got %s, %v", got, err)
	}
	got, err = Resolve(dir, Env{})
	if err != nil || got != db {
		t.Errorf("directory: got %s, %v", got, err)
	}
	if _, err := Resolve(filepath.Join(dir, "missing.sqlite"), Env{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
