package mysql

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLatestArchive_PicksNewestMatchingName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20231231-2359.tar.bz2",
		"20240101-0000.tar.bz2",
		"20240101-0001-full.tar.bz2",
		"readme.txt",
		"20240102.tar.bz2",       // missing time part
		"backup-20240105.tar.gz", // wrong compression
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	path, ok, err := LatestArchive(dir)
	if err != nil {
		t.Fatalf("latest archive: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if filepath.Base(path) != "20240101-0001-full.tar.bz2" {
		t.Fatalf("expected newest stamp, got %s", path)
	}
}

func TestLatestArchive_NoMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dump.sql"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, ok, err := LatestArchive(dir)
	if err != nil {
		t.Fatalf("latest archive: %v", err)
	}
	if ok {
		t.Fatal("expected no match")
	}
}

func TestLatestArchive_MissingDir(t *testing.T) {
	if _, _, err := LatestArchive(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFindDump(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "backup")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"z.sql", "a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(nested, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	dump, err := findDump(dir)
	if err != nil {
		t.Fatalf("find dump: %v", err)
	}
	if filepath.Base(dump) != "a.sql" {
		t.Fatalf("expected first dump in path order, got %s", dump)
	}
}

func TestFindDump_NoDump(t *testing.T) {
	if _, err := findDump(t.TempDir()); err == nil {
		t.Fatal("expected error when archive has no dump")
	}
}
