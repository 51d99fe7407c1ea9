package mysql

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLatestMatching_AgreesWithLatestArchive(t *testing.T) {
	names := []string{
		"20231231-2359.tar.bz2",
		"20240101-0000.tar.bz2",
		"20240101-0001-full.tar.bz2",
		"notes.txt",
		"backup-20240105.tar.gz",
	}
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	local, ok, err := LatestArchive(dir)
	if err != nil {
		t.Fatalf("latest archive: %v", err)
	}
	if !ok {
		t.Fatal("expected a local match")
	}
	remote, ok := latestMatching(names)
	if !ok {
		t.Fatal("expected a listing match")
	}
	if filepath.Base(local) != remote {
		t.Fatalf("directory scan and listing disagree: %s vs %s", filepath.Base(local), remote)
	}
	if remote != "20240101-0001-full.tar.bz2" {
		t.Fatalf("expected newest stamp, got %s", remote)
	}
}

func TestLatestMatching_NoMatch(t *testing.T) {
	if name, ok := latestMatching([]string{"notes.txt", "dump.sql", ""}); ok {
		t.Fatalf("expected no match, got %q", name)
	}
}

func TestLatestMatching_TrimsListingWhitespace(t *testing.T) {
	// ls output over SSH can carry trailing carriage returns.
	name, ok := latestMatching([]string{"20240101-0000.tar.bz2\r", "  "})
	if !ok || name != "20240101-0000.tar.bz2" {
		t.Fatalf("expected trimmed name, got %q ok=%v", name, ok)
	}
}

func TestRemoteSource_DialValidation(t *testing.T) {
	cases := []struct {
		name   string
		source RemoteSource
		want   string
	}{
		{"missing host", RemoteSource{}, "remote host is required"},
		{"missing dir", RemoteSource{Host: "backup.internal"}, "remote backup dir is required"},
		{"missing auth", RemoteSource{Host: "backup.internal", Dir: "/backups"}, "key or password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.source.dial()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRemoteSource_DialMissingKeyFile(t *testing.T) {
	source := RemoteSource{
		Host:    "backup.internal",
		Dir:     "/backups",
		KeyPath: filepath.Join(t.TempDir(), "missing"),
	}
	if _, err := source.dial(); err == nil || !strings.Contains(err.Error(), "read private key") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestRemoteSource_DialRejectsBadKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_rsa")
	if err := os.WriteFile(keyPath, []byte("not a private key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	source := RemoteSource{Host: "backup.internal", Dir: "/backups", KeyPath: keyPath}
	if _, err := source.dial(); err == nil || !strings.Contains(err.Error(), "parse private key") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
