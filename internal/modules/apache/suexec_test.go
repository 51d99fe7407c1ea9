package apache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureAllowed_CreatesListAndPrepends(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "suexec", "www-data")

	if err := ensureAllowed(listPath, "/blog"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := ensureAllowed(listPath, "/shop"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read allow-list: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %v", lines)
	}
	// New entries go to the top of the list.
	if lines[0] != "/shop" || lines[1] != "/blog" {
		t.Fatalf("expected newest entry first, got %v", lines)
	}
}

func TestEnsureAllowed_IsIdempotent(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "www-data")
	for i := 0; i < 3; i++ {
		if err := ensureAllowed(listPath, "/blog"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read allow-list: %v", err)
	}
	if got := strings.Count(string(b), "/blog"); got != 1 {
		t.Fatalf("expected one entry, got %d:\n%s", got, b)
	}
}

func TestEnsureAllowed_SubstringMatchTreatsPrefixAsPresent(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "www-data")
	if err := ensureAllowed(listPath, "/blog-archive"); err != nil {
		t.Fatalf("ensure long path: %v", err)
	}
	// "/blog" is a substring of "/blog-archive" and so is considered
	// already present. Pinned here so a change is a conscious decision.
	if err := ensureAllowed(listPath, "/blog"); err != nil {
		t.Fatalf("ensure prefix path: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read allow-list: %v", err)
	}
	if strings.Contains(string(b), "/blog\n") {
		t.Fatalf("expected prefix path to be skipped, got:\n%s", b)
	}
}
