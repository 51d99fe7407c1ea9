package dns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestResolver(t *testing.T, content string) (*Resolver, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolv.conf")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write resolv.conf: %v", err)
		}
	}
	return NewResolver(nil, ResolverOptions{Path: path}), path
}

func TestResolver_PurgeLocal(t *testing.T) {
	r, path := newTestResolver(t, strings.Join([]string{
		"# generated",
		"nameserver 127.0.0.1",
		"nameserver 8.8.8.8",
		"nameserver ::1",
		"search example.com",
	}, "\n"))

	if err := r.PurgeLocal(); err != nil {
		t.Fatalf("purge local: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read resolv.conf: %v", err)
	}
	content := string(b)
	if strings.Contains(content, "127.0.0.1") || strings.Contains(content, "::1") {
		t.Fatalf("expected loopback entries removed, got:\n%s", content)
	}
	if !strings.Contains(content, "nameserver 8.8.8.8") {
		t.Fatalf("expected external nameserver kept, got:\n%s", content)
	}
	if !strings.Contains(content, "search example.com") {
		t.Fatalf("expected non-nameserver lines kept, got:\n%s", content)
	}
}

func TestResolver_EnsureIsIdempotent(t *testing.T) {
	r, path := newTestResolver(t, "")
	for i := 0; i < 3; i++ {
		if err := r.Ensure("8.8.4.4"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read resolv.conf: %v", err)
	}
	if got := strings.Count(string(b), "nameserver 8.8.4.4"); got != 1 {
		t.Fatalf("expected single entry, got %d:\n%s", got, b)
	}
}

func TestResolver_AppendRejectsBadAddress(t *testing.T) {
	r, _ := newTestResolver(t, "")
	if err := r.Append("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
