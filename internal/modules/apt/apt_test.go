package apt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	commands []string
	errs     map[string]error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.commands = append(r.commands, cmd)
	if r.errs != nil {
		if err, ok := r.errs[cmd]; ok {
			return "", err
		}
	}
	return "", nil
}

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.list")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func TestManager_SelectMirror(t *testing.T) {
	path := writeSources(t, strings.Join([]string{
		"deb http://archive.ubuntu.com/ubuntu precise main",
		"deb http://security.ubuntu.com/ubuntu precise-security main",
		"",
	}, "\n"))
	m := NewManager(&fakeRunner{}, nil, nil, ManagerOptions{SourcesPath: path})

	if err := m.SelectMirror(context.Background(), "de"); err != nil {
		t.Fatalf("select mirror: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sources: %v", err)
	}
	content := string(b)
	if !strings.Contains(content, "http://de.archive.ubuntu.com/ubuntu") {
		t.Fatalf("expected mirror host rewritten, got:\n%s", content)
	}
	if !strings.Contains(content, "security.ubuntu.com") {
		t.Fatalf("expected security host untouched, got:\n%s", content)
	}
}

func TestManager_SelectMirrorReplacesExistingCountry(t *testing.T) {
	path := writeSources(t, "deb http://de.archive.ubuntu.com/ubuntu precise main\n")
	m := NewManager(&fakeRunner{}, nil, nil, ManagerOptions{SourcesPath: path})

	if err := m.SelectMirror(context.Background(), "fr"); err != nil {
		t.Fatalf("select mirror: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sources: %v", err)
	}
	if !strings.Contains(string(b), "fr.archive.ubuntu.com") {
		t.Fatalf("expected fr mirror, got:\n%s", b)
	}
	if strings.Contains(string(b), "de.archive.ubuntu.com") {
		t.Fatalf("expected de mirror replaced, got:\n%s", b)
	}
}

func TestManager_SelectMirrorIsIdempotent(t *testing.T) {
	path := writeSources(t, "deb http://archive.ubuntu.com/ubuntu precise main\n")
	m := NewManager(&fakeRunner{}, nil, nil, ManagerOptions{SourcesPath: path})

	if err := m.SelectMirror(context.Background(), "de"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	first, _ := os.ReadFile(path)
	if err := m.SelectMirror(context.Background(), "de"); err != nil {
		t.Fatalf("second select: %v", err)
	}
	//nolint:gosec // test reads a file created within temp dir.
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Fatalf("expected stable content, got:\n%s\nvs\n%s", first, second)
	}
}

func TestManager_SelectMirrorRejectsBadCountry(t *testing.T) {
	m := NewManager(&fakeRunner{}, nil, nil, ManagerOptions{SourcesPath: "/nonexistent"})
	if err := m.SelectMirror(context.Background(), "deu"); err == nil {
		t.Fatal("expected error for non two-letter country")
	}
}

func TestManager_InstallPackages(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, nil, nil, ManagerOptions{SourcesPath: "/nonexistent"})

	if err := m.InstallPackages(context.Background(), "apache2", "libapache2-mod-fastcgi"); err != nil {
		t.Fatalf("install: %v", err)
	}
	want := "env DEBIAN_FRONTEND=noninteractive apt-get -y install apache2 libapache2-mod-fastcgi"
	if len(runner.commands) != 1 || runner.commands[0] != want {
		t.Fatalf("expected %q, got %v", want, runner.commands)
	}
}

func TestManager_InstallPackagesRequiresNames(t *testing.T) {
	m := NewManager(&fakeRunner{}, nil, nil, ManagerOptions{})
	if err := m.InstallPackages(context.Background()); err == nil {
		t.Fatal("expected error for empty package list")
	}
}

func TestManager_UpdateUpgradeAndPPA(t *testing.T) {
	runner := &fakeRunner{}
	m := NewManager(runner, nil, nil, ManagerOptions{})
	ctx := context.Background()

	if err := m.Update(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := m.Upgrade(ctx); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := m.AddPPA(ctx, "nginx/stable"); err != nil {
		t.Fatalf("add ppa: %v", err)
	}

	for _, want := range []string{
		"apt-get -y update",
		"env DEBIAN_FRONTEND=noninteractive apt-get -y upgrade",
		"apt-add-repository -y ppa:nginx/stable",
	} {
		found := false
		for _, cmd := range runner.commands {
			if cmd == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q, got %v", want, runner.commands)
		}
	}
}
