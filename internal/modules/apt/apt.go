// Package apt wraps mirror selection and package management for APT hosts.
package apt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/tangxr/vagrant-shell-scripts/internal/platform/journal"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/system"
)

const defaultSourcesPath = "/etc/apt/sources.list"

var (
	countryPattern = regexp.MustCompile(`^[a-z]{2}$`)
	// Matches archive.ubuntu.com with or without an existing country prefix,
	// so repeated mirror selection converges instead of stacking prefixes.
	mirrorHostPattern = regexp.MustCompile(`\b(?:[a-z]{2}\.)?archive\.ubuntu\.com\b`)
)

// ManagerOptions controls the sources.list location.
type ManagerOptions struct {
	SourcesPath string
}

// Manager performs APT operations through the command runner.
type Manager struct {
	runner      system.Runner
	log         *slog.Logger
	journal     *journal.Journal
	sourcesPath string
}

// NewManager constructs an APT manager with sane defaults.
func NewManager(runner system.Runner, log *slog.Logger, jnl *journal.Journal, opts ManagerOptions) *Manager {
	if runner == nil {
		runner = system.ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.SourcesPath == "" {
		opts.SourcesPath = defaultSourcesPath
	}
	return &Manager{
		runner:      runner,
		log:         log,
		journal:     jnl,
		sourcesPath: opts.SourcesPath,
	}
}

// SelectMirror rewrites sources.list to use the country-local Ubuntu archive
// mirror. Selecting the already-configured mirror is a no-op.
func (m *Manager) SelectMirror(ctx context.Context, country string) error {
	country = strings.ToLower(strings.TrimSpace(country))
	if !countryPattern.MatchString(country) {
		return fmt.Errorf("invalid mirror country %q", country)
	}
	b, err := os.ReadFile(m.sourcesPath) //nolint:gosec // path comes from manager options
	if err != nil {
		return fmt.Errorf("read apt sources: %w", err)
	}
	content := string(b)
	updated := mirrorHostPattern.ReplaceAllString(content, country+".archive.ubuntu.com")
	if updated == content {
		return nil
	}
	if err := os.WriteFile(m.sourcesPath, []byte(updated), 0o644); err != nil { //nolint:gosec // world-readable config
		return fmt.Errorf("write apt sources: %w", err)
	}
	m.log.Info("apt mirror selected", "country", country)
	_ = m.journal.Record(ctx, "apt.mirror.select", country, "")
	return nil
}

// Update refreshes the package index.
func (m *Manager) Update(ctx context.Context) error {
	if _, err := m.runner.Run(ctx, "apt-get", "-y", "update"); err != nil {
		return fmt.Errorf("apt update: %w", err)
	}
	return nil
}

// Upgrade upgrades installed packages noninteractively.
func (m *Manager) Upgrade(ctx context.Context) error {
	if _, err := m.runner.Run(ctx, "env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "-y", "upgrade"); err != nil {
		return fmt.Errorf("apt upgrade: %w", err)
	}
	return nil
}

// InstallPackages installs the named packages noninteractively.
func (m *Manager) InstallPackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("at least one package name is required")
	}
	args := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "-y", "install"}, names...)
	if _, err := m.runner.Run(ctx, "env", args...); err != nil {
		return fmt.Errorf("apt install: %w", err)
	}
	m.log.Info("packages installed", "packages", strings.Join(names, " "))
	_ = m.journal.Record(ctx, "apt.packages.install", strings.Join(names, " "), "")
	return nil
}

// AddPPA registers a PPA repository and refreshes the index.
func (m *Manager) AddPPA(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("ppa name is required")
	}
	if _, err := m.runner.Run(ctx, "apt-add-repository", "-y", "ppa:"+name); err != nil {
		return fmt.Errorf("add ppa %s: %w", name, err)
	}
	return m.Update(ctx)
}
