// Package dns manages the host resolver configuration file.
package dns

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

const defaultResolvConfPath = "/etc/resolv.conf"

// ResolverOptions controls the resolv.conf location.
type ResolverOptions struct {
	Path string
}

// Resolver edits nameserver entries in a resolv.conf style file.
type Resolver struct {
	path string
	log  *slog.Logger
}

// NewResolver constructs a resolver editor with sane defaults.
func NewResolver(log *slog.Logger, opts ResolverOptions) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if opts.Path == "" {
		opts.Path = defaultResolvConfPath
	}
	return &Resolver{path: opts.Path, log: log}
}

// PurgeLocal removes loopback nameserver entries so external resolvers take
// effect.
func (r *Resolver) PurgeLocal() error {
	b, err := os.ReadFile(r.path) //nolint:gosec // path comes from resolver options
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read resolver config: %w", err)
	}
	kept := make([]string, 0)
	for _, line := range strings.Split(string(b), "\n") {
		if isLoopbackNameserver(line) {
			continue
		}
		kept = append(kept, line)
	}
	if err := os.WriteFile(r.path, []byte(strings.Join(kept, "\n")), 0o644); err != nil { //nolint:gosec // world-readable config
		return fmt.Errorf("write resolver config: %w", err)
	}
	return nil
}

// Append adds a nameserver entry unconditionally.
func (r *Resolver) Append(addr string) error {
	addr = strings.TrimSpace(addr)
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("invalid nameserver address %q", addr)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // world-readable config
	if err != nil {
		return fmt.Errorf("open resolver config: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.WriteString("nameserver " + addr + "\n"); err != nil {
		return fmt.Errorf("append nameserver: %w", err)
	}
	return nil
}

// Ensure adds a nameserver entry only when an exact line is not already
// present.
func (r *Resolver) Ensure(addr string) error {
	addr = strings.TrimSpace(addr)
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("invalid nameserver address %q", addr)
	}
	b, err := os.ReadFile(r.path) //nolint:gosec // path comes from resolver options
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read resolver config: %w", err)
	}
	want := "nameserver " + addr
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == want {
			return nil
		}
	}
	if err := r.Append(addr); err != nil {
		return err
	}
	r.log.Info("nameserver added", "addr", addr)
	return nil
}

func isLoopbackNameserver(line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 2 || fields[0] != "nameserver" {
		return false
	}
	ip := net.ParseIP(fields[1])
	return ip != nil && ip.IsLoopback()
}
