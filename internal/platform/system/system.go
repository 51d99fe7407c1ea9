// Package system provides safe exec wrappers and service control helpers.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts shell command execution to support tests and dry-run flows.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner executes commands using os/exec.
type ExecRunner struct {
	DryRun bool
}

// Run executes a command and returns combined output.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.DryRun {
		return fmt.Sprintf("dry-run: %s %s", name, strings.Join(args, " ")), nil
	}
	// Command name and args are provided by provisioner-owned call sites.
	//nolint:gosec // G204
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("exec %s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// SudoRunner prefixes every command with a privilege escalation command
// before delegating. An empty Command delegates unchanged. Escalation covers
// executed commands only; direct file writes by callers keep the process's
// own privileges.
type SudoRunner struct {
	Delegate Runner
	Command  string
}

// Run prefixes the command with the configured escalation binary.
func (r SudoRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	delegate := r.Delegate
	if delegate == nil {
		delegate = ExecRunner{}
	}
	escalate := strings.TrimSpace(r.Command)
	if escalate == "" {
		return delegate.Run(ctx, name, args...)
	}
	return delegate.Run(ctx, escalate, append([]string{name}, args...)...)
}

// RestartService restarts a System-V style service by name.
func RestartService(ctx context.Context, runner Runner, name string) error {
	_, err := runner.Run(ctx, "service", name, "restart")
	return err
}

// ReloadService reloads a service configuration without a full restart.
func ReloadService(ctx context.Context, runner Runner, name string) error {
	_, err := runner.Run(ctx, "service", name, "reload")
	return err
}

// IsRunning checks a service status, treating a clean exit as running.
func IsRunning(ctx context.Context, runner Runner, name string) (bool, error) {
	out, err := runner.Run(ctx, "service", name, "status")
	if err != nil {
		return false, err
	}
	return !strings.Contains(strings.ToLower(out), "not running"), nil
}
