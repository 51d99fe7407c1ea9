package apache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	shutil "github.com/termie/go-shutil"

	"github.com/tangxr/vagrant-shell-scripts/internal/platform/journal"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/system"
	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

const (
	defaultSitesAvailableDir = "/etc/apache2/sites-available"
	defaultSuexecAllowList   = "/etc/apache2/suexec/www-data"
	defaultSuexecBinary      = "/usr/lib/apache2/suexec"
	defaultApacheService     = "apache2"
)

// ProvisionerOptions controls filesystem locations used by the provisioner.
type ProvisionerOptions struct {
	SitesAvailableDir string
	SuexecAllowList   string
	SuexecBinary      string
	ServiceName       string
}

// Provisioner produces all filesystem artifacts required for Apache + SuExec
// (and optionally PHP FastCGI) to serve a virtual host.
type Provisioner struct {
	runner            system.Runner
	log               *slog.Logger
	journal           *journal.Journal
	sitesAvailableDir string
	suexecAllowList   string
	suexecBinary      string
	serviceName       string
}

// NewProvisioner constructs a provisioner with sane defaults.
func NewProvisioner(runner system.Runner, log *slog.Logger, jnl *journal.Journal, opts ProvisionerOptions) *Provisioner {
	if runner == nil {
		runner = system.ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.SitesAvailableDir == "" {
		opts.SitesAvailableDir = defaultSitesAvailableDir
	}
	if opts.SuexecAllowList == "" {
		opts.SuexecAllowList = defaultSuexecAllowList
	}
	if opts.SuexecBinary == "" {
		opts.SuexecBinary = defaultSuexecBinary
	}
	if opts.ServiceName == "" {
		opts.ServiceName = defaultApacheService
	}
	return &Provisioner{
		runner:            runner,
		log:               log,
		journal:           jnl,
		sitesAvailableDir: opts.SitesAvailableDir,
		suexecAllowList:   opts.SuexecAllowList,
		suexecBinary:      opts.SuexecBinary,
		serviceName:       opts.ServiceName,
	}
}

// CreateSite creates the CGI bridge directory, renders and writes the
// virtual-host config (with a PHP FastCGI handler when an interpreter is
// configured), fixes ownership and registers the document root with the
// SuExec allow-list. The pipeline is linear and fail-fast: artifacts written
// before a failing step are left in place.
func (p *Provisioner) CreateSite(ctx context.Context, spec adapter.SiteSpec) error {
	spec, err := normalizeSpec(spec)
	if err != nil {
		return err
	}

	if spec.SkeletonDir != "" {
		if _, statErr := os.Stat(spec.DocumentPath); os.IsNotExist(statErr) {
			if err := shutil.CopyTree(spec.SkeletonDir, spec.DocumentPath, nil); err != nil {
				return fmt.Errorf("copy site skeleton: %w", err)
			}
		}
	}

	cgiDir := cgiBridgeDir(spec)
	if err := os.MkdirAll(cgiDir, 0o755); err != nil {
		return fmt.Errorf("create cgi bridge dir: %w", err)
	}
	// MkdirAll mode is narrowed by the umask; make 0755 explicit.
	if err := os.Chmod(cgiDir, 0o755); err != nil {
		return fmt.Errorf("chmod cgi bridge dir: %w", err)
	}

	vhost, err := buildVhost(spec, p.suexecBinary)
	if err != nil {
		return err
	}

	if spec.PHPBinary != "" {
		wrapper, err := renderWrapperScript(spec, p.suexecBinary)
		if err != nil {
			return err
		}
		wrapperPath := filepath.Join(cgiDir, "php-fcgi")
		if err := os.WriteFile(wrapperPath, []byte(wrapper), 0o755); err != nil { //nolint:gosec // wrapper must be executable
			return fmt.Errorf("write php-fcgi wrapper: %w", err)
		}
		if err := os.Chmod(wrapperPath, 0o755); err != nil {
			return fmt.Errorf("chmod php-fcgi wrapper: %w", err)
		}
	}

	configPath := filepath.Join(p.sitesAvailableDir, spec.Name)
	if err := os.MkdirAll(p.sitesAvailableDir, 0o755); err != nil {
		return fmt.Errorf("create sites-available dir: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(vhost.render()), 0o644); err != nil { //nolint:gosec // Apache reads this as another user
		return fmt.Errorf("write vhost config: %w", err)
	}

	if _, err := p.runner.Run(ctx, "chown", "-R", spec.RunAsUser+":"+spec.RunAsGroup, cgiDir); err != nil {
		return fmt.Errorf("chown cgi bridge dir: %w", err)
	}

	if err := ensureAllowed(p.suexecAllowList, spec.DocumentPath); err != nil {
		return fmt.Errorf("update suexec allow-list: %w", err)
	}

	p.log.Info("site created", "name", spec.Name, "path", spec.DocumentPath, "php", spec.PHPBinary != "")
	_ = p.journal.Record(ctx, "apache.site.create", spec.Name, "path="+spec.DocumentPath)
	return nil
}

// RemoveSite deletes a site vhost config. The document root and allow-list
// entry are left untouched.
func (p *Provisioner) RemoveSite(ctx context.Context, name string) error {
	spec, err := normalizeSpec(adapter.SiteSpec{Name: name})
	if err != nil {
		return err
	}
	configPath := filepath.Join(p.sitesAvailableDir, spec.Name)
	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove vhost config: %w", err)
	}
	_ = p.journal.Record(ctx, "apache.site.remove", spec.Name, "")
	return nil
}

// EnableSite links the site into the active configuration via a2ensite.
func (p *Provisioner) EnableSite(ctx context.Context, name string) error {
	spec, err := normalizeSpec(adapter.SiteSpec{Name: name})
	if err != nil {
		return err
	}
	if _, err := p.runner.Run(ctx, "a2ensite", spec.Name); err != nil {
		return fmt.Errorf("enable site %s: %w", spec.Name, err)
	}
	return nil
}

// DisableSite unlinks the site via a2dissite.
func (p *Provisioner) DisableSite(ctx context.Context, name string) error {
	spec, err := normalizeSpec(adapter.SiteSpec{Name: name})
	if err != nil {
		return err
	}
	if _, err := p.runner.Run(ctx, "a2dissite", spec.Name); err != nil {
		return fmt.Errorf("disable site %s: %w", spec.Name, err)
	}
	return nil
}

// EnableModules enables Apache modules one by one via a2enmod.
func (p *Provisioner) EnableModules(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := p.runner.Run(ctx, "a2enmod", name); err != nil {
			return fmt.Errorf("enable module %s: %w", name, err)
		}
	}
	return nil
}

// DisableModules disables Apache modules one by one via a2dismod.
func (p *Provisioner) DisableModules(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := p.runner.Run(ctx, "a2dismod", name); err != nil {
			return fmt.Errorf("disable module %s: %w", name, err)
		}
	}
	return nil
}

// Restart restarts the Apache service.
func (p *Provisioner) Restart(ctx context.Context) error {
	if err := system.RestartService(ctx, p.runner, p.serviceName); err != nil {
		return fmt.Errorf("restart %s: %w", p.serviceName, err)
	}
	return nil
}
