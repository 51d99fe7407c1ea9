package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pborman/getopt/v2"

	"github.com/tangxr/vagrant-shell-scripts/internal/modules/apache"
	"github.com/tangxr/vagrant-shell-scripts/internal/modules/apt"
	"github.com/tangxr/vagrant-shell-scripts/internal/modules/dns"
	"github.com/tangxr/vagrant-shell-scripts/internal/modules/mysql"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/config"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/journal"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/logger"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/system"
	"github.com/tangxr/vagrant-shell-scripts/internal/provision"
	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

const defaultConfigPath = "/etc/ubuntu-provision/provision.yaml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "site-create":
		runSiteCreate(args)
	case "site-enable":
		runSiteToggle(args, "site-enable")
	case "site-disable":
		runSiteToggle(args, "site-disable")
	case "site-remove":
		runSiteToggle(args, "site-remove")
	case "module-enable":
		runModuleToggle(args, true)
	case "module-disable":
		runModuleToggle(args, false)
	case "apache-restart":
		runApacheRestart()
	case "apt-mirror":
		runAptMirror(args)
	case "apt-update":
		runAptUpdate()
	case "apt-upgrade":
		runAptUpgrade()
	case "apt-install":
		runAptInstall(args)
	case "apt-ppa":
		runAptPPA(args)
	case "db-create":
		runDBCreate(args)
	case "db-restore":
		runDBRestore(args)
	case "db-remote-access":
		runDBRemoteAccess()
	case "dns-ensure":
		runDNSEnsure(args)
	case "run":
		runPipeline(args)
	case "history":
		runHistory(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ubuntu-provision <command> [flags] [args]

commands:
  site-create <name> [path [user [group]]]   create an Apache virtual host
  site-enable | site-disable | site-remove <name>
  module-enable | module-disable <module>...
  apache-restart
  apt-mirror <country>      select a country-local Ubuntu archive mirror
  apt-update | apt-upgrade
  apt-install <package>...
  apt-ppa <owner/name>
  db-create <name> [charset [collation]]
  db-restore <name> <backup-dir>
  db-remote-access
  dns-ensure <address>...
  run                       execute the provisioning plan
  history                   show recent provisioning actions`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func fatalUsage(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

type runtimeEnv struct {
	cfg    config.Config
	log    *slog.Logger
	jnl    *journal.Journal
	runner system.Runner
}

func newRuntimeEnv(ctx context.Context) runtimeEnv {
	cfgPath := strings.TrimSpace(os.Getenv("PROVISION_CONFIG"))
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	log := logger.New(cfg.Env)

	jnl := journal.New(cfg.DataDir)
	if err := jnl.Init(ctx); err != nil {
		log.Warn("journal disabled", "error", err.Error())
		jnl = nil
	}

	runner := buildRunner(cfg, os.Geteuid(), log)
	return runtimeEnv{cfg: cfg, log: log, jnl: jnl, runner: runner}
}

// buildRunner escalates external commands when not running as root. Config
// file writes (vhost files, resolv.conf, my.cnf, the suexec allow-list) go
// through the process's own privileges, so system paths need the binary
// itself to run as root.
func buildRunner(cfg config.Config, euid int, log *slog.Logger) system.Runner {
	if cfg.SudoCommand != "" && euid != 0 {
		log.Warn("not running as root; only external commands are escalated, file edits are not",
			"sudo", cfg.SudoCommand)
		return system.SudoRunner{Delegate: system.ExecRunner{}, Command: cfg.SudoCommand}
	}
	return system.ExecRunner{}
}

func (e runtimeEnv) apache() *apache.Provisioner {
	return apache.NewProvisioner(e.runner, e.log, e.jnl, apache.ProvisionerOptions{
		SitesAvailableDir: e.cfg.ApacheSitesAvailableDir,
		SuexecAllowList:   e.cfg.SuexecAllowListPath,
		SuexecBinary:      e.cfg.SuexecBinaryPath,
		ServiceName:       e.cfg.ApacheServiceName,
	})
}

func (e runtimeEnv) apt() *apt.Manager {
	return apt.NewManager(e.runner, e.log, e.jnl, apt.ManagerOptions{
		SourcesPath: e.cfg.AptSourcesPath,
	})
}

func (e runtimeEnv) dns() *dns.Resolver {
	return dns.NewResolver(e.log, dns.ResolverOptions{Path: e.cfg.ResolvConfPath})
}

func (e runtimeEnv) mysql() (*mysql.Service, func()) {
	db, err := mysql.NewSQLAdapter(e.cfg.MySQLDSN)
	if err != nil {
		fatal("connect mysql: %v", err)
	}
	svc := mysql.NewService(db, e.runner, e.log, e.jnl, mysql.ServiceOptions{
		MySQLBinary: e.cfg.MySQLBinaryPath,
		ConfPath:    e.cfg.MySQLConfPath,
		ServiceName: e.cfg.MySQLServiceName,
	})
	return svc, func() { _ = db.Close() }
}

// siteSpecFromArgs maps the positional form <name> [path [user [group]]]
// onto a site spec; unset positions fall back to their defaults later.
func siteSpecFromArgs(args []string) (adapter.SiteSpec, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return adapter.SiteSpec{}, apache.ErrSiteNameRequired
	}
	if len(args) > 4 {
		return adapter.SiteSpec{}, fmt.Errorf("too many arguments: expected name [path [user [group]]]")
	}
	spec := adapter.SiteSpec{Name: args[0]}
	if len(args) > 1 {
		spec.DocumentPath = args[1]
	}
	if len(args) > 2 {
		spec.RunAsUser = args[2]
	}
	if len(args) > 3 {
		spec.RunAsGroup = args[3]
	}
	return spec, nil
}

func runSiteCreate(args []string) {
	set := getopt.New()
	phpBinary := set.StringLong("php-binary", 'p', "", "PHP interpreter enabling the FastCGI handler")
	skeleton := set.StringLong("skeleton", 's', "", "skeleton directory copied into a new document root")
	parseFlags(set, "site-create", args)

	ctx := context.Background()
	env := newRuntimeEnv(ctx)

	spec, err := siteSpecFromArgs(set.Args())
	if err != nil {
		fatalUsage("site-create: %v", err)
	}
	spec.PHPBinary = *phpBinary
	if spec.PHPBinary == "" {
		spec.PHPBinary = env.cfg.PHPBinary
	}
	spec.SkeletonDir = *skeleton
	if spec.SkeletonDir == "" {
		spec.SkeletonDir = env.cfg.WebSkeletonDir
	}

	if err := env.apache().CreateSite(ctx, spec); err != nil {
		fatal("create site: %v", err)
	}
}

func runSiteToggle(args []string, cmd string) {
	if len(args) != 1 {
		fatalUsage("%s: site name is required", cmd)
	}
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	prov := env.apache()

	var err error
	switch cmd {
	case "site-enable":
		err = prov.EnableSite(ctx, args[0])
	case "site-disable":
		err = prov.DisableSite(ctx, args[0])
	case "site-remove":
		err = prov.RemoveSite(ctx, args[0])
	}
	if err != nil {
		fatal("%s: %v", cmd, err)
	}
}

func runModuleToggle(args []string, enable bool) {
	if len(args) == 0 {
		fatalUsage("at least one module name is required")
	}
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	prov := env.apache()

	var err error
	if enable {
		err = prov.EnableModules(ctx, args...)
	} else {
		err = prov.DisableModules(ctx, args...)
	}
	if err != nil {
		fatal("toggle modules: %v", err)
	}
}

func runApacheRestart() {
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apache().Restart(ctx); err != nil {
		fatal("restart apache: %v", err)
	}
}

func runAptMirror(args []string) {
	if len(args) != 1 {
		fatalUsage("apt-mirror: country code is required")
	}
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apt().SelectMirror(ctx, args[0]); err != nil {
		fatal("select mirror: %v", err)
	}
}

func runAptUpdate() {
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apt().Update(ctx); err != nil {
		fatal("apt update: %v", err)
	}
}

func runAptUpgrade() {
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apt().Upgrade(ctx); err != nil {
		fatal("apt upgrade: %v", err)
	}
}

func runAptInstall(args []string) {
	if len(args) == 0 {
		fatalUsage("apt-install: at least one package name is required")
	}
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apt().InstallPackages(ctx, args...); err != nil {
		fatal("apt install: %v", err)
	}
}

func runAptPPA(args []string) {
	if len(args) != 1 {
		fatalUsage("apt-ppa: repository name is required")
	}
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if err := env.apt().AddPPA(ctx, args[0]); err != nil {
		fatal("add ppa: %v", err)
	}
}

func runDBCreate(args []string) {
	if len(args) < 1 || len(args) > 3 {
		fatalUsage("db-create: expected name [charset [collation]]")
	}
	charset, collation := "", ""
	if len(args) > 1 {
		charset = args[1]
	}
	if len(args) > 2 {
		collation = args[2]
	}

	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	svc, closeDB := env.mysql()
	defer closeDB()

	if err := svc.CreateDatabase(ctx, args[0], charset, collation); err != nil {
		fatal("create database: %v", err)
	}
}

func runDBRestore(args []string) {
	set := getopt.New()
	remoteHost := set.StringLong("remote-host", 0, "", "fetch the newest archive from this host first")
	remoteUser := set.StringLong("remote-user", 0, "root", "SSH user on the backup host")
	remotePort := set.StringLong("remote-port", 0, "22", "SSH port on the backup host")
	remoteDir := set.StringLong("remote-dir", 0, "", "archive directory on the backup host")
	remoteKey := set.StringLong("remote-key", 0, "", "SSH private key path")
	remotePassword := set.StringLong("remote-password", 0, "", "SSH password")
	parseFlags(set, "db-restore", args)

	positional := set.Args()
	if len(positional) != 2 {
		fatalUsage("db-restore: expected <name> <backup-dir>")
	}
	name, backupDir := positional[0], positional[1]

	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	svc, closeDB := env.mysql()
	defer closeDB()

	if *remoteHost != "" {
		source := mysql.RemoteSource{
			Host:     *remoteHost,
			Port:     *remotePort,
			User:     *remoteUser,
			KeyPath:  *remoteKey,
			Password: *remotePassword,
			Dir:      *remoteDir,
		}
		if _, ok, err := source.FetchLatest(ctx, backupDir); err != nil {
			fatal("fetch remote backup: %v", err)
		} else if !ok {
			env.log.Info("no remote archive found", "host", *remoteHost, "dir", *remoteDir)
		}
	}

	if err := svc.Restore(ctx, name, backupDir); err != nil {
		fatal("restore database: %v", err)
	}
}

func runDBRemoteAccess() {
	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	svc, closeDB := env.mysql()
	defer closeDB()

	if err := svc.AllowRemoteAccess(ctx); err != nil {
		fatal("allow remote access: %v", err)
	}
}

func runDNSEnsure(args []string) {
	set := getopt.New()
	purge := set.BoolLong("purge-local", 0, "drop loopback nameserver entries first")
	parseFlags(set, "dns-ensure", args)

	addrs := set.Args()
	if len(addrs) == 0 {
		fatalUsage("dns-ensure: at least one nameserver address is required")
	}

	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	resolver := env.dns()

	if *purge {
		if err := resolver.PurgeLocal(); err != nil {
			fatal("purge local nameservers: %v", err)
		}
	}
	for _, addr := range addrs {
		if err := resolver.Ensure(addr); err != nil {
			fatal("ensure nameserver %s: %v", addr, err)
		}
	}
}

func runPipeline(args []string) {
	set := getopt.New()
	planPath := set.StringLong("plan", 0, "", "provisioning plan file")
	parseFlags(set, "run", args)

	ctx := context.Background()
	env := newRuntimeEnv(ctx)

	path := *planPath
	if path == "" {
		path = env.cfg.PlanPath
	}
	plan, err := provision.LoadPlan(path)
	if err != nil {
		fatal("load plan: %v", err)
	}

	svc, closeDB := env.mysql()
	defer closeDB()

	pipeline := provision.NewPipeline(env.log, env.jnl, env.dns(), env.apt(), env.apache(), svc, provision.Options{
		PHPBinary:      env.cfg.PHPBinary,
		WebSkeletonDir: env.cfg.WebSkeletonDir,
		StateFilePath:  env.cfg.StateFilePath,
		ReportFilePath: env.cfg.ReportFilePath,
	})
	report, err := pipeline.Run(ctx, plan)
	if err != nil {
		fatal("provision: %v", err)
	}
	env.log.Info("provisioning finished", "status", report.Status, "steps", len(report.Steps))
}

func runHistory(args []string) {
	set := getopt.New()
	limit := set.IntLong("limit", 'n', 20, "number of events to show")
	parseFlags(set, "history", args)

	ctx := context.Background()
	env := newRuntimeEnv(ctx)
	if env.jnl == nil {
		fatal("journal is not available")
	}
	events, err := env.jnl.Recent(ctx, *limit)
	if err != nil {
		fatal("read journal: %v", err)
	}
	for _, ev := range events {
		fmt.Printf("%s  %-28s %-16s %s\n", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Action, ev.Subject, ev.Details)
	}
}

func parseFlags(set *getopt.Set, cmd string, args []string) {
	argv := append([]string{"ubuntu-provision " + cmd}, args...)
	if err := set.Getopt(argv, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		set.PrintUsage(os.Stderr)
		os.Exit(2)
	}
}
