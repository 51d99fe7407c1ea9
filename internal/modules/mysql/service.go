package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tangxr/vagrant-shell-scripts/internal/platform/journal"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/system"
	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

const (
	defaultCharset   = "utf8"
	defaultCollation = "utf8_general_ci"

	defaultMySQLBinary  = "/usr/bin/mysql"
	defaultMySQLConf    = "/etc/mysql/my.cnf"
	defaultMySQLService = "mysql"
)

// ServiceOptions controls binary and config paths used by the service.
type ServiceOptions struct {
	MySQLBinary string
	ConfPath    string
	ServiceName string
}

// Service orchestrates database creation, dump restore and remote-access
// configuration against a live MySQL server.
type Service struct {
	db          adapter.MySQL
	runner      system.Runner
	log         *slog.Logger
	journal     *journal.Journal
	mysqlBinary string
	confPath    string
	serviceName string
}

// NewService creates a database service.
func NewService(db adapter.MySQL, runner system.Runner, log *slog.Logger, jnl *journal.Journal, opts ServiceOptions) *Service {
	if runner == nil {
		runner = system.ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.MySQLBinary == "" {
		opts.MySQLBinary = defaultMySQLBinary
	}
	if opts.ConfPath == "" {
		opts.ConfPath = defaultMySQLConf
	}
	if opts.ServiceName == "" {
		opts.ServiceName = defaultMySQLService
	}
	return &Service{
		db:          db,
		runner:      runner,
		log:         log,
		journal:     jnl,
		mysqlBinary: opts.MySQLBinary,
		confPath:    opts.ConfPath,
		serviceName: opts.ServiceName,
	}
}

// CreateDatabase creates a database, defaulting charset to utf8 and
// collation to utf8_general_ci.
func (s *Service) CreateDatabase(ctx context.Context, name, charset, collation string) error {
	if s.db == nil {
		return fmt.Errorf("database service is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("database name is required")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	if strings.TrimSpace(charset) == "" {
		charset = defaultCharset
	}
	if strings.TrimSpace(collation) == "" {
		collation = defaultCollation
	}
	if err := s.db.EnsureDatabase(ctx, name, charset, collation); err != nil {
		return err
	}
	s.log.Info("database created", "db", name, "charset", charset, "collation", collation)
	_ = s.journal.Record(ctx, "mysql.database.create", name, "charset="+charset)
	return nil
}

// Restore imports the newest date-stamped backup archive from backupDir into
// the named database. It is a no-op when the database already has tables or
// when no archive matches.
func (s *Service) Restore(ctx context.Context, name, backupDir string) error {
	if s.db == nil {
		return fmt.Errorf("database service is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("database name is required")
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	if strings.TrimSpace(backupDir) == "" {
		return fmt.Errorf("backup directory is required")
	}

	count, err := s.db.TableCount(ctx, name)
	if err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("database not empty, skipping restore", "db", name, "tables", count)
		return nil
	}

	archive, ok, err := LatestArchive(backupDir)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("no backup archive found, skipping restore", "db", name, "dir", backupDir)
		return nil
	}

	workDir, err := os.MkdirTemp("", "db-restore-*")
	if err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	if _, err := s.runner.Run(ctx, "tar", "-xjf", archive, "-C", workDir); err != nil {
		return fmt.Errorf("extract backup archive: %w", err)
	}
	dump, err := findDump(workDir)
	if err != nil {
		return err
	}

	if err := s.db.EnsureDatabase(ctx, name, defaultCharset, defaultCollation); err != nil {
		return err
	}
	// source is a mysql client builtin, so a multi-statement dump imports
	// through a single -e invocation.
	if _, err := s.runner.Run(ctx, s.mysqlBinary, "--database", name, "-e", "source "+dump); err != nil {
		return fmt.Errorf("import dump: %w", err)
	}

	s.log.Info("database restored", "db", name, "archive", archive)
	_ = s.journal.Record(ctx, "mysql.database.restore", name, "archive="+archive)
	return nil
}

// AllowRemoteAccess binds the server to all interfaces, grants root from any
// host and restarts the service.
func (s *Service) AllowRemoteAccess(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database service is not configured")
	}
	if err := rewriteBindAddress(s.confPath); err != nil {
		return err
	}
	if err := s.db.GrantRemoteRoot(ctx); err != nil {
		return err
	}
	if err := system.RestartService(ctx, s.runner, s.serviceName); err != nil {
		return fmt.Errorf("restart %s: %w", s.serviceName, err)
	}
	s.log.Info("remote access enabled", "service", s.serviceName)
	_ = s.journal.Record(ctx, "mysql.remote_access.allow", s.serviceName, "")
	return nil
}

// rewriteBindAddress points every bind-address directive in the config file
// at 0.0.0.0. A file with no such directive is left untouched.
func rewriteBindAddress(confPath string) error {
	b, err := os.ReadFile(confPath) //nolint:gosec // path comes from service options
	if err != nil {
		return fmt.Errorf("read mysql config: %w", err)
	}
	lines := strings.Split(string(b), "\n")
	changed := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "bind-address") {
			lines[i] = "bind-address = 0.0.0.0"
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := os.WriteFile(confPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil { //nolint:gosec // world-readable config
		return fmt.Errorf("write mysql config: %w", err)
	}
	return nil
}
