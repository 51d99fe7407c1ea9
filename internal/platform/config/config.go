// Package config handles provisioner configuration loading (YAML, .env, env overrides).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the provisioner. Privilege
// escalation and the PHP interpreter are explicit fields rather than ambient
// process environment so each operation can be configured per call.
// SudoCommand applies to executed commands only; writing system config files
// requires running the provisioner as root.
type Config struct {
	Env         string `yaml:"env"`
	DataDir     string `yaml:"data_dir"`
	SudoCommand string `yaml:"sudo_command"`
	PHPBinary   string `yaml:"php_binary"`

	ApacheSitesAvailableDir string `yaml:"apache_sites_available_dir"`
	ApacheServiceName       string `yaml:"apache_service_name"`
	SuexecAllowListPath     string `yaml:"suexec_allow_list_path"`
	SuexecBinaryPath        string `yaml:"suexec_binary_path"`
	WebSkeletonDir          string `yaml:"web_skeleton_dir"`

	ResolvConfPath string `yaml:"resolv_conf_path"`
	AptSourcesPath string `yaml:"apt_sources_path"`

	MySQLDSN         string `yaml:"mysql_dsn"`
	MySQLBinaryPath  string `yaml:"mysql_binary_path"`
	MySQLConfPath    string `yaml:"mysql_conf_path"`
	MySQLServiceName string `yaml:"mysql_service_name"`

	PlanPath       string `yaml:"plan_path"`
	StateFilePath  string `yaml:"state_file_path"`
	ReportFilePath string `yaml:"report_file_path"`
}

// Load reads defaults, merges a YAML config file when present, loads an
// optional .env file and applies PROVISION_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		Env:                     "prod",
		DataDir:                 "/var/lib/ubuntu-provision",
		SudoCommand:             "sudo",
		ApacheSitesAvailableDir: "/etc/apache2/sites-available",
		ApacheServiceName:       "apache2",
		SuexecAllowListPath:     "/etc/apache2/suexec/www-data",
		SuexecBinaryPath:        "/usr/lib/apache2/suexec",
		ResolvConfPath:          "/etc/resolv.conf",
		AptSourcesPath:          "/etc/apt/sources.list",
		MySQLDSN:                "root@unix(/var/run/mysqld/mysqld.sock)/",
		MySQLBinaryPath:         "/usr/bin/mysql",
		MySQLConfPath:           "/etc/mysql/my.cnf",
		MySQLServiceName:        "mysql",
		PlanPath:                "/etc/ubuntu-provision/plan.yaml",
		StateFilePath:           "/var/lib/ubuntu-provision/.provision-state.json",
		ReportFilePath:          "/var/lib/ubuntu-provision/provision-report.json",
	}

	if path != "" {
		if err := mergeFromFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	// A .env next to the working directory feeds the overrides below.
	_ = godotenv.Load()
	mergeFromEnv(&cfg)

	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("data_dir cannot be empty")
	}
	if cfg.ApacheSitesAvailableDir == "" {
		return Config{}, fmt.Errorf("apache_sites_available_dir cannot be empty")
	}
	return cfg, nil
}

func mergeFromFile(cfg *Config, path string) error {
	// Config path is controlled by the local installation/runtime setup.
	//nolint:gosec // G304
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func mergeFromEnv(cfg *Config) {
	type envMap struct {
		key string
		set func(string)
	}
	maps := []envMap{
		{key: "PROVISION_ENV", set: func(v string) { cfg.Env = v }},
		{key: "PROVISION_DATA_DIR", set: func(v string) { cfg.DataDir = v }},
		{key: "PROVISION_SUDO", set: func(v string) { cfg.SudoCommand = v }},
		{key: "PROVISION_PHP", set: func(v string) { cfg.PHPBinary = v }},
		{key: "PROVISION_SITES_AVAILABLE_DIR", set: func(v string) { cfg.ApacheSitesAvailableDir = v }},
		{key: "PROVISION_SUEXEC_ALLOW_LIST", set: func(v string) { cfg.SuexecAllowListPath = v }},
		{key: "PROVISION_RESOLV_CONF", set: func(v string) { cfg.ResolvConfPath = v }},
		{key: "PROVISION_APT_SOURCES", set: func(v string) { cfg.AptSourcesPath = v }},
		{key: "PROVISION_MYSQL_DSN", set: func(v string) { cfg.MySQLDSN = v }},
		{key: "PROVISION_MYSQL_BINARY", set: func(v string) { cfg.MySQLBinaryPath = v }},
		{key: "PROVISION_MYSQL_CONF", set: func(v string) { cfg.MySQLConfPath = v }},
		{key: "PROVISION_PLAN", set: func(v string) { cfg.PlanPath = v }},
	}
	for _, m := range maps {
		if v, ok := os.LookupEnv(m.key); ok {
			m.set(strings.TrimSpace(v))
		}
	}
}
