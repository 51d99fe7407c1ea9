package provision

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan declares everything one host should end up with. It is the YAML
// counterpart of running the individual subcommands by hand, in order.
type Plan struct {
	PurgeLocalDNS bool     `yaml:"purge_local_dns"`
	Nameservers   []string `yaml:"nameservers"`

	MirrorCountry string   `yaml:"mirror_country"`
	PPAs          []string `yaml:"ppas"`
	Packages      []string `yaml:"packages"`

	ApacheModules []string       `yaml:"apache_modules"`
	Sites         []SitePlan     `yaml:"sites"`
	Databases     []DatabasePlan `yaml:"databases"`
}

// SitePlan declares one Apache virtual host.
type SitePlan struct {
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	User        string `yaml:"user"`
	Group       string `yaml:"group"`
	PHP         bool   `yaml:"php"`
	SkeletonDir string `yaml:"skeleton_dir"`
}

// DatabasePlan declares one MySQL database and its optional backup source.
type DatabasePlan struct {
	Name      string `yaml:"name"`
	Charset   string `yaml:"charset"`
	Collation string `yaml:"collation"`
	BackupDir string `yaml:"backup_dir"`
}

// LoadPlan reads and decodes a provisioning plan file.
func LoadPlan(path string) (Plan, error) {
	// Plan path is controlled by the local installation/runtime setup.
	//nolint:gosec // G304
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan file: %w", err)
	}
	var plan Plan
	if err := yaml.Unmarshal(b, &plan); err != nil {
		return Plan{}, fmt.Errorf("decode plan file: %w", err)
	}
	return plan, nil
}
