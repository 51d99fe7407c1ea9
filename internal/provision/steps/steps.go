// Package steps contains ordered provisioning steps (dns, apt, apache, mysql).
package steps

const (
	ConfigureDNS     = "configure_dns"
	SelectMirror     = "select_mirror"
	UpdatePackages   = "update_packages"
	InstallPackages  = "install_packages"
	EnableModules    = "enable_modules"
	CreateSites      = "create_sites"
	CreateDatabases  = "create_databases"
	RestoreDatabases = "restore_databases"
	RestartServices  = "restart_services"
)

// Ordered defines the one-shot provisioning sequence.
var Ordered = []string{
	ConfigureDNS,
	SelectMirror,
	UpdatePackages,
	InstallPackages,
	EnableModules,
	CreateSites,
	CreateDatabases,
	RestoreDatabases,
	RestartServices,
}
