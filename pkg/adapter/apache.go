package adapter

import "context"

// SiteSpec carries site-specific values used by system adapters. Name is the
// only required field; the rest default from it.
type SiteSpec struct {
	Name         string
	DocumentPath string
	RunAsUser    string
	RunAsGroup   string
	PHPBinary    string
	SkeletonDir  string
}

// Apache defines operations required to manage Apache virtual hosts and
// modules.
type Apache interface {
	CreateSite(ctx context.Context, spec SiteSpec) error
	RemoveSite(ctx context.Context, name string) error
	EnableSite(ctx context.Context, name string) error
	DisableSite(ctx context.Context, name string) error
	EnableModules(ctx context.Context, names ...string) error
	DisableModules(ctx context.Context, names ...string) error
	Restart(ctx context.Context) error
}
