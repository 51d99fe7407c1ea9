package apache

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

var (
	// ErrSiteNameRequired indicates a missing site identifier.
	ErrSiteNameRequired = errors.New("site name is required")

	siteNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// normalizeSpec validates the site name and fills the defaults: document
// path /<name>, run-as user <name>, run-as group <user>.
func normalizeSpec(spec adapter.SiteSpec) (adapter.SiteSpec, error) {
	spec.Name = strings.ToLower(strings.TrimSpace(spec.Name))
	if spec.Name == "" {
		return adapter.SiteSpec{}, ErrSiteNameRequired
	}
	if !siteNamePattern.MatchString(spec.Name) {
		return adapter.SiteSpec{}, fmt.Errorf("invalid site name %q", spec.Name)
	}
	if strings.TrimSpace(spec.DocumentPath) == "" {
		spec.DocumentPath = "/" + spec.Name
	}
	if strings.TrimSpace(spec.RunAsUser) == "" {
		spec.RunAsUser = spec.Name
	}
	if strings.TrimSpace(spec.RunAsGroup) == "" {
		spec.RunAsGroup = spec.RunAsUser
	}
	return spec, nil
}

// cgiBridgeDir is the per-site directory holding CGI wrapper scripts. The
// trailing slash is significant: it is used verbatim in ScriptAlias and in
// the PHPRC export of the wrapper script.
func cgiBridgeDir(spec adapter.SiteSpec) string {
	return strings.TrimSuffix(spec.DocumentPath, "/") + "/.cgi-bin/"
}
