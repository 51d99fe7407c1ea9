package apache

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

// cgiURLPrefix is the fixed URL prefix the ScriptAlias maps onto the per-site
// CGI bridge directory.
const cgiURLPrefix = "/cgi-bin/"

const (
	sectionBase       = "base"
	sectionPHPHandler = "php-handler"
	sectionClosing    = "closing"
)

// Options All / AllowOverride All is deliberately permissive; it mirrors the
// behavior operators relied on and is not hardened here.
const baseSectionTemplate = `<VirtualHost *:80>
  FastCgiWrapper {{ .SuexecBinary }}
  FastCgiConfig -autoUpdate -killInterval 300 -idle-timeout 240

  DocumentRoot {{ .DocumentPath }}
  ErrorLog ${APACHE_LOG_DIR}/{{ .Name }}-error.log
  CustomLog ${APACHE_LOG_DIR}/{{ .Name }}-access.log combined
  SuexecUserGroup {{ .RunAsUser }} {{ .RunAsGroup }}
  ScriptAlias {{ .CGIURLPrefix }} {{ .CGIBridgeDir }}

  <Directory {{ .DocumentPath }}>
    Options All
    AllowOverride All
  </Directory>
`

const phpSectionTemplate = `
  AddHandler php-fcgi .php
  Action php-fcgi {{ .CGIURLPrefix }}php-fcgi
  <Location {{ .CGIURLPrefix }}php-fcgi>
    SetHandler fastcgi-script
    Options +ExecCGI +FollowSymLinks
    Order allow,deny
    Allow from all
  </Location>
`

const wrapperScriptTemplate = `#!/bin/sh
export PHP_FCGI_CHILDREN=4
export PHP_FCGI_MAX_REQUESTS=200
export PHPRC={{ .CGIBridgeDir }}php.ini
exec {{ .PHPBinary }}
`

// vhostConfig is an ordered list of named sections rendered to text at the
// end, so section presence can be asserted independently of content.
type vhostConfig struct {
	sections []vhostSection
}

type vhostSection struct {
	name string
	text string
}

func (c *vhostConfig) add(name, text string) {
	c.sections = append(c.sections, vhostSection{name: name, text: text})
}

func (c *vhostConfig) has(name string) bool {
	for _, s := range c.sections {
		if s.name == name {
			return true
		}
	}
	return false
}

func (c *vhostConfig) render() string {
	var b strings.Builder
	for _, s := range c.sections {
		b.WriteString(s.text)
	}
	return b.String()
}

type vhostModel struct {
	Name         string
	DocumentPath string
	RunAsUser    string
	RunAsGroup   string
	PHPBinary    string
	SuexecBinary string
	CGIBridgeDir string
	CGIURLPrefix string
}

func newVhostModel(spec adapter.SiteSpec, suexecBinary string) vhostModel {
	return vhostModel{
		Name:         spec.Name,
		DocumentPath: spec.DocumentPath,
		RunAsUser:    spec.RunAsUser,
		RunAsGroup:   spec.RunAsGroup,
		PHPBinary:    spec.PHPBinary,
		SuexecBinary: suexecBinary,
		CGIBridgeDir: cgiBridgeDir(spec),
		CGIURLPrefix: cgiURLPrefix,
	}
}

// buildVhost renders the virtual-host sections for a normalized spec. The
// PHP handler section is present only when a PHP interpreter is configured.
func buildVhost(spec adapter.SiteSpec, suexecBinary string) (*vhostConfig, error) {
	model := newVhostModel(spec, suexecBinary)

	cfg := &vhostConfig{}
	base, err := renderTemplate(sectionBase, baseSectionTemplate, model)
	if err != nil {
		return nil, err
	}
	cfg.add(sectionBase, base)

	if spec.PHPBinary != "" {
		php, err := renderTemplate(sectionPHPHandler, phpSectionTemplate, model)
		if err != nil {
			return nil, err
		}
		cfg.add(sectionPHPHandler, php)
	}

	cfg.add(sectionClosing, "</VirtualHost>\n")
	return cfg, nil
}

func renderWrapperScript(spec adapter.SiteSpec, suexecBinary string) (string, error) {
	return renderTemplate("php-fcgi-wrapper", wrapperScriptTemplate, newVhostModel(spec, suexecBinary))
}

func renderTemplate(name, text string, data any) (string, error) {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}
