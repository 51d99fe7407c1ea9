// Package provision runs the one-shot host provisioning pipeline.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tangxr/vagrant-shell-scripts/internal/modules/apt"
	"github.com/tangxr/vagrant-shell-scripts/internal/modules/dns"
	"github.com/tangxr/vagrant-shell-scripts/internal/modules/mysql"
	"github.com/tangxr/vagrant-shell-scripts/internal/platform/journal"
	"github.com/tangxr/vagrant-shell-scripts/internal/provision/steps"
	"github.com/tangxr/vagrant-shell-scripts/pkg/adapter"
)

// Options controls pipeline persistence. Empty paths disable checkpointing
// and report writing.
type Options struct {
	PHPBinary      string
	WebSkeletonDir string
	StateFilePath  string
	ReportFilePath string
}

// StepResult captures one provisioning step outcome.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// Report is the pipeline JSON report format.
type Report struct {
	FinishedAt string       `json:"finished_at"`
	Status     string       `json:"status"`
	Steps      []StepResult `json:"steps"`
}

type checkpointState struct {
	Completed map[string]bool `json:"completed"`
}

// Pipeline executes the ordered provisioning steps against a plan.
type Pipeline struct {
	log      *slog.Logger
	journal  *journal.Journal
	resolver *dns.Resolver
	apt      *apt.Manager
	apache   adapter.Apache
	mysql    *mysql.Service
	opts     Options
}

// NewPipeline wires the module services into a pipeline.
func NewPipeline(
	log *slog.Logger,
	jnl *journal.Journal,
	resolver *dns.Resolver,
	aptMgr *apt.Manager,
	apacheProv adapter.Apache,
	mysqlSvc *mysql.Service,
	opts Options,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:      log,
		journal:  jnl,
		resolver: resolver,
		apt:      aptMgr,
		apache:   apacheProv,
		mysql:    mysqlSvc,
		opts:     opts,
	}
}

// Run executes every step in order, skipping steps already checkpointed.
// The first failing step aborts the run; completed steps stay checkpointed
// so a re-run resumes where it stopped.
func (p *Pipeline) Run(ctx context.Context, plan Plan) (Report, error) {
	state := p.loadState()
	report := Report{Status: "ok"}

	for _, step := range steps.Ordered {
		if state.Completed[step] {
			now := time.Now().UTC().Format(time.RFC3339)
			report.Steps = append(report.Steps, StepResult{
				Name: step, Status: "skipped", StartedAt: now, FinishedAt: now,
			})
			continue
		}

		started := time.Now().UTC()
		err := p.runStep(ctx, step, plan)
		finished := time.Now().UTC()
		result := StepResult{
			Name:       step,
			Status:     "ok",
			StartedAt:  started.Format(time.RFC3339),
			FinishedAt: finished.Format(time.RFC3339),
		}
		if err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			report.Steps = append(report.Steps, result)
			report.Status = "failed"
			report.FinishedAt = finished.Format(time.RFC3339)
			p.persist(report, state)
			return report, fmt.Errorf("step %s: %w", step, err)
		}
		report.Steps = append(report.Steps, result)
		state.Completed[step] = true
		p.saveState(state)
		p.log.Info("step finished", "step", step)
		_ = p.journal.Record(ctx, "provision.step", step, "status=ok")
	}

	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	p.persist(report, state)
	return report, nil
}

func (p *Pipeline) runStep(ctx context.Context, step string, plan Plan) error {
	switch step {
	case steps.ConfigureDNS:
		if p.resolver == nil {
			return nil
		}
		if plan.PurgeLocalDNS {
			if err := p.resolver.PurgeLocal(); err != nil {
				return err
			}
		}
		for _, addr := range plan.Nameservers {
			if err := p.resolver.Ensure(addr); err != nil {
				return err
			}
		}
		return nil
	case steps.SelectMirror:
		if p.apt == nil || plan.MirrorCountry == "" {
			return nil
		}
		return p.apt.SelectMirror(ctx, plan.MirrorCountry)
	case steps.UpdatePackages:
		if p.apt == nil {
			return nil
		}
		for _, ppa := range plan.PPAs {
			if err := p.apt.AddPPA(ctx, ppa); err != nil {
				return err
			}
		}
		return p.apt.Update(ctx)
	case steps.InstallPackages:
		if p.apt == nil || len(plan.Packages) == 0 {
			return nil
		}
		return p.apt.InstallPackages(ctx, plan.Packages...)
	case steps.EnableModules:
		if p.apache == nil || len(plan.ApacheModules) == 0 {
			return nil
		}
		return p.apache.EnableModules(ctx, plan.ApacheModules...)
	case steps.CreateSites:
		if p.apache == nil {
			return nil
		}
		for _, site := range plan.Sites {
			spec := adapter.SiteSpec{
				Name:         site.Name,
				DocumentPath: site.Path,
				RunAsUser:    site.User,
				RunAsGroup:   site.Group,
				SkeletonDir:  site.SkeletonDir,
			}
			if spec.SkeletonDir == "" {
				spec.SkeletonDir = p.opts.WebSkeletonDir
			}
			if site.PHP {
				spec.PHPBinary = p.opts.PHPBinary
			}
			if err := p.apache.CreateSite(ctx, spec); err != nil {
				return err
			}
			if err := p.apache.EnableSite(ctx, site.Name); err != nil {
				return err
			}
		}
		return nil
	case steps.CreateDatabases:
		if p.mysql == nil {
			return nil
		}
		for _, db := range plan.Databases {
			if err := p.mysql.CreateDatabase(ctx, db.Name, db.Charset, db.Collation); err != nil {
				return err
			}
		}
		return nil
	case steps.RestoreDatabases:
		if p.mysql == nil {
			return nil
		}
		for _, db := range plan.Databases {
			if db.BackupDir == "" {
				continue
			}
			if err := p.mysql.Restore(ctx, db.Name, db.BackupDir); err != nil {
				return err
			}
		}
		return nil
	case steps.RestartServices:
		if p.apache == nil || len(plan.Sites) == 0 {
			return nil
		}
		return p.apache.Restart(ctx)
	default:
		return fmt.Errorf("unknown step %s", step)
	}
}

func (p *Pipeline) loadState() checkpointState {
	state := checkpointState{Completed: map[string]bool{}}
	if p.opts.StateFilePath == "" {
		return state
	}
	b, err := os.ReadFile(p.opts.StateFilePath) //nolint:gosec // path comes from pipeline options
	if err != nil {
		return state
	}
	if err := json.Unmarshal(b, &state); err != nil || state.Completed == nil {
		state.Completed = map[string]bool{}
	}
	return state
}

func (p *Pipeline) saveState(state checkpointState) {
	if p.opts.StateFilePath == "" {
		return
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.opts.StateFilePath), 0o750); err != nil {
		return
	}
	_ = os.WriteFile(p.opts.StateFilePath, b, 0o600)
}

func (p *Pipeline) persist(report Report, state checkpointState) {
	p.saveState(state)
	if p.opts.ReportFilePath == "" {
		return
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.opts.ReportFilePath), 0o750); err != nil {
		return
	}
	_ = os.WriteFile(p.opts.ReportFilePath, b, 0o600)
}
