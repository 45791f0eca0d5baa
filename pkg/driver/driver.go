// Package driver sequences one democtl run: hostname validation, service
// start-up, readiness waits, first-run configuration, the cache permission
// fix and the final GitLab wait.
package driver

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/compose"
	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/go-go-golems/democtl/pkg/docker"
	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/go-go-golems/democtl/pkg/firstrun"
	"github.com/go-go-golems/democtl/pkg/hostcheck"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Compose interface {
	Up(ctx context.Context, services ...string) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context, service string) error
	Exec(ctx context.Context, service string, cmd ...string) (string, error)
	ServiceLogs(ctx context.Context, service string) (string, error)
}

type Engine interface {
	VolumeExists(ctx context.Context, name string) (bool, error)
	RunPrivilegedHelper(ctx context.Context, spec docker.HelperSpec) error
}

type Waiter interface {
	Wait(ctx context.Context, service string, c readiness.Checker) readiness.Result
	Probe(ctx context.Context, service string, c readiness.Checker) readiness.Result
}

type HostValidator interface {
	Validate(ctx context.Context, cfg config.RuntimeConfig) hostcheck.Report
}

type Configurator interface {
	Configure(ctx context.Context, d catalog.ServiceDescriptor) (firstrun.Outcome, error)
}

var (
	_ Compose       = (*compose.Client)(nil)
	_ Engine        = (*docker.Engine)(nil)
	_ Waiter        = (*readiness.Waiter)(nil)
	_ HostValidator = (*hostcheck.Validator)(nil)
	_ Configurator  = (*firstrun.Configurator)(nil)
)

type Options struct {
	Config      config.RuntimeConfig
	ComposeFile *compose.File

	Compose  Compose
	Engine   Engine
	Waiter   Waiter
	Hosts    HostValidator
	FirstRun Configurator
	Reporter events.Reporter

	Readiness   ReadinessKind
	HTTPRetries int
	// RevealTimeout bounds the wait for GitLab's initial root password file.
	RevealTimeout  time.Duration
	RevealInterval time.Duration
}

type Driver struct {
	opts    Options
	catalog catalog.Catalog
}

func New(opts Options) (*Driver, error) {
	if opts.Compose == nil || opts.Engine == nil || opts.Waiter == nil {
		return nil, errors.New("driver needs compose, engine and waiter")
	}
	if opts.Readiness == "" {
		opts.Readiness = ReadinessLogs
	}
	if opts.RevealTimeout <= 0 {
		opts.RevealTimeout = 2 * time.Minute
	}
	if opts.RevealInterval <= 0 {
		opts.RevealInterval = 5 * time.Second
	}
	d := &Driver{catalog: catalog.Build(opts.Config)}
	if opts.FirstRun == nil {
		opts.FirstRun = firstrun.New(firstrun.Options{
			Compose:     opts.Compose,
			Waiter:      opts.Waiter,
			Checker:     d.checker,
			Reporter:    opts.Reporter,
			HTTPRetries: opts.HTTPRetries,
		})
	}
	d.opts = opts
	return d, nil
}

func (d *Driver) Catalog() catalog.Catalog { return d.catalog }

func (d *Driver) Plan(mode catalog.Mode) (Plan, error) {
	return BuildPlan(mode, d.catalog, d.opts.Config, d.opts.ComposeFile)
}

func (d *Driver) checker(desc catalog.ServiceDescriptor, since time.Time) readiness.Checker {
	return NewChecker(d.opts.Readiness, d.opts.Compose, desc, since)
}

type ServiceOutcome struct {
	Name          string            `json:"name"`
	Volume        string            `json:"volume"`
	VolumeExisted bool              `json:"volume_existed"`
	State         string            `json:"state"`
	FirstRun      *firstrun.Outcome `json:"first_run,omitempty"`
}

type Summary struct {
	Plan            Plan             `json:"plan"`
	Services        []ServiceOutcome `json:"services,omitempty"`
	PermissionFixed bool             `json:"permission_fixed,omitempty"`
	Final           readiness.Result `json:"-"`
}

// Run executes the plan for mode. It returns an error when an orchestrator
// call fails, when the run is canceled, or when the final GitLab wait does
// not reach READY. Warnings never abort the run.
func (d *Driver) Run(ctx context.Context, mode catalog.Mode) (Summary, error) {
	plan, err := d.Plan(mode)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Plan: plan}
	r := d.opts.Reporter

	if plan.Stop {
		events.Step(r, "", "stopping project %s", plan.Project)
		if err := d.opts.Compose.Stop(ctx); err != nil {
			events.Error(r, "", "stop failed: %v", err)
			return sum, err
		}
		events.Success(r, "", "all services stopped")
		return sum, nil
	}

	d.validateHosts(ctx)

	for _, ps := range plan.Services {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		so, err := d.startService(ctx, ps)
		sum.Services = append(sum.Services, so)
		if err != nil {
			return sum, err
		}
	}

	sum.PermissionFixed = d.fixPermissions(ctx, *plan.PermissionFix)

	res, err := d.finalWait(ctx)
	sum.Final = res
	return sum, err
}

func (d *Driver) validateHosts(ctx context.Context) {
	if d.opts.Hosts == nil {
		return
	}
	rep := d.opts.Hosts.Validate(ctx, d.opts.Config)
	for _, f := range rep.Findings {
		events.Warn(d.opts.Reporter, "", "%s", f.Message)
	}
	if rep.OK() && len(rep.Checked) > 0 {
		events.Info(d.opts.Reporter, "", "%d hostnames resolve", len(rep.Checked))
	}
}

func (d *Driver) startService(ctx context.Context, ps PlannedService) (ServiceOutcome, error) {
	r := d.opts.Reporter
	so := ServiceOutcome{Name: ps.Name, Volume: ps.Volume, State: readiness.StateWaiting.String()}
	desc, err := d.catalog.Get(ps.Name)
	if err != nil {
		return so, err
	}

	// The gate must be read before Up creates the volume.
	existed, err := d.opts.Engine.VolumeExists(ctx, ps.Volume)
	if err != nil {
		log.Warn().Err(err).Str("volume", ps.Volume).Msg("volume check failed")
		events.Warn(r, ps.Name, "could not inspect volume %s (%v); first-run configuration skipped", ps.Volume, err)
		existed = true
	}
	so.VolumeExisted = existed

	events.Step(r, ps.Name, "starting %s", strings.Join(ps.ComposeServices, ", "))
	if err := d.opts.Compose.Up(ctx, ps.ComposeServices...); err != nil {
		events.Error(r, ps.Name, "start failed: %v", err)
		return so, errors.Wrapf(err, "start %s", ps.Name)
	}

	if !ps.Wait {
		res := d.opts.Waiter.Probe(ctx, ps.Name, d.checker(desc, time.Time{}))
		so.State = res.State.String()
		if res.Ready() {
			events.Success(r, ps.Name, "ready")
		} else {
			events.Info(r, ps.Name, "still starting; continuing")
		}
		return so, nil
	}

	events.Info(r, ps.Name, "waiting for %q", desc.ReadyMarker)
	res := d.opts.Waiter.Wait(ctx, ps.Name, d.checker(desc, time.Time{}))
	so.State = res.State.String()
	switch res.State {
	case readiness.StateReady:
		events.Success(r, ps.Name, "ready after %s", res.Elapsed.Round(time.Second))
	case readiness.StateCanceled:
		return so, res.Err()
	default:
		events.Error(r, ps.Name, "%v", res.Err())
		if ps.FirstRun && !existed {
			events.Warn(r, ps.Name, "first-run configuration skipped; run: democtl configure %s", ps.Name)
		}
		return so, nil
	}

	if !ps.FirstRun {
		return so, nil
	}
	if existed {
		events.Info(r, ps.Name, "volume %s exists; first-run configuration already done", ps.Volume)
		return so, nil
	}
	out, err := d.opts.FirstRun.Configure(ctx, desc)
	if err != nil {
		events.Warn(r, ps.Name, "%v", err)
		return so, nil
	}
	so.FirstRun = &out
	return so, nil
}

func (d *Driver) fixPermissions(ctx context.Context, fix PermissionFix) bool {
	r := d.opts.Reporter
	events.Step(r, "", "fixing permissions on volume %s", fix.Volume)
	err := d.opts.Engine.RunPrivilegedHelper(ctx, docker.HelperSpec{
		Image:  fix.Image,
		Volume: fix.Volume,
		Target: cacheMountTarget,
		Cmd:    fix.Cmd,
	})
	if err != nil {
		events.Warn(r, "", "permission fix failed: %v", err)
		return false
	}
	return true
}

func (d *Driver) finalWait(ctx context.Context) (readiness.Result, error) {
	r := d.opts.Reporter
	gl, err := d.catalog.Get(catalog.GitLab)
	if err != nil {
		return readiness.Result{}, err
	}

	events.Step(r, gl.Name, "waiting for %q", gl.ReadyMarker)
	res := d.opts.Waiter.Wait(ctx, gl.Name, d.checker(gl, time.Time{}))
	if !res.Ready() {
		events.Error(r, gl.Name, "%v", res.Err())
		return res, res.Err()
	}

	events.Success(r, gl.Name, "ready at %s", gl.BaseURL)
	pw, err := firstrun.InitialRootPassword(ctx, d.opts.Compose, gl.LogService, d.opts.RevealTimeout, d.opts.RevealInterval)
	if err != nil {
		log.Debug().Err(err).Msg("initial root password unavailable")
		events.Warn(r, gl.Name, "initial root password not available; GitLab removes it 24 hours after the first boot")
		return res, nil
	}
	events.Info(r, gl.Name, "log in as %s with password: %s", gl.DefaultCredentials.Username, pw)
	return res, nil
}
