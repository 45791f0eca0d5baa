// Package firstrun performs the one-time configuration of a freshly created
// service: credential changes over HTTP and, for SonarQube, plugin installs
// followed by a restart. Steps are not transactional; a failed step is
// reported and the remaining steps still run.
package firstrun

import (
	"context"
	"net/url"
	"path"
	"time"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultPluginDir = "/opt/sonarqube/extensions/plugins"

// Compose is the part of the orchestrator client used here.
type Compose interface {
	Exec(ctx context.Context, service string, cmd ...string) (string, error)
	Restart(ctx context.Context, service string) error
}

type Waiter interface {
	Wait(ctx context.Context, service string, c readiness.Checker) readiness.Result
}

// CheckerFunc builds the readiness check for d that ignores anything
// logged before since.
type CheckerFunc func(d catalog.ServiceDescriptor, since time.Time) readiness.Checker

type Options struct {
	Compose  Compose
	Waiter   Waiter
	Checker  CheckerFunc
	Reporter events.Reporter

	HTTPClient  *retryablehttp.Client
	HTTPRetries int
	PluginDir   string
	Now         func() time.Time
}

type Configurator struct {
	opts Options
}

func New(opts Options) *Configurator {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(opts.HTTPRetries)
	}
	if opts.PluginDir == "" {
		opts.PluginDir = DefaultPluginDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Configurator{opts: opts}
}

type StepResult struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

type Outcome struct {
	Service string       `json:"service"`
	Steps   []StepResult `json:"steps"`
}

// Failed returns the steps that did not succeed.
func (o Outcome) Failed() []StepResult {
	var out []StepResult
	for _, s := range o.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

func (o Outcome) OK() bool { return len(o.Failed()) == 0 }

// Configure runs every first-run step for d. It returns an error only for a
// service it does not know how to configure; step failures are in Outcome.
func (c *Configurator) Configure(ctx context.Context, d catalog.ServiceDescriptor) (Outcome, error) {
	out := Outcome{Service: d.Name}
	switch d.Name {
	case catalog.GitLab:
		// GitLab generates its own root password; see InitialRootPassword.
		return out, nil
	case catalog.DependencyTrack:
		out.Steps = append(out.Steps, c.step(d, "change admin password", func() error {
			return c.changeDependencyTrackPassword(ctx, d)
		}))
	case catalog.SonarQube:
		out.Steps = append(out.Steps, c.step(d, "change admin password", func() error {
			return c.changeSonarQubePassword(ctx, d)
		}))
		for _, plugin := range d.Plugins {
			plugin := plugin
			out.Steps = append(out.Steps, c.step(d, "install plugin "+pluginName(plugin), func() error {
				_, err := c.opts.Compose.Exec(ctx, d.LogService, "wget", "-q", "-P", c.opts.PluginDir, plugin)
				return err
			}))
		}
		if len(d.Plugins) > 0 {
			out.Steps = append(out.Steps, c.step(d, "restart to load plugins", func() error {
				return c.restartAndWait(ctx, d)
			}))
		}
	default:
		return out, errors.Errorf("no first-run configuration for %q", d.Name)
	}

	if out.OK() {
		events.Success(c.opts.Reporter, d.Name, "first-run configuration complete")
	} else {
		events.Error(c.opts.Reporter, d.Name, "first-run configuration incomplete (%d of %d steps failed); rerun with: democtl configure %s",
			len(out.Failed()), len(out.Steps), d.Name)
	}
	return out, nil
}

func (c *Configurator) step(d catalog.ServiceDescriptor, name string, fn func() error) StepResult {
	events.Step(c.opts.Reporter, d.Name, "%s", name)
	err := fn()
	if err != nil {
		log.Warn().Err(err).Str("service", d.Name).Str("step", name).Msg("first-run step failed")
		events.Warn(c.opts.Reporter, d.Name, "%s failed: %v", name, err)
	}
	return StepResult{Name: name, Err: err}
}

func (c *Configurator) changeDependencyTrackPassword(ctx context.Context, d catalog.ServiceDescriptor) error {
	if d.TargetCredentials.Password == "" {
		return errors.New("target admin password is empty")
	}
	endpoint, err := url.JoinPath(d.BaseURL, "/api/v1/user/forceChangePassword")
	if err != nil {
		return errors.Wrap(err, "build url")
	}
	form := url.Values{
		"username":        {d.DefaultCredentials.Username},
		"password":        {d.DefaultCredentials.Password},
		"newPassword":     {d.TargetCredentials.Password},
		"confirmPassword": {d.TargetCredentials.Password},
	}
	return postForm(ctx, c.opts.HTTPClient, endpoint, form, nil)
}

func (c *Configurator) changeSonarQubePassword(ctx context.Context, d catalog.ServiceDescriptor) error {
	if d.TargetCredentials.Password == "" {
		return errors.New("target admin password is empty")
	}
	endpoint, err := url.JoinPath(d.BaseURL, "/api/users/change_password")
	if err != nil {
		return errors.Wrap(err, "build url")
	}
	form := url.Values{
		"login":            {d.DefaultCredentials.Username},
		"previousPassword": {d.DefaultCredentials.Password},
		"password":         {d.TargetCredentials.Password},
	}
	auth := &basicAuth{user: d.DefaultCredentials.Username, pass: d.DefaultCredentials.Password}
	return postForm(ctx, c.opts.HTTPClient, endpoint, form, auth)
}

func (c *Configurator) restartAndWait(ctx context.Context, d catalog.ServiceDescriptor) error {
	since := c.opts.Now()
	if err := c.opts.Compose.Restart(ctx, d.LogService); err != nil {
		return err
	}
	if c.opts.Waiter == nil || c.opts.Checker == nil {
		return nil
	}
	res := c.opts.Waiter.Wait(ctx, d.Name, c.opts.Checker(d, since))
	if err := res.Err(); err != nil {
		return err
	}
	events.Success(c.opts.Reporter, d.Name, "ready again after %d checks", res.Attempts)
	return nil
}

func pluginName(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return u
	}
	return path.Base(parsed.Path)
}
