package compose

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ProjectDir  string
	ProjectName string
	EnvFile     string
	Files       []string
	// Command is the compose entry point, e.g. ["docker", "compose"].
	// Empty means Detect picks one.
	Command []string
	Runner  Runner
}

// Client drives one compose project. Every method maps to exactly one
// compose invocation.
type Client struct {
	opts Options
}

func New(opts Options) *Client {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Client{opts: opts}
}

// Detect resolves the compose entry point: the docker CLI plugin first, then
// the standalone docker-compose binary.
func (c *Client) Detect(ctx context.Context) error {
	if len(c.opts.Command) > 0 {
		return nil
	}
	candidates := [][]string{
		{"docker", "compose"},
		{"docker-compose"},
	}
	for _, cand := range candidates {
		args := append(append([]string{}, cand[1:]...), "version")
		out, err := c.opts.Runner.Run(ctx, c.opts.ProjectDir, cand[0], args...)
		if err != nil {
			if errors.Is(err, ErrMissingTool) {
				continue
			}
			return err
		}
		if out.ExitCode == 0 {
			c.opts.Command = cand
			log.Debug().Strs("command", cand).Msg("compose detected")
			return nil
		}
	}
	return ErrMissingTool
}

func (c *Client) ProjectName() string {
	return c.opts.ProjectName
}

// Up starts exactly the given services, detached.
func (c *Client) Up(ctx context.Context, services ...string) error {
	if len(services) == 0 {
		return errors.New("up: no services given")
	}
	args := append([]string{"up", "--detach"}, services...)
	_, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	log.Info().Strs("services", services).Msg("services started")
	return nil
}

// Stop stops every service of the project.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.run(ctx, "stop")
	return err
}

func (c *Client) Restart(ctx context.Context, service string) error {
	_, err := c.run(ctx, "restart", service)
	return err
}

// Exec runs cmd inside the running service container without a TTY.
func (c *Client) Exec(ctx context.Context, service string, cmd ...string) (string, error) {
	if len(cmd) == 0 {
		return "", errors.New("exec: empty command")
	}
	args := append([]string{"exec", "-T", service}, cmd...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

type LogOptions struct {
	Timestamps bool
	NoPrefix   bool
	// Tail limits output to the last N lines; 0 means all.
	Tail int
}

func (c *Client) Logs(ctx context.Context, service string, opts LogOptions) (string, error) {
	args := []string{"logs", "--no-color"}
	if opts.Timestamps {
		args = append(args, "--timestamps")
	}
	if opts.NoPrefix {
		args = append(args, "--no-log-prefix")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Tail))
	}
	args = append(args, service)
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// ServiceLogs returns the full timestamped log of a service, one entry per
// line, without the compose service prefix.
func (c *Client) ServiceLogs(ctx context.Context, service string) (string, error) {
	return c.Logs(ctx, service, LogOptions{Timestamps: true, NoPrefix: true})
}

func (c *Client) globalArgs() []string {
	var args []string
	if c.opts.ProjectName != "" {
		args = append(args, "--project-name", c.opts.ProjectName)
	}
	if c.opts.EnvFile != "" {
		args = append(args, "--env-file", c.opts.EnvFile)
	}
	for _, f := range c.opts.Files {
		args = append(args, "-f", f)
	}
	return args
}

func (c *Client) run(ctx context.Context, args ...string) (Output, error) {
	if len(c.opts.Command) == 0 {
		if err := c.Detect(ctx); err != nil {
			return Output{}, err
		}
	}
	full := append(append(append([]string{}, c.opts.Command[1:]...), c.globalArgs()...), args...)
	out, err := c.opts.Runner.Run(ctx, c.opts.ProjectDir, c.opts.Command[0], full...)
	if err != nil {
		return out, err
	}
	if out.ExitCode != 0 {
		return out, &OrchestratorError{Args: args, ExitCode: out.ExitCode, Stderr: lastLines(out.Stderr, 5)}
	}
	return out, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
