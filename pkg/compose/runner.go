package compose

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrMissingTool = errors.New("docker compose not found (install the compose plugin or docker-compose)")

// OrchestratorError is a compose invocation that ran and failed.
type OrchestratorError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *OrchestratorError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("compose %s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("compose %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Runner executes a command line. A non-zero exit is reported through
// Output.ExitCode; err is reserved for commands that could not run at all.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (Output, error)
}

type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type ExecRunner struct {
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (Output, error) {
	// #nosec G204 -- compose binary and arguments are built by this package.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("cmd", name).Strs("args", args).Msg("exec")
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var ee *exec.ExitError
		if stderrors.As(err, &ee) {
			out.ExitCode = ee.ExitCode()
			return out, nil
		}
		if stderrors.Is(err, exec.ErrNotFound) {
			return out, errors.Wrap(ErrMissingTool, err.Error())
		}
		return out, errors.Wrapf(err, "run %s", name)
	}
	return out, nil
}
