package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	respond func(name string, args []string) (Output, error)
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) (Output, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: append([]string{}, args...)})
	if f.respond == nil {
		return Output{}, nil
	}
	return f.respond(name, args)
}

func (f *fakeRunner) lines() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(append([]string{c.name}, c.args...), " "))
	}
	return out
}

func newTestClient(r *fakeRunner) *Client {
	return New(Options{
		ProjectDir:  "/stack",
		ProjectName: "demo",
		EnvFile:     "/stack/.env",
		Files:       []string{"/stack/docker-compose.yml"},
		Command:     []string{"docker", "compose"},
		Runner:      r,
	})
}

func TestClient_UpPassesExactServiceList(t *testing.T) {
	r := &fakeRunner{}
	c := newTestClient(r)

	require.NoError(t, c.Up(context.Background(), "dtrack-apiserver", "dtrack-frontend"))
	require.Equal(t, []string{
		"docker compose --project-name demo --env-file /stack/.env -f /stack/docker-compose.yml up --detach dtrack-apiserver dtrack-frontend",
	}, r.lines())
	require.Equal(t, "/stack", r.calls[0].dir)
}

func TestClient_UpRequiresServices(t *testing.T) {
	r := &fakeRunner{}
	require.Error(t, newTestClient(r).Up(context.Background()))
	require.Empty(t, r.calls)
}

func TestClient_NonZeroExitIsOrchestratorError(t *testing.T) {
	r := &fakeRunner{respond: func(name string, args []string) (Output, error) {
		return Output{ExitCode: 1, Stderr: "no such service: gitlab\n"}, nil
	}}
	err := newTestClient(r).Up(context.Background(), "gitlab")
	require.Error(t, err)

	var oe *OrchestratorError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, 1, oe.ExitCode)
	require.Equal(t, []string{"up", "--detach", "gitlab"}, oe.Args)
	require.Contains(t, oe.Error(), "no such service: gitlab")
}

func TestClient_ExecLogsRestartStop(t *testing.T) {
	r := &fakeRunner{respond: func(name string, args []string) (Output, error) {
		return Output{Stdout: "out"}, nil
	}}
	c := newTestClient(r)
	ctx := context.Background()

	out, err := c.Exec(ctx, "sonarqube", "wget", "-q", "https://x/a.jar")
	require.NoError(t, err)
	require.Equal(t, "out", out)

	logs, err := c.ServiceLogs(ctx, "sonarqube")
	require.NoError(t, err)
	require.Equal(t, "out", logs)

	_, err = c.Logs(ctx, "gitlab", LogOptions{Tail: 20})
	require.NoError(t, err)
	require.NoError(t, c.Restart(ctx, "sonarqube"))
	require.NoError(t, c.Stop(ctx))

	prefix := "docker compose --project-name demo --env-file /stack/.env -f /stack/docker-compose.yml "
	require.Equal(t, []string{
		prefix + "exec -T sonarqube wget -q https://x/a.jar",
		prefix + "logs --no-color --timestamps --no-log-prefix sonarqube",
		prefix + "logs --no-color --tail 20 gitlab",
		prefix + "restart sonarqube",
		prefix + "stop",
	}, r.lines())
}

func TestClient_DetectFallsBackToLegacyBinary(t *testing.T) {
	r := &fakeRunner{respond: func(name string, args []string) (Output, error) {
		if name == "docker" {
			return Output{ExitCode: 1, Stderr: "docker: 'compose' is not a docker command."}, nil
		}
		return Output{Stdout: "docker-compose version 1.29.2"}, nil
	}}
	c := New(Options{ProjectName: "demo", Runner: r})
	require.NoError(t, c.Stop(context.Background()))
	require.Equal(t, []string{
		"docker compose version",
		"docker-compose version",
		"docker-compose --project-name demo stop",
	}, r.lines())
}

func TestClient_DetectMissingTool(t *testing.T) {
	r := &fakeRunner{respond: func(name string, args []string) (Output, error) {
		return Output{}, ErrMissingTool
	}}
	c := New(Options{Runner: r})
	err := c.Up(context.Background(), "gitlab")
	require.ErrorIs(t, err, ErrMissingTool)
}

func TestLoadFile_VolumeNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  gitlab:
    image: gitlab/gitlab-ce
    volumes:
      - gitlab_config:/etc/gitlab
  sonarqube:
    image: sonarqube:community
volumes:
  gitlab_config:
  sonarqube_config:
    name: ${DEMO_NAME}-sonarqube_config
`), 0o644))

	found, err := FindFile(dir)
	require.NoError(t, err)
	require.Equal(t, path, found)

	f, err := LoadFile(path)
	require.NoError(t, err)

	expand := func(s string) string { return os.Expand(s, func(string) string { return "acme" }) }
	require.Equal(t, "acme-sonarqube_config", f.VolumeName("sonarqube_config", expand, "fallback"))
	require.Equal(t, "fallback", f.VolumeName("gitlab_config", expand, "fallback"))
	require.Equal(t, "fallback", f.VolumeName("unknown", expand, "fallback"))
	require.Equal(t, []string{"dtrack-apiserver", "dtrack-frontend"}, f.MissingServices("gitlab", "dtrack-frontend", "dtrack-apiserver"))

	var nilFile *File
	require.Equal(t, "fb", nilFile.VolumeName("x", nil, "fb"))
}

func TestFindFile_None(t *testing.T) {
	_, err := FindFile(t.TempDir())
	require.Error(t, err)
}
