package catalog

import (
	"testing"

	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		args []string
		want Mode
	}{
		{nil, ModeGitLabOnly},
		{[]string{"all"}, ModeAll},
		{[]string{"dependency-track"}, ModeDependencyTrack},
		{[]string{"sonarqube"}, ModeSonarQube},
		{[]string{"stop"}, ModeStop},
	}
	for _, tc := range cases {
		m, err := ParseMode(tc.args)
		require.NoError(t, err)
		require.Equal(t, tc.want, m)
	}
}

func TestParseMode_Unknown(t *testing.T) {
	for _, args := range [][]string{{"gitlab"}, {"ALL"}, {"sonar"}, {"all", "stop"}} {
		_, err := ParseMode(args)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnknownArgument), "args=%v", args)
	}
}

func TestMode_OptionalOrder(t *testing.T) {
	require.Nil(t, ModeGitLabOnly.Optional())
	require.Nil(t, ModeStop.Optional())
	require.Equal(t, []string{DependencyTrack, SonarQube}, ModeAll.Optional())
	require.Equal(t, []string{SonarQube}, ModeSonarQube.Optional())
}

func TestBuild(t *testing.T) {
	cfg := config.New(map[string]string{
		"DEMO_NAME":                "acme",
		"SONARQUBE_HOSTNAME":       "sonar.acme.local",
		"SONARQUBE_PORT":           "9001",
		"SONARQUBE_ADMIN_PASSWORD": "pw",
		"SONARQUBE_PLUGINS":        "https://x/a.jar https://x/b.jar",
	})
	c := Build(cfg)
	require.Equal(t, "acme", c.DemoName)
	require.Equal(t, []string{DependencyTrack, GitLab, SonarQube}, c.Names())

	sq, err := c.Get(SonarQube)
	require.NoError(t, err)
	require.Equal(t, "http://sonar.acme.local:9001", sq.BaseURL)
	require.Equal(t, "http://sonar.acme.local:9001/api/system/status", sq.HealthURL())
	require.Equal(t, "acme-sonarqube_config", sq.DefaultVolumeName(c.DemoName))
	require.Equal(t, "SonarQube is operational", sq.ReadyMarker)
	require.Equal(t, "pw", sq.TargetCredentials.Password)
	require.Equal(t, []string{"https://x/a.jar", "https://x/b.jar"}, sq.Plugins)

	_, err = c.Get("jenkins")
	require.Error(t, err)
}

func TestBuild_Defaults(t *testing.T) {
	c := Build(config.New(nil))
	require.Equal(t, "demo", c.DemoName)
	gl, err := c.Get(GitLab)
	require.NoError(t, err)
	require.Equal(t, "demo-gitlab_config", gl.DefaultVolumeName(c.DemoName))
	require.Equal(t, "Server initialized", gl.ReadyMarker)
}
