package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/go-go-golems/democtl/pkg/driver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testTemplate = `DEMO_NAME=acme
GITLAB_HOSTNAME=gitlab.acme.local
GITLAB_HTTP_PORT=8080
SONARQUBE_ADMIN_PASSWORD=change-me
CACHE_VOLUME=${DEMO_NAME}-shared-cache
`

func newTestRoot(t *testing.T) (*cobra.Command, *bytes.Buffer, string) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultTemplateFilename), []byte(testTemplate), 0o644))

	root := &cobra.Command{Use: "democtl"}
	AddRootFlags(root)
	SetRootRun(root)
	require.NoError(t, AddCommands(root))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	return root, &out, dir
}

func TestRoot_UnknownArgument(t *testing.T) {
	root, _, dir := newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "jenkins"})
	err := root.Execute()
	require.True(t, errors.Is(err, catalog.ErrUnknownArgument))

	root, _, dir = newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "all", "stop"})
	err = root.Execute()
	require.True(t, errors.Is(err, catalog.ErrUnknownArgument))

	// nothing was created
	_, statErr := os.Stat(filepath.Join(dir, config.DefaultEnvFilename))
	require.True(t, os.IsNotExist(statErr))
}

func TestPlan_HasNoSideEffects(t *testing.T) {
	root, out, dir := newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "plan", "sonarqube"})
	require.NoError(t, root.Execute())

	var plan driver.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	require.Equal(t, catalog.ModeSonarQube, plan.Mode)
	require.Equal(t, []string{catalog.GitLab, catalog.SonarQube}, plan.StartSet())
	require.Equal(t, "acme-sonarqube_config", plan.Services[1].Volume)
	require.Equal(t, "acme-shared-cache", plan.PermissionFix.Volume)

	_, err := os.Stat(filepath.Join(dir, config.DefaultEnvFilename))
	require.True(t, os.IsNotExist(err))
}

func TestConfigInitAndShow(t *testing.T) {
	root, out, dir := newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "config", "init"})
	require.NoError(t, root.Execute())

	b, err := os.ReadFile(filepath.Join(dir, config.DefaultEnvFilename))
	require.NoError(t, err)
	require.Equal(t, testTemplate, string(b))
	require.Contains(t, out.String(), "created")

	root, out, _ = newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "config", "show"})
	require.NoError(t, root.Execute())

	var shown map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &shown))
	require.Equal(t, "gitlab.acme.local", shown["GITLAB_HOSTNAME"])
	require.NotEqual(t, "change-me", shown["SONARQUBE_ADMIN_PASSWORD"])
}

func TestRootOptions_Validation(t *testing.T) {
	root, _, dir := newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "--readiness", "grpc", "plan"})
	require.Error(t, root.Execute())

	root, _, dir = newTestRoot(t)
	root.SetArgs([]string{"--project-dir", dir, "--poll-interval", "0s", "plan"})
	require.Error(t, root.Execute())
}
