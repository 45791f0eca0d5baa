package cmds

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/go-go-golems/democtl/pkg/driver"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ProjectDir  string
	EnvFile     string
	EnvTemplate string
	// ComposeFile is empty when compose should pick its default file.
	ComposeFile string

	ReadyTimeout    time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	HTTPRetries     int
	Readiness       driver.ReadinessKind
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("project-dir", "", "Directory holding the compose file and .env (defaults to current directory)")
	root.PersistentFlags().String("env-file", "", "Path to the env file (defaults to .env under project-dir)")
	root.PersistentFlags().String("env-template", "", "Template copied to the env file when it is missing (defaults to .env.template under project-dir)")
	root.PersistentFlags().String("compose-file", "", "Compose file (defaults to compose's own lookup in project-dir)")
	root.PersistentFlags().Duration("ready-timeout", 0, "Give up waiting for a service after this long (0 waits until interrupted)")
	root.PersistentFlags().Duration("poll-interval", 1*time.Second, "First delay between readiness checks")
	root.PersistentFlags().Duration("max-poll-interval", 30*time.Second, "Upper bound for the readiness check delay")
	root.PersistentFlags().Int("http-retries", 3, "Retries for first-run HTTP calls that could not connect; answered calls are never resent")
	root.PersistentFlags().String("readiness", string(driver.ReadinessLogs), "Readiness detection: logs or http")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	projectDir, err := flags.GetString("project-dir")
	if err != nil {
		return rootOptions{}, err
	}
	if projectDir == "" {
		projectDir, err = os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
	}
	projectDir, err = filepath.Abs(projectDir)
	if err != nil {
		return rootOptions{}, err
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return rootOptions{}, err
	}
	envFile = resolvePath(projectDir, envFile, config.DefaultEnvPath(projectDir))

	envTemplate, err := flags.GetString("env-template")
	if err != nil {
		return rootOptions{}, err
	}
	envTemplate = resolvePath(projectDir, envTemplate, config.DefaultTemplatePath(projectDir))

	composeFile, err := flags.GetString("compose-file")
	if err != nil {
		return rootOptions{}, err
	}
	if composeFile != "" {
		composeFile = resolvePath(projectDir, composeFile, "")
	}

	readyTimeout, err := flags.GetDuration("ready-timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if readyTimeout < 0 {
		return rootOptions{}, errors.New("ready-timeout must be >= 0")
	}
	pollInterval, err := flags.GetDuration("poll-interval")
	if err != nil {
		return rootOptions{}, err
	}
	if pollInterval <= 0 {
		return rootOptions{}, errors.New("poll-interval must be > 0")
	}
	maxPollInterval, err := flags.GetDuration("max-poll-interval")
	if err != nil {
		return rootOptions{}, err
	}
	httpRetries, err := flags.GetInt("http-retries")
	if err != nil {
		return rootOptions{}, err
	}
	if httpRetries < 0 {
		return rootOptions{}, errors.New("http-retries must be >= 0")
	}
	kindRaw, err := flags.GetString("readiness")
	if err != nil {
		return rootOptions{}, err
	}
	kind, err := driver.ParseReadinessKind(kindRaw)
	if err != nil {
		return rootOptions{}, err
	}

	return rootOptions{
		ProjectDir:      projectDir,
		EnvFile:         envFile,
		EnvTemplate:     envTemplate,
		ComposeFile:     composeFile,
		ReadyTimeout:    readyTimeout,
		PollInterval:    pollInterval,
		MaxPollInterval: maxPollInterval,
		HTTPRetries:     httpRetries,
		Readiness:       kind,
	}, nil
}

func (o rootOptions) waiterOptions() readiness.Options {
	return readiness.Options{
		Interval:    o.PollInterval,
		MaxInterval: o.MaxPollInterval,
		Timeout:     o.ReadyTimeout,
	}
}

func resolvePath(base, p, def string) string {
	if p == "" {
		return def
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
