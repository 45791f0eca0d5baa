package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/compose"
	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/go-go-golems/democtl/pkg/docker"
	"github.com/go-go-golems/democtl/pkg/driver"
	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/go-go-golems/democtl/pkg/hostcheck"
	"github.com/go-go-golems/democtl/pkg/readiness"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// stack is everything a command needs to talk to the demo project.
type stack struct {
	cfg     config.RuntimeConfig
	file    *compose.File
	compose *compose.Client
	engine  *docker.Engine
}

func (s *stack) Close() {
	if s.engine != nil {
		_ = s.engine.Close()
	}
}

// loadConfig creates the env file from its template when it is missing.
func loadConfig(opts rootOptions, r events.Reporter) (config.RuntimeConfig, error) {
	cfg, created, err := config.Ensure(opts.EnvFile, opts.EnvTemplate)
	if err != nil {
		return config.RuntimeConfig{}, err
	}
	if created {
		events.Info(r, "", "created %s from %s; review it and rerun if hostnames or passwords need changes", opts.EnvFile, opts.EnvTemplate)
	}
	return cfg, nil
}

// peekConfig loads the env file, or the template when the env file does not
// exist yet, without writing anything.
func peekConfig(opts rootOptions) (config.RuntimeConfig, error) {
	if _, err := os.Stat(opts.EnvFile); err == nil {
		return config.LoadFromFile(opts.EnvFile)
	}
	return config.LoadFromFile(opts.EnvTemplate)
}

// loadComposeFile parses the compose file for volume names. A missing file
// is not an error here; compose reports it when it runs.
func loadComposeFile(opts rootOptions, cfg config.RuntimeConfig, r events.Reporter) *compose.File {
	path := opts.ComposeFile
	if path == "" {
		p, err := compose.FindFile(opts.ProjectDir)
		if err != nil {
			log.Debug().Err(err).Msg("no compose file found")
			return nil
		}
		path = p
	}
	f, err := compose.LoadFile(path)
	if err != nil {
		events.Warn(r, "", "could not read %s: %v", path, err)
		return nil
	}

	cat := catalog.Build(cfg)
	var wanted []string
	for _, name := range cat.Names() {
		d, _ := cat.Get(name)
		wanted = append(wanted, d.ComposeServices...)
	}
	if missing := f.MissingServices(wanted...); len(missing) > 0 {
		events.Warn(r, "", "%s does not declare services %v", path, missing)
	}
	return f
}

func openStack(ctx context.Context, opts rootOptions, cfg config.RuntimeConfig, r events.Reporter) (*stack, error) {
	s := &stack{cfg: cfg, file: loadComposeFile(opts, cfg, r)}

	var files []string
	if opts.ComposeFile != "" {
		files = []string{opts.ComposeFile}
	}
	s.compose = compose.New(compose.Options{
		ProjectDir:  opts.ProjectDir,
		ProjectName: catalog.Build(cfg).DemoName,
		EnvFile:     opts.EnvFile,
		Files:       files,
	})
	if err := s.compose.Detect(ctx); err != nil {
		if errors.Is(err, compose.ErrMissingTool) {
			return nil, errors.Wrap(err, "install the docker compose plugin or docker-compose")
		}
		return nil, err
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	s.engine = docker.New(cli)
	return s, nil
}

func (s *stack) driver(opts rootOptions, r events.Reporter) (*driver.Driver, error) {
	return driver.New(driver.Options{
		Config:      s.cfg,
		ComposeFile: s.file,
		Compose:     s.compose,
		Engine:      s.engine,
		Waiter:      readiness.NewWaiter(opts.waiterOptions()),
		Hosts:       hostcheck.New(hostcheck.Options{}),
		Reporter:    r,
		Readiness:   opts.Readiness,
		HTTPRetries: opts.HTTPRetries,
	})
}
