package cmds

import (
	"context"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// SetRootRun makes the root command itself run the stack for the mode given
// as its only positional argument.
func SetRootRun(root *cobra.Command) {
	root.Long = `Without an argument democtl starts GitLab only. "dependency-track" and
"sonarqube" add that service, "all" adds both, "stop" stops every service.

First-run configuration (admin passwords, SonarQube plugins) runs only when a
service's data volume did not exist before this run. If it fails, fix the
cause and run "democtl configure <service>".`
	root.Args = cobra.ArbitraryArgs
	root.SilenceUsage = true
	root.RunE = func(cmd *cobra.Command, args []string) error {
		mode, err := catalog.ParseMode(args)
		if err != nil {
			return err
		}
		opts, err := getRootOptions(cmd)
		if err != nil {
			return err
		}

		return events.RunWithConsole(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, r events.Reporter) error {
			cfg, err := loadConfig(opts, r)
			if err != nil {
				return err
			}
			s, err := openStack(ctx, opts, cfg, r)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.driver(opts, r)
			if err != nil {
				return err
			}
			sum, err := d.Run(ctx, mode)
			if err != nil {
				return err
			}
			log.Info().Str("mode", string(mode)).Strs("services", sum.Plan.StartSet()).Msg("run complete")
			return nil
		})
	}
}
