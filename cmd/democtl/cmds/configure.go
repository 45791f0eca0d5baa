package cmds

import (
	"context"

	"github.com/go-go-golems/democtl/pkg/events"
	"github.com/spf13/cobra"
)

func newConfigureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure <service>",
		Short: "Rerun first-run configuration for a running service",
		Long: `Runs the one-time configuration (admin password change, SonarQube plugins
and restart) again, regardless of whether the service's data volume already
existed. Use it when the configuration of a first run failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				_, err = d.Configure(ctx, args[0])
				return err
			})
		},
	}
}
