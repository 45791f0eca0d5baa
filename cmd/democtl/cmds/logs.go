package cmds

import (
	"fmt"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/compose"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var tail int
	var timestamps bool

	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: "Print the log a service's readiness is detected from",
		Long:  "The service is a democtl service (gitlab, dependency-track, sonarqube) or any compose service name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := peekConfig(opts)
			if err != nil {
				return err
			}

			service := args[0]
			if d, err := catalog.Build(cfg).Get(service); err == nil {
				service = d.LogService
			}

			s, err := openStack(cmd.Context(), opts, cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.compose.Logs(cmd.Context(), service, compose.LogOptions{
				Timestamps: timestamps,
				NoPrefix:   true,
				Tail:       tail,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 100, "Number of lines from the end (0 prints everything)")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Prefix each line with its timestamp")
	return cmd
}
