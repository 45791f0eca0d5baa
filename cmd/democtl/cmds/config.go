package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/democtl/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the env file",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := peekConfig(opts)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal config")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the env file from its template if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			_, created, err := config.Ensure(opts.EnvFile, opts.EnvTemplate)
			if err != nil {
				return err
			}
			if created {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", opts.EnvFile)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", opts.EnvFile)
			}
			return nil
		},
	}
}
