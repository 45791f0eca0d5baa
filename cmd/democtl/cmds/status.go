package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe every service once and show whether its data volume exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := peekConfig(opts)
			if err != nil {
				return err
			}
			s, err := openStack(cmd.Context(), opts, cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.driver(opts, nil)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(map[string]any{
				"project":  d.Catalog().DemoName,
				"services": d.Status(cmd.Context()),
			}, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal status")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
