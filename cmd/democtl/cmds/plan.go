package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/democtl/pkg/catalog"
	"github.com/go-go-golems/democtl/pkg/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [all|dependency-track|sonarqube|stop]",
		Short: "Print what a run in the given mode would do, without doing it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := catalog.ParseMode(args)
			if err != nil {
				return err
			}
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := peekConfig(opts)
			if err != nil {
				return err
			}
			file := loadComposeFile(opts, cfg, nil)

			plan, err := driver.BuildPlan(mode, catalog.Build(cfg), cfg, file)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal plan")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			log.Info().Str("mode", string(mode)).Int("services", len(plan.Services)).Msg("plan computed")
			return nil
		},
	}
}
