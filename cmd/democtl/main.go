package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/democtl/cmd/democtl/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "democtl [all|dependency-track|sonarqube|stop]",
	Short:   "democtl brings up the GitLab / SonarQube / Dependency-Track demo stack",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromCobra(cmd)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(logging.AddLoggingLayerToRootCommand(rootCmd, "democtl"))
	cmds.AddRootFlags(rootCmd)
	cmds.SetRootRun(rootCmd)
	cobra.CheckErr(cmds.AddCommands(rootCmd))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
