// Command asamblea reads the participation store directly for reports,
// exports and directory imports.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/asamblea/pkg/logger"
)

const programName = "asamblea"

func main() {
	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithSource(false)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	flags := &storeFlags{}
	cmd := &cobra.Command{
		Use:           programName,
		Short:         "Participation reports for assemblies",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags.register(cmd)
	cmd.AddCommand(
		listCommand(flags),
		createCommand(flags),
		reportCommand(flags),
		chartCommand(flags),
		exportCommand(flags),
		importCommand(flags),
	)
	return cmd
}
