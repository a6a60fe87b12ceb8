// Command financas-cli runs the scheduler, reports and text import from the shell.
package main

import (
	"context"
	"os"

	"financas/internal/cli"
	"financas/internal/log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "financas-cli",
	Short: "Personal finance scheduler and reports",
	Long: `financas-cli fires due recurring items, builds period reports and
imports transactions from free text, against the same SQLite store as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(fireCmd, reportCmd, importCmd)
}

// withApp bootstraps the application for one command run.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App, svc *cli.Services) error) error {
	app, err := cli.Bootstrap(log.ComponentCLI)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()
	return fn(ctx, app, app.Services(ctx))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
