package main

import (
	"context"
	"encoding/json"

	"financas/internal/cli"
	"financas/internal/core"

	"github.com/spf13/cobra"
)

var fireAsOf string

var fireCmd = &cobra.Command{
	Use:   "fire",
	Short: "Materialize due recurring items",
	Long: `Fire every enabled recurring item due on or before --as-of (default today),
catching up on missed months. Re-running for the same date creates nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App, svc *cli.Services) error {
			asOf := svc.Recurring.Today()
			if fireAsOf != "" {
				d, err := core.ParseDate(fireAsOf)
				if err != nil {
					return err
				}
				asOf = d
			}
			summary, err := svc.Recurring.ProcessDue(ctx, asOf)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(summary); encErr != nil {
				return encErr
			}
			return err
		})
	},
}

func init() {
	fireCmd.Flags().StringVar(&fireAsOf, "as-of", "", "Fire items due on or before this date (YYYY-MM-DD)")
}
