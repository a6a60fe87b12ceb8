package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"financas/internal/cli"
	"financas/internal/services"

	"github.com/spf13/cobra"
)

var (
	importFile     string
	importAccount  string
	importCategory string
)

var importCmd = &cobra.Command{
	Use:   "import [text]",
	Short: "Import transactions from free text",
	Long: `Extract transactions from free text with Gemini and save the valid ones
as paid cash transactions. Text comes from the argument, --file, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := importText(cmd, args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, app *cli.App, svc *cli.Services) error {
			res, err := svc.Import.Import(ctx, services.ImportRequest{
				Text:       text,
				AccountID:  importAccount,
				CategoryID: importCategory,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		})
	},
}

func importText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case importFile != "":
		b, err := os.ReadFile(importFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", importFile, err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "i", "", "Read the text from this file")
	importCmd.Flags().StringVarP(&importAccount, "account", "a", "", "Account the transactions are paid from")
	importCmd.Flags().StringVar(&importCategory, "category", "", "Category of the imported transactions")
	importCmd.MarkFlagRequired("account")
}
