package main

import (
	"context"
	"encoding/json"
	"fmt"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/report"

	"github.com/spf13/cobra"
)

type reportFlags struct {
	kind         string
	start, end   string
	compare      string
	compareStart string
	compareEnd   string
	accounts     []string
	cards        []string
	categories   []string
	txType       string
	format       string
}

var reportOpts reportFlags

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a period report",
	Long: `Build an evolution, category or comparison report for a date range.
Amounts are counted on the day each installment was paid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App, svc *cli.Services) error {
			req, err := reportOpts.request(cmd, svc.Recurring.Today())
			if err != nil {
				return err
			}
			res, err := svc.Reports.Build(ctx, req)
			if err != nil {
				return err
			}
			if reportOpts.format == "csv" {
				return report.WriteCSV(cmd.OutOrStdout(), res)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		})
	},
}

// request turns the flags into a validated report request. Id flags that
// were not given leave their dimension unfiltered.
func (f reportFlags) request(cmd *cobra.Command, today core.Date) (report.Request, error) {
	kind, err := report.ParseKind(f.kind)
	if err != nil {
		return report.Request{}, err
	}
	primary := core.MonthPeriod(today)
	if f.start != "" || f.end != "" {
		if primary, err = core.ParsePeriod(f.start, f.end); err != nil {
			return report.Request{}, err
		}
	}
	req := report.Request{Kind: kind, Primary: primary}

	switch {
	case f.compareStart != "" || f.compareEnd != "":
		compare, err := core.ParsePeriod(f.compareStart, f.compareEnd)
		if err != nil {
			return report.Request{}, err
		}
		req.Compare = &compare
	default:
		mode, err := report.ParseCompareMode(f.compare)
		if err != nil {
			return report.Request{}, err
		}
		if mode != report.CompareNone {
			compare, err := report.ComparisonPeriod(primary, mode)
			if err != nil {
				return report.Request{}, err
			}
			req.Compare = &compare
		}
	}

	if req.Filters.Type, err = report.ParseTxType(f.txType); err != nil {
		return report.Request{}, err
	}
	if cmd.Flags().Changed("accounts") {
		req.Filters.Accounts = report.Only(f.accounts...)
	}
	if cmd.Flags().Changed("cards") {
		req.Filters.Cards = report.Only(f.cards...)
	}
	if cmd.Flags().Changed("categories") {
		req.Filters.Categories = report.Only(f.categories...)
	}
	if f.format != "json" && f.format != "csv" {
		return report.Request{}, fmt.Errorf("%w: format %q", report.ErrInvalidRequest, f.format)
	}
	return req, req.Validate()
}

func init() {
	fl := reportCmd.Flags()
	fl.StringVarP(&reportOpts.kind, "kind", "k", "category", "Report kind: evolution, category or comparison")
	fl.StringVar(&reportOpts.start, "start", "", "First day of the period (YYYY-MM-DD), default this month")
	fl.StringVar(&reportOpts.end, "end", "", "Last day of the period (YYYY-MM-DD)")
	fl.StringVarP(&reportOpts.compare, "compare", "c", "none", "Comparison: none, previous_period or previous_year")
	fl.StringVar(&reportOpts.compareStart, "compare-start", "", "Explicit comparison start (YYYY-MM-DD)")
	fl.StringVar(&reportOpts.compareEnd, "compare-end", "", "Explicit comparison end (YYYY-MM-DD)")
	fl.StringSliceVar(&reportOpts.accounts, "accounts", nil, "Only these account ids")
	fl.StringSliceVar(&reportOpts.cards, "cards", nil, "Only these card ids")
	fl.StringSliceVar(&reportOpts.categories, "categories", nil, "Only these category ids")
	fl.StringVarP(&reportOpts.txType, "type", "t", "all", "Transaction type: all, income or expense")
	fl.StringVarP(&reportOpts.format, "format", "f", "json", "Output format: json or csv")
}
