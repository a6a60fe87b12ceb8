package main

import (
	"errors"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/report"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_Metadata(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
		assert.NotEmpty(t, c.Short, c.Name())
		assert.NotNil(t, c.RunE, c.Name())
	}
	for _, want := range []string{"fire", "report", "import"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestCommands_Flags(t *testing.T) {
	asOf := fireCmd.Flags().Lookup("as-of")
	require.NotNil(t, asOf)
	assert.Equal(t, "", asOf.DefValue)

	kind := reportCmd.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "k", kind.Shorthand)
	assert.Equal(t, "category", kind.DefValue)

	account := importCmd.Flags().Lookup("account")
	require.NotNil(t, account)
	assert.Equal(t, []string{"true"}, account.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestReportFlags_Request(t *testing.T) {
	today := core.NewDate(2024, time.March, 15)

	newCmd := func(t *testing.T, args ...string) (*cobra.Command, reportFlags) {
		t.Helper()
		var f reportFlags
		cmd := &cobra.Command{Use: "report"}
		fl := cmd.Flags()
		fl.StringVar(&f.kind, "kind", "category", "")
		fl.StringVar(&f.start, "start", "", "")
		fl.StringVar(&f.end, "end", "", "")
		fl.StringVar(&f.compare, "compare", "none", "")
		fl.StringVar(&f.compareStart, "compare-start", "", "")
		fl.StringVar(&f.compareEnd, "compare-end", "", "")
		fl.StringSliceVar(&f.accounts, "accounts", nil, "")
		fl.StringSliceVar(&f.cards, "cards", nil, "")
		fl.StringSliceVar(&f.categories, "categories", nil, "")
		fl.StringVar(&f.txType, "type", "all", "")
		fl.StringVar(&f.format, "format", "json", "")
		require.NoError(t, fl.Parse(args))
		return cmd, f
	}

	t.Run("defaults to this month without filters", func(t *testing.T) {
		cmd, f := newCmd(t)
		req, err := f.request(cmd, today)
		require.NoError(t, err)
		assert.Equal(t, core.MonthPeriod(today), req.Primary)
		assert.Nil(t, req.Compare)
		assert.True(t, req.Filters.Accounts.IsAll())
		assert.Equal(t, report.TypeAll, req.Filters.Type)
	})

	t.Run("previous year comparison with filters", func(t *testing.T) {
		cmd, f := newCmd(t, "--kind=comparison", "--start=2024-02-01", "--end=2024-02-29",
			"--compare=previous_year", "--cards=visa", "--type=expense")
		req, err := f.request(cmd, today)
		require.NoError(t, err)
		require.NotNil(t, req.Compare)
		assert.Equal(t, core.NewDate(2023, time.February, 28), req.Compare.End)
		assert.Equal(t, []string{"visa"}, req.Filters.Cards.IDs())
		assert.True(t, req.Filters.Accounts.IsAll())
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, args := range [][]string{
			{"--kind=pie"},
			{"--kind=comparison"},
			{"--format=xml"},
			{"--compare=yesterday"},
		} {
			cmd, f := newCmd(t, args...)
			_, err := f.request(cmd, today)
			assert.True(t, errors.Is(err, report.ErrInvalidRequest) || errors.Is(err, report.ErrMissingCompare), "%v: %v", args, err)
		}
	})
}
