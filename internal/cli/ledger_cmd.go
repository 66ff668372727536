package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mkoba/internal/core"
	"mkoba/internal/export"
	"mkoba/internal/services"
)

func newMonthsCmd(app *App) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "months",
		Short: "List the months from a start month through the current month",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonth(start)
			if err != nil {
				return err
			}
			for _, month := range core.MonthsFromStart(m, app.Now()) {
				fmt.Fprintln(cmd.OutOrStdout(), month)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start month (YYYY-MM)")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newPeriodsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List contribution periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			periods, err := app.Ledger.ListPeriods(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tYEAR\tSTART")
			for _, p := range periods {
				start := "-"
				if p.StartMonth != nil {
					start = p.StartMonth.String()
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", p.ID, p.Year, start)
			}
			return tw.Flush()
		},
	}
}

func newMembersCmd(app *App) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "members",
		Short: "List members of the group",
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := app.Members.List(cmd.Context(), query)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tROLE\tACTIVE")
			for _, m := range members {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", m.ID, m.Name, m.Role, m.Active)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Only members whose name contains this text")

	return cmd
}

func newLedgerCmd(app *App, id *identity) *cobra.Command {
	var periodID, query string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the member by month ledger of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := id.session(periodID)
			if err != nil {
				return err
			}
			view, err := app.Ledger.View(cmd.Context(), sess, query)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "Period ID")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only members whose name contains this text")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func printLedger(w io.Writer, view services.LedgerView) error {
	if !view.Initialized {
		_, err := fmt.Fprintf(w, "Ledger for %d is not initialized.\n", view.Period.Year)
		return err
	}
	tw := newTable(w)
	fmt.Fprint(tw, "NAME")
	for _, m := range view.Months {
		fmt.Fprintf(tw, "\t%s", m)
	}
	fmt.Fprintln(tw, "\tTOTAL")
	for _, r := range view.Rows {
		fmt.Fprint(tw, r.Member.Name)
		for _, c := range r.Cells {
			if c.Recorded {
				fmt.Fprintf(tw, "\t%s", export.FormatMoney(c.Amount))
			} else {
				fmt.Fprint(tw, "\t-")
			}
		}
		fmt.Fprintf(tw, "\t%s\n", export.FormatMoney(r.Total))
	}
	fmt.Fprint(tw, export.GrandTotalRow)
	for _, t := range view.Footer.MonthTotals {
		fmt.Fprintf(tw, "\t%s", export.FormatMoney(t))
	}
	fmt.Fprintf(tw, "\t%s\n", export.FormatMoney(view.Footer.GrandTotal))
	return tw.Flush()
}

func newSetCmd(app *App, id *identity) *cobra.Command {
	var periodID, memberID, month, amount string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record a member's contribution for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := id.session(periodID)
			if err != nil {
				return err
			}
			m, err := core.ParseMonth(month)
			if err != nil {
				return err
			}
			amt, err := core.ParseMoney(amount)
			if err != nil {
				return err
			}
			view, err := app.Ledger.SetContribution(cmd.Context(), sess, memberID, m, amt)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "Period ID")
	cmd.Flags().StringVar(&memberID, "member", "", "Member ID")
	cmd.Flags().StringVar(&month, "month", "", "Month (YYYY-MM)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in major units, e.g. 5000 or 12.50")
	for _, f := range []string{"period", "member", "month", "amount"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func newInitCmd(app *App, id *identity) *cobra.Command {
	var periodID, start string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set the start month of an uninitialized period",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := id.session(periodID)
			if err != nil {
				return err
			}
			m, err := core.ParseMonth(start)
			if err != nil {
				return err
			}
			view, err := app.Ledger.InitializePeriod(cmd.Context(), sess, m)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "Period ID")
	cmd.Flags().StringVar(&start, "start", "", "Start month (YYYY-MM)")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newSummaryCmd(app *App, id *identity) *cobra.Command {
	var periodID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard figures of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := id.session(periodID)
			if err != nil {
				return err
			}
			s, err := app.Ledger.Summary(cmd.Context(), sess)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Total collected\t%s\n", export.FormatMoney(s.TotalCollected))
			fmt.Fprintf(tw, "Total disbursed\t%s\n", export.FormatMoney(s.TotalDisbursed))
			fmt.Fprintf(tw, "Net balance\t%s\n", export.FormatMoney(s.NetBalance))
			fmt.Fprintf(tw, "Members\t%d\n", s.MemberCount)
			fmt.Fprintf(tw, "Payouts\t%d\n", s.PayoutCount)
			fmt.Fprintf(tw, "Liquidity\t%s%%\n", strconv.FormatInt(s.LiquidityPercent(), 10))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "Period ID")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func newExportCmd(app *App, id *identity) *cobra.Command {
	var periodID, from, to, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the spreadsheet and document exports of a month range",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := id.session(periodID)
			if err != nil {
				return err
			}
			var fromMonth, toMonth core.Month
			if from != "" {
				if fromMonth, err = core.ParseMonth(from); err != nil {
					return err
				}
			}
			if to != "" {
				if toMonth, err = core.ParseMonth(to); err != nil {
					return err
				}
			}
			art, err := app.Ledger.Export(cmd.Context(), sess, fromMonth, toMonth)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			files := []struct {
				name string
				data []byte
			}{
				{export.SpreadsheetName, art.Spreadsheet},
				{export.DocumentName, art.Document},
			}
			for _, f := range files {
				path := filepath.Join(out, f.name)
				if err := os.WriteFile(path, f.data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", f.name, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "Period ID")
	cmd.Flags().StringVar(&from, "from", "", "First month (YYYY-MM), defaults to the first active month")
	cmd.Flags().StringVar(&to, "to", "", "Last month (YYYY-MM), defaults to the last active month")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
