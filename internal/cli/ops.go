package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (rt *runtime) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate PDF reports and CSV exports",
	}

	printPath := func(cmd *cobra.Command, path string, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintf(rt.out(cmd), "Report generated: %s\n", path)
		return nil
	}

	statement := &cobra.Command{
		Use:   "statement <phone>",
		Short: "Member statement PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.app.Reports.MemberStatement(cmd.Context(), args[0])
			return printPath(cmd, path, err)
		},
	}

	var year, month int
	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Monthly report PDF (defaults to the current month)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.app.Reports.MonthlyReport(cmd.Context(), year, month)
			return printPath(cmd, path, err)
		},
	}
	monthly.Flags().IntVar(&year, "year", 0, "report year")
	monthly.Flags().IntVar(&month, "month", 0, "report month (1-12)")

	overview := &cobra.Command{
		Use:   "overview",
		Short: "Financial overview PDF with the six month trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.app.Reports.FinancialOverview(cmd.Context())
			return printPath(cmd, path, err)
		},
	}

	csv := &cobra.Command{
		Use:       "csv <members|payments|subscriptions>",
		Short:     "Export a table as CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"members", "payments", "subscriptions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rt.app.Reports.ExportCSV(cmd.Context(), args[0])
			return printPath(cmd, path, err)
		},
	}

	cmd.AddCommand(statement, monthly, overview, csv)
	return cmd
}

func (rt *runtime) jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and run scheduled sweeps",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs and their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := rt.table(cmd)
			fmt.Fprintln(w, "JOB\tSCHEDULE\tNEXT RUN")
			for _, j := range rt.app.Scheduler.Jobs() {
				schedule, next := j.Schedule, "-"
				if schedule == "" {
					schedule = "on demand"
				}
				if j.NextRun != nil {
					next = j.NextRun.Format(time.RFC1123)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, schedule, next)
			}
			return w.Flush()
		},
	}

	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a sweep now",
		Long: `Run a sweep now: reminder_sweep, billing_sweep, daily_backup or
weekly_reports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := rt.app.Scheduler.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "%s finished: %d\n", args[0], count)
			return nil
		},
	}

	cmd.AddCommand(list, run)
	return cmd
}

func (rt *runtime) messageCmd() *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "message <text...>",
		Short: "Send a custom WhatsApp message to one member or all active members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rt.app.Sweeps.Broadcast(cmd.Context(), phone, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Sent: %d, failed: %d\n", resp.Sent, resp.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "send to this member only")
	return cmd
}

func (rt *runtime) botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot <phone> <text...>",
		Short: "Simulate an inbound WhatsApp message and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply := rt.app.Bot.Handle(cmd.Context(), args[0], strings.Join(args[1:], " "))
			fmt.Fprintln(rt.out(cmd), reply)
			return nil
		},
	}
}
