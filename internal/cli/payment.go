package cli

import (
	"fmt"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (rt *runtime) payCmd() *cobra.Command {
	var paymentType, description string
	cmd := &cobra.Command{
		Use:   "pay <phone> <amount>",
		Short: "Record a payment for a member",
		Long: `Record a payment. Contributions credit the member's balance; other
types are recorded without changing it.

Examples:
  chamactl pay 254712345678 500
  chamactl pay 254712345678 200 --type fine --description "Late to meeting"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			p, balance, err := rt.app.Ledger.AddPayment(cmd.Context(), args[0], amount, paymentType, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Payment #%d of KES %s recorded (%s). New balance: KES %s\n",
				p.ID, domain.Shillings(p.Amount), p.Type, domain.Shillings(balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&paymentType, "type", domain.PaymentContribution, "payment type")
	cmd.Flags().StringVar(&description, "description", "", "payment description")
	return cmd
}

func (rt *runtime) paymentsCmd() *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List payments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payments, err := rt.app.Ledger.ListPayments(cmd.Context(), phone)
			if err != nil {
				return err
			}
			if len(payments) == 0 {
				fmt.Fprintln(rt.out(cmd), "No payments found")
				return nil
			}
			w := rt.table(cmd)
			fmt.Fprintln(w, "ID\tDATE\tPHONE\tNAME\tTYPE\tAMOUNT\tDESCRIPTION")
			for _, p := range payments {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Date.Format("2006-01-02 15:04"),
					p.Phone, p.Name, p.Type, domain.Cents(p.Amount), p.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "only payments of this member")
	return cmd
}

func (rt *runtime) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show contribution totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.app.Ledger.PaymentSummary(cmd.Context())
			if err != nil {
				return err
			}
			out := rt.out(cmd)
			fmt.Fprintf(out, "Total contributions:   KES %s\n", domain.Cents(s.TotalContributions))
			fmt.Fprintf(out, "This month:            KES %s\n", domain.Cents(s.MonthlyContributions))
			fmt.Fprintf(out, "Contribution payments: %d\n", s.PaymentCount)
			return nil
		},
	}
}
