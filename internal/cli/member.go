package cli

import (
	"fmt"
	"strings"

	"github.com/chamahub/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (rt *runtime) memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage chama members",
	}

	var balance string
	add := &cobra.Command{
		Use:   "add <phone> <name...>",
		Short: "Register a member",
		Long: `Register a member with an optional opening balance.

Examples:
  chamactl member add 254712345678 Jane Wanjiku
  chamactl member add 254712345678 "Jane Wanjiku" --balance 1500`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opening := decimal.Zero
			if balance != "" {
				v, err := decimal.NewFromString(balance)
				if err != nil {
					return fmt.Errorf("invalid balance %q", balance)
				}
				opening = v
			}
			m, err := rt.app.Ledger.CreateMember(cmd.Context(), args[0], strings.Join(args[1:], " "), opening)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Member added: %s (%s), balance KES %s\n", m.Name, m.Phone, domain.Shillings(m.Balance))
			return nil
		},
	}
	add.Flags().StringVar(&balance, "balance", "", "opening balance in KES")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := rt.app.Ledger.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			if len(members) == 0 {
				fmt.Fprintln(rt.out(cmd), "No members found")
				return nil
			}
			w := rt.table(cmd)
			fmt.Fprintln(w, "PHONE\tNAME\tBALANCE\tLAST PAYMENT\tSTATUS")
			for _, m := range members {
				last := "Never"
				if m.LastPayment != nil {
					last = m.LastPayment.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.Phone, m.Name, domain.Shillings(m.Balance), last, m.Status)
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <phone>",
		Short: "Delete a member with its payments and subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app.Ledger.DeleteMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Member %s deleted\n", args[0])
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <phone> <name...>",
		Short: "Change a member's name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[1:], " ")
			if err := rt.app.Ledger.RenameMember(cmd.Context(), args[0], name); err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Member %s renamed to %s\n", args[0], name)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status <phone> <status>",
		Short: "Set a member's status (active, inactive, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app.Ledger.SetMemberStatus(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Member %s is now %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(add, list, del, rename, status)
	return cmd
}

func (rt *runtime) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <phone>",
		Short: "Compare a member's stored balance with its payment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := rt.app.Ledger.VerifyBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := rt.out(cmd)
			fmt.Fprintf(out, "Stored balance:  KES %s\n", domain.Cents(check.Stored))
			fmt.Fprintf(out, "Derived balance: KES %s\n", domain.Cents(check.Derived))
			if !check.Consistent() {
				return fmt.Errorf("balance drift of KES %s", domain.Cents(check.Drift))
			}
			fmt.Fprintln(out, "Balance is consistent")
			return nil
		},
	}
}

func (rt *runtime) subscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <phone> <basic|premium>",
		Short: "Create or replace a member's subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := rt.app.Ledger.CreateSubscription(cmd.Context(), args[0], strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out(cmd), "Subscription for %s set to %s\n", sub.Phone, sub.Plan)
			return nil
		},
	}
}
