// Package cli implements chamactl, the operator CLI over the chama ledger.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/chamahub/backend/internal/app"
	"github.com/chamahub/backend/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Opener builds the application the commands run against.
type Opener func(ctx context.Context) (*app.App, error)

// ConfigOpener loads configuration from the environment and opens the
// configured store.
func ConfigOpener(ctx context.Context) (*app.App, error) {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return app.Build(ctx, cfg)
}

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

// runtime carries the opened App between the persistent hooks and the
// command bodies.
type runtime struct {
	open Opener
	app  *app.App
	info commandContext
}

func (rt *runtime) out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func (rt *runtime) table(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

// NewRootCmd assembles the chamactl command tree. The caller owns the App
// returned by open.
func NewRootCmd(open Opener) *cobra.Command {
	rt := &runtime{open: open}

	root := &cobra.Command{
		Use:   "chamactl",
		Short: "chamactl - operate the chama ledger",
		Long: `chamactl manages chama members, payments and subscriptions,
generates reports and runs the scheduled sweeps on demand.

It uses the same configuration as the server (DATABASE_DRIVER,
SQLITE_PATH, DATABASE_URL, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt.info = commandContext{correlationID: uuid.New(), startedAt: time.Now()}
			log.Printf("[CLI] %s start (correlation=%s)", cmd.CommandPath(), rt.info.correlationID)

			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			rt.app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Printf("[CLI] %s end (correlation=%s, %dms)", cmd.CommandPath(),
				rt.info.correlationID, time.Since(rt.info.startedAt).Milliseconds())
		},
	}

	root.AddCommand(
		rt.memberCmd(),
		rt.payCmd(),
		rt.paymentsCmd(),
		rt.summaryCmd(),
		rt.subscribeCmd(),
		rt.verifyCmd(),
		rt.reportCmd(),
		rt.jobCmd(),
		rt.messageCmd(),
		rt.botCmd(),
	)
	return root
}

// Execute runs chamactl with the environment configuration.
func Execute(ctx context.Context) error {
	var opened *app.App
	root := NewRootCmd(func(ctx context.Context) (*app.App, error) {
		a, err := ConfigOpener(ctx)
		opened = a
		return a, err
	})
	err := root.ExecuteContext(ctx)
	if opened != nil {
		opened.Close()
	}
	return err
}
