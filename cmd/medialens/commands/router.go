package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/pipeline/ledger"
	"github.com/medialens/medialens/pipeline/router"
)

// NewRouterCommand creates the command running the dispatch router daemon.
func NewRouterCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "router",
		Short: "Run the dispatch router",
		Long:  "Consumes dispatch and completion queues, routes work orders to capability queues and records outcomes in the job ledger.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := bootstrap(configFile)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ledgerSvc := ledger.NewService(e.data.JobRepo, e.logger)
			r := router.New(e.table, e.data.Queue, ledgerSvc, e.logger)
			r.Run(ctx, e.data.Queue)

			<-ctx.Done()
			e.logger.Info(context.Background(), "Shutting down router...")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	return cmd
}
