package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/usecase/workload"
)

func newCmdSession(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clean up recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCmdSessionList(a))
	cmd.AddCommand(newCmdSessionPrune(a))
	return cmd
}

func newCmdSessionList(a *app) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, closeLedger, err := a.ledger()
			if err != nil {
				return err
			}
			defer closeLedger()
			list, err := ledger.List(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]*model.Session, 0, len(list))
			for _, s := range list {
				if live && !s.Live() {
					continue
				}
				out = append(out, s)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Only sessions whose workload may still exist")
	return cmd
}

func newCmdSessionPrune(a *app) *cobra.Command {
	var all, dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired k8socks workloads in the namespace",
		Long: "Prune deletes managed workloads whose TTL elapsed (all of them with --all)\n" +
			"and marks matching ledger records deleted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg := a.cfg
			ctx, cleanup := withCmdRunLogger(cmd.Context(), "session.prune", cfg.Namespace)
			defer func() { cleanup(err) }()

			kcli, err := a.kubeClient(ctx)
			if err != nil {
				return err
			}
			u := &workload.UseCase{Client: kcli.Clientset, Namespace: cfg.Namespace}
			out, err := u.Prune(ctx, &workload.PruneInput{Namespace: cfg.Namespace, All: all, DryRun: dryRun})
			if err != nil {
				return err
			}
			for _, ref := range out.Deleted {
				verb := "deleted"
				if dryRun {
					verb = "would delete"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, ref.String())
			}
			if dryRun {
				return nil
			}

			ledger, closeLedger, err := a.ledger()
			if err != nil {
				return err
			}
			defer closeLedger()
			n, err := markPruned(ctx, ledger, cfg.Namespace, out, time.Now())
			if err != nil {
				logging.FromContext(ctx).Warn(ctx, "session ledger update failed", "error", err)
				return nil
			}
			logging.FromContext(ctx).Debug(ctx, "ledger records updated", "count", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete every managed workload, expired or not")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report what would be deleted")
	return cmd
}
